package cli

import (
	"github.com/spf13/cobra"

	"github.com/RalfJung/opam/internal/app"
)

func newSwitchCommand() *cobra.Command {
	var clone bool
	cmd := &cobra.Command{
		Use:   "switch ALIAS [COMPILER]",
		Short: "Select a switch, creating it if needed",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newService()
			compiler := ""
			if len(args) > 1 {
				compiler = args[1]
			}
			return withLock(service.Root, func() error {
				return service.Switch(cmd.Context(), clone, args[0], compiler)
			})
		},
	}
	cmd.Flags().BoolVar(&clone, "clone", false, "Clone the previous switch's installed packages")
	return cmd
}

func newUploadCommand() *cobra.Command {
	request := app.UploadRequest{}
	cmd := &cobra.Command{
		Use:   "upload [REPO]",
		Short: "Upload a package release to a repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newService()
			if len(args) > 0 {
				request.Repository = args[0]
			}
			return withLock(service.Root, func() error {
				return service.Upload(cmd.Context(), request)
			})
		},
	}
	cmd.Flags().StringVar(&request.OpamFile, "opam", "", "Package manifest file")
	cmd.Flags().StringVar(&request.DescrFile, "descr", "", "Package description file")
	cmd.Flags().StringVar(&request.ArchiveFile, "archive", "", "Package source archive")
	_ = cmd.MarkFlagRequired("opam")
	return cmd
}
