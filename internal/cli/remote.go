package cli

import (
	"github.com/spf13/cobra"

	"github.com/RalfJung/opam/internal/types"
)

func newRemoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage the configured repositories",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the configured repositories",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return newService().RemoteList()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME ADDRESS KIND",
		Short: "Register a repository",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newService()
			repo := types.Repository{
				Name:    args[0],
				Address: args[1],
				Kind:    types.RepoKind(args[2]),
			}
			return withLock(service.Root, func() error {
				return service.RemoteAdd(cmd.Context(), repo)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm NAME",
		Short: "Unregister a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newService()
			return withLock(service.Root, func() error {
				return service.RemoteRm(cmd.Context(), args[0])
			})
		},
	})
	return cmd
}
