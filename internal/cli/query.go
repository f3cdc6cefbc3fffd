package cli

import (
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known packages",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return newService().List()
		},
	}
}

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info PKG",
		Short: "Show details of one package",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return newService().Info(args[0])
		},
	}
}

func newCompilerListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compiler-list",
		Short: "List available compiler versions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return newService().CompilerList()
		},
	}
}
