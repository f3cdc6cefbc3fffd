package cli

import (
	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Query the current switch configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "env",
		Short: "Print the composed switch environment",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return newService().ConfigEnv()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list-vars",
		Short: "List every variable of every installed package",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return newService().ConfigListVars()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "variable VAR",
		Short: "Print the value of one variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return newService().ConfigVariable(args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "subst FILE...",
		Short: "Apply template substitution to the named files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return newService().ConfigSubst(args)
		},
	})

	var recursive bool
	includes := &cobra.Command{
		Use:   "includes PKG...",
		Short: "Print include flags for the named packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return newService().ConfigIncludes(recursive, args)
		},
	}
	includes.Flags().BoolVarP(&recursive, "recursive", "r", false, "Close over dependencies")
	cmd.AddCommand(includes)

	var mode string
	compil := &cobra.Command{
		Use:   "compil SECTION...",
		Short: "Print compilation flags for the named sections",
		Args:  cobra.ArbitraryArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			return newService().ConfigCompil(mode, args)
		},
	}
	compil.Flags().StringVar(&mode, "mode", "bytecomp", "Flag list to emit (bytecomp|asmcomp|bytelink|asmlink)")
	cmd.AddCommand(compil)

	return cmd
}
