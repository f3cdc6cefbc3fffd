package cli

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/RalfJung/opam/internal/types"
)

type initOptions struct {
	RepoName string
	RepoKind string
	Compiler string
	Alias    string
	Jobs     int
}

func newInitCommand() *cobra.Command {
	opts := initOptions{}
	cmd := &cobra.Command{
		Use:   "init ADDRESS",
		Short: "Initialize the root and the first switch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newService()
			repo := types.Repository{
				Name:    opts.RepoName,
				Address: args[0],
				Kind:    types.RepoKind(opts.RepoKind),
			}
			alias := opts.Alias
			if alias == "" {
				alias = "default"
			}
			if err := os.MkdirAll(service.Root, 0o755); err != nil {
				return err
			}
			return withLock(service.Root, func() error {
				return service.Init(cmd.Context(), repo, alias, opts.Compiler, opts.Jobs)
			})
		},
	}
	cmd.Flags().StringVar(&opts.RepoName, "name", "default", "Repository name")
	cmd.Flags().StringVar(&opts.RepoKind, "kind", "local", "Repository kind (git|http|local)")
	cmd.Flags().StringVar(&opts.Compiler, "compiler", "system", "Compiler version for the first switch")
	cmd.Flags().StringVar(&opts.Alias, "alias", "", "Alias of the first switch (default \"default\")")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", runtime.NumCPU(), "Number of parallel build jobs")
	return cmd
}
