package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RalfJung/opam/internal/adapters"
	"github.com/RalfJung/opam/internal/app"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "OPAM"

type rootConfig struct {
	Root     string
	LogLevel string
	Yes      bool
}

func Execute() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "opam: %s\n", errorMessage(err))
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cfg := rootConfig{}
	cmd := &cobra.Command{
		Use:           "opam",
		Short:         "Source-based package manager",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			initConfig()
			setupLogging(viper.GetString("log_level"))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfg.Root, "root", "", "Root directory (default ~/.opam)")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	cmd.PersistentFlags().BoolVar(&cfg.Yes, "yes", false, "Answer yes to every prompt")
	_ = viper.BindPFlag("root", cmd.PersistentFlags().Lookup("root"))
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("yes", cmd.PersistentFlags().Lookup("yes"))

	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newUpdateCommand())
	cmd.AddCommand(newInstallCommand())
	cmd.AddCommand(newRemoveCommand())
	cmd.AddCommand(newUpgradeCommand())
	cmd.AddCommand(newUploadCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newInfoCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newRemoteCommand())
	cmd.AddCommand(newSwitchCommand())
	cmd.AddCommand(newCompilerListCommand())
	return cmd
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// rootDir resolves the root directory from the flag, the OPAM_ROOT
// environment, or the home default.
func rootDir() string {
	if root := viper.GetString("root"); root != "" {
		return root
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".opam"
	}
	return filepath.Join(home, ".opam")
}

func newService() *app.Service {
	return app.NewService(rootDir(), viper.GetBool("yes"))
}

// withLock runs a write-path command body under the root's exclusive
// lock, releasing it on every exit path.
func withLock(root string, body func() error) error {
	lock, err := adapters.AcquireRootLock(root)
	if err != nil {
		return err
	}
	defer lock.Release()
	return body()
}

func exitCodeForError(err error) int {
	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeInvalidArgument, errbuilder.CodeAlreadyExists:
		return 2
	case errbuilder.CodeFailedPrecondition:
		return 4
	case errbuilder.CodeNotFound, errbuilder.CodeInternal:
		return 5
	default:
		return 1
	}
}

func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
