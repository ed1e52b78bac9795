// Package cli implements the dossier command line: the HTTP server, one-off
// queries, index stats, share links and configuration management.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-dossier/internal/application"
	"github.com/ahrav/go-dossier/internal/logging"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// app holds state shared by the subcommands of one invocation.
type app struct {
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string

	loader *ViperLoader
	logger *slog.Logger
}

// NewRootCommand builds the command tree. Each call returns an independent
// tree, so tests can run commands in parallel.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "dossier",
		Short: "Dossier - grounded question answering over a legal document archive",
		Long: `Dossier answers natural-language questions about a large archive of
legal documents. Each question is embedded, matched against a vector index,
and answered by a language model that may only cite the retrieved passages.

Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (DOSSIER_*, plus provider keys such as OPENAI_API_KEY)
  3. Config file (~/.dossier/config.yaml)
  4. Defaults`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.dossier/config.yaml)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newServeCommand(a),
		newQueryCommand(a),
		newStatsCommand(a),
		newShareCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

// init loads the dotenv file, prepares the config loader and binds the
// global flags. The config itself is decoded lazily by the commands that
// need it.
func (a *app) init(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	loader, err := NewViperLoader(a.cfgFile)
	if err != nil {
		return err
	}
	a.loader = loader

	v := loader.Viper()
	if err := v.BindPFlag("logging.level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}
	if err := v.BindPFlag("logging.format", cmd.Flags().Lookup("log-format")); err != nil {
		return err
	}

	a.logger = logging.NewLogger(cmd.ErrOrStderr(),
		logging.LevelFromString(v.GetString("logging.level")), v.GetString("logging.format"))
	return nil
}

// config decodes and validates the merged configuration.
func (a *app) config(cmd *cobra.Command) (application.Config, error) {
	cfg, err := a.loader.LoadConfig(cmd.Context())
	if err != nil {
		return application.Config{}, err
	}
	if used := a.loader.ConfigFileUsed(); used != "" {
		a.logger.Debug("using config file", "path", used)
	}
	return cfg, nil
}

// bindFlag maps a command flag onto a config key. Unset flags leave the
// lower-precedence sources in charge.
func (a *app) bindFlag(cmd *cobra.Command, key, flag string) error {
	if err := a.loader.Viper().BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		return fmt.Errorf("bind --%s: %w", flag, err)
	}
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dossier %s\n", Version)
		},
	}
}
