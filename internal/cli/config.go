package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-dossier/internal/application"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage dossier configuration",
		Long: `Manage dossier configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (DOSSIER_*)
3. Config file (~/.dossier/config.yaml)
4. Defaults`,
	}
	cmd.AddCommand(newConfigShowCommand(a), newConfigInitCommand())
	return cmd
}

func newConfigShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg application.Config
			if err := a.loader.Load(cmd.Context(), &cfg); err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			if used := a.loader.ConfigFileUsed(); used != "" {
				fmt.Fprintf(stderr, "Configuration file: %s\n\n", used)
			} else {
				fmt.Fprintf(stderr, "No configuration file found (using defaults and environment)\n\n")
			}

			settings := settingsMap(cfg)
			redactSecrets(settings)
			if err := writeYAML(cmd.OutOrStdout(), settings); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(stderr, "\nWarning: %v\n", err)
			}
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long:  `Create a configuration file with every option set to its default. API keys are best supplied through the environment.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if path == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("error finding home directory: %w", err)
				}
				path = filepath.Join(home, ".dossier", "config.yaml")
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("stat %s: %w", path, err)
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("error creating config directory: %w", err)
			}

			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return fmt.Errorf("error creating config file: %w", err)
			}
			defer func() {
				if closeErr := f.Close(); closeErr != nil && err == nil {
					err = fmt.Errorf("close config file: %w", closeErr)
				}
			}()

			header := "# Dossier configuration\n" +
				"#\n" +
				"# Environment variables override this file, e.g. DOSSIER_RETRIEVAL_TOP_K=5.\n" +
				"# Provider keys are read from OPENAI_API_KEY, ANTHROPIC_API_KEY,\n" +
				"# GOOGLE_API_KEY, PINECONE_API_KEY and QDRANT_API_KEY when unset here.\n\n"
			if _, err := io.WriteString(f, header); err != nil {
				return fmt.Errorf("error writing config: %w", err)
			}
			if err := writeYAML(f, settingsMap(application.DefaultConfig())); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created configuration: %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "file to write (default: $HOME/.dossier/config.yaml)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	return enc.Close()
}
