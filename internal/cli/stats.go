package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newStatsCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show vector index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config(cmd)
			if err != nil {
				return err
			}
			index, err := buildVectorIndex(cfg, a.logger)
			if err != nil {
				return err
			}

			stats, err := index.Stats(cmd.Context())
			if err != nil {
				a.logger.Debug("stats failed", slog.Any("error", err))
				return fmt.Errorf("failed to get index stats: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			fmt.Fprintf(out, "Index:     %s\n", stats.IndexName)
			if stats.Namespace != "" {
				fmt.Fprintf(out, "Namespace: %s\n", stats.Namespace)
			}
			fmt.Fprintf(out, "Records:   %d\n", stats.TotalRecordCount)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stats as JSON")
	return cmd
}
