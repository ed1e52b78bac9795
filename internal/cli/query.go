package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-dossier/internal/domain"
)

func newQueryCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer one question from the command line",
		Long: `Run the full retrieval and synthesis pipeline once and print the answer.
Multiple arguments are joined with spaces. No rate limit applies.`,
		Example: `  dossier query "Who is listed on the 2002 flight logs?"
  dossier query --json --top-k 5 "What does the deposition say about the island?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlag(cmd, "retrieval.top_k", "top-k"); err != nil {
				return err
			}
			if err := a.bindFlag(cmd, "retrieval.namespace", "namespace"); err != nil {
				return err
			}

			cfg, err := a.config(cmd)
			if err != nil {
				return err
			}
			svc, err := buildQueryService(cfg, a.logger, nil)
			if err != nil {
				return err
			}

			resp, err := svc.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			return renderMarkdown(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the response as JSON")
	cmd.Flags().Int("top-k", 0, "number of passages to retrieve (default 10)")
	cmd.Flags().String("namespace", "", "index namespace to search")
	return cmd
}

func renderMarkdown(w io.Writer, resp domain.QueryResponse) error {
	var b strings.Builder

	b.WriteString(strings.TrimSpace(resp.SummaryMarkdown))
	b.WriteString("\n")

	writeList(&b, "Key Findings", resp.KeyFindings)
	writeList(&b, "Caveats", resp.Caveats)

	if len(resp.Sources) > 0 {
		b.WriteString("\n## Sources\n")
		for i, src := range resp.Sources {
			fmt.Fprintf(&b, "%d. `%s` (score %.2f)\n", i+1, sourceLabel(src), src.Relevance)
		}
	}

	writeList(&b, "Related Questions", resp.RelatedQuestions)
	fmt.Fprintf(&b, "\nConfidence: %s\n", resp.Confidence)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

// sourceLabel prefers the document identifier over the record id.
func sourceLabel(e domain.Evidence) string {
	for _, key := range []string{"bates_number", "document_id"} {
		if v, ok := e.Attributes[key].(string); ok && v != "" {
			return v
		}
	}
	return e.ID
}
