package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-dossier/internal/application"
)

func newShareCommand(a *app) *cobra.Command {
	var (
		base   string
		decode bool
	)

	cmd := &cobra.Command{
		Use:   "share <question | link>",
		Short: "Build or read a share link",
		Example: `  dossier share "Who flew in 2002?"
  dossier share --base https://dossier.example.com "Who flew in 2002?"
  dossier share --decode "https://dossier.example.com/?q=Who%20flew%20in%202002%3F"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			if decode {
				q, ok := application.ParseShareURL(input)
				if !ok {
					return errors.New("link has no shared question")
				}
				fmt.Fprintln(out, q)
				return nil
			}

			if base == "" {
				base = a.loader.Viper().GetString("server.public_url")
			}
			fmt.Fprintln(out, application.ShareURL(base, input))
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "base URL for the link (default server.public_url)")
	cmd.Flags().BoolVar(&decode, "decode", false, "print the question carried by a link")
	return cmd
}
