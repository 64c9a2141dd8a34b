package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"prdraft/internal/docs"
)

func newDocsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "docs [topic]",
		Short: "Print a help topic (draft, surfaces, config)",
		Example: strings.TrimSpace(`
prdraft docs
prdraft docs draft
`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				hints := []string{}
				for _, t := range docs.Topics() {
					hints = append(hints, "prdraft docs "+t)
				}
				return writeOut(cmd, app, map[string]any{"data": docs.Topics(), "_hints": hints})
			}
			body, ok := docs.Get(args[0])
			if !ok {
				return writeErr(cmd, errNotFound("topic", args[0]))
			}
			_, err := io.WriteString(cmd.OutOrStdout(), body)
			return err
		},
	}
}
