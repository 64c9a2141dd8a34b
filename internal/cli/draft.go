package cli

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"prdraft/internal/draft"
)

func newDraftCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Read and normalize draft documents",
	}
	cmd.AddCommand(newDraftParseCmd(app))
	cmd.AddCommand(newDraftFmtCmd(app))
	return cmd
}

func newDraftParseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file|->",
		Short: "Print the record a draft document parses to",
		Example: strings.TrimSpace(`
prdraft draft parse .git/PULL_REQUEST.md
git log -1 --format=%B | prdraft draft parse -
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": draft.Parse(src)})
		},
	}
}

func newDraftFmtCmd(app *App) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "fmt <file|->",
		Short: "Rewrite a draft document in canonical form",
		Long: strings.TrimSpace(`
Parse a draft document and print it back in canonical form: known header fields
first, then the others sorted by name, then the body.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			out := draft.Serialize(draft.Parse(src))
			if !write || args[0] == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), out)
				return err
			}
			if out == src {
				return writeOut(cmd, app, map[string]any{"data": map[string]any{"path": args[0], "changed": false}})
			}
			if err := os.WriteFile(args[0], []byte(out), 0o644); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"path": args[0], "changed": true}})
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to the file")
	return cmd
}

func readSource(cmd *cobra.Command, name string) (string, error) {
	if name == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(name)
	return string(b), err
}
