package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"prdraft/internal/panels"
	"prdraft/internal/tui"
)

func newTUICmd(app *App) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "tui [key]",
		Short: "Show a surface in the terminal",
		Long: strings.TrimSpace(`
Attach to the surface for key on a running host and render it in the terminal.
Keys: c creates the pull request, x clears its status, q quits.
`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := app.keyArg(args)
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := tui.Run(cmd.Context(), tui.Options{Client: c, Kind: kind, Key: key}); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", panels.KindPreview, "Surface kind ("+strings.Join(panels.Names(), "|")+")")
	return cmd
}
