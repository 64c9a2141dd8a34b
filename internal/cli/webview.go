//go:build webview

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	webview "github.com/webview/webview_go"

	"prdraft/internal/panels"
	"prdraft/internal/surface"
)

func newWebViewCmd(app *App) *cobra.Command {
	var kind string
	var width int
	var height int
	var debug bool

	cmd := &cobra.Command{
		Use:   "webview [key]",
		Short: "Show a surface in a native window",
		Long: strings.TrimSpace(`
Show the surface for key from a running host in a native webview window. Closing
the window closes the surface.

Notes:
- This command is build-tagged and requires: -tags webview
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
			ctx, cancel := requestContext(cmd)
			info, err := c.Show(ctx, kind, key, string(surface.PlaceActive))
			cancel()
			if err != nil {
				return writeErr(cmd, err)
			}
			url := c.URL(info.Path)

			w := webview.New(debug)
			defer w.Destroy()
			w.SetTitle(info.Title)
			w.SetSize(width, height, webview.HintNone)
			w.Navigate(url)
			fmt.Fprintf(cmd.ErrOrStderr(), "prdraft webview showing %s\n", url)
			w.Run()

			ctx, cancel = requestContext(cmd)
			defer cancel()
			if err := c.Close(ctx, info.ID); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"closed": info}})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", panels.KindPreview, "Surface kind ("+strings.Join(panels.Names(), "|")+")")
	cmd.Flags().IntVar(&width, "width", 1000, "Window width (pixels)")
	cmd.Flags().IntVar(&height, "height", 800, "Window height (pixels)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable webview debug mode")
	return cmd
}
