//go:build !webview

package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newWebViewCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:    "webview [key]",
		Short:  "Show a surface in a native window (requires -tags webview)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeErr(cmd, errors.New("webview support is not built in; re-run with: go run -tags webview ./cmd/prdraft webview"))
		},
	}
}
