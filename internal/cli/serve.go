package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"prdraft/internal/host"
	"prdraft/internal/panels"
	"prdraft/internal/surface"
)

func newServeCmd(app *App) *cobra.Command {
	var open bool
	var kind string
	var closeGrace time.Duration
	var noJournal bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the host for a repository",
		Long: strings.TrimSpace(`
Run the host for the repository containing --dir.

The host creates .git/PULL_REQUEST.md when it is missing, watches it and the
repository's branches and remotes, and serves preview surfaces over HTTP. Every
surface is updated as soon as the draft or the repository changes.
`),
		Example: strings.TrimSpace(`
# Serve the current repository and open the preview in a browser
prdraft serve --open

# Close surfaces a minute after their last page went away
prdraft serve --close-grace 1m --addr 127.0.0.1:0
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.config()
			if err != nil {
				return writeErr(cmd, err)
			}
			log, err := app.log()
			if err != nil {
				return writeErr(cmd, err)
			}
			if cmd.Flags().Changed("close-grace") {
				c.Server.CloseGrace = closeGrace
			}
			journalPath := c.Journal.Path
			if noJournal {
				journalPath = ""
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			h, err := host.New(ctx, host.Config{
				Dir:          c.Repo.Dir,
				Addr:         c.Server.Addr,
				CloseGrace:   c.Server.CloseGrace,
				GitHubHosts:  c.Repo.GitHubHosts,
				Debounce:     c.Repo.Debounce,
				JournalPath:  journalPath,
				GHBin:        c.Publish.GHBin,
				PublishDraft: c.Publish.Draft,
				Logger:       log,
			})
			if err != nil {
				return writeErr(cmd, err)
			}

			errCh := make(chan error, 1)
			go func() { errCh <- h.Run(ctx) }()
			select {
			case <-h.Ready():
			case err := <-errCh:
				return writeErr(cmd, err)
			}

			url := h.Server().URL("/")
			hints := []string{}
			data := map[string]any{
				"addr":      h.Server().Addr(),
				"url":       url,
				"draft":     h.DraftPath(),
				"key":       h.DraftURI(),
				"opened":    false,
				"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
			}
			if open {
				target, err := showDraft(ctx, h, kind)
				if err == nil {
					err = openURL(cmd, target)
				}
				if err != nil {
					data["openError"] = err.Error()
					hints = append(hints, "prdraft open --addr "+h.Server().Addr())
				} else {
					data["opened"] = true
				}
			} else {
				hints = append(hints, "prdraft open --addr "+h.Server().Addr(), "prdraft tui --addr "+h.Server().Addr())
			}
			_ = writeOut(cmd, app, map[string]any{"data": data, "_hints": hints})

			fmt.Fprintf(cmd.ErrOrStderr(), "prdraft running at %s (draft=%s)\n", url, h.DraftPath())
			if err := <-errCh; err != nil && ctx.Err() == nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&open, "open", false, "Open the draft's surface in your default browser")
	cmd.Flags().StringVar(&kind, "kind", panels.KindPreview, "Surface kind opened by --open ("+strings.Join(panels.Names(), "|")+")")
	cmd.Flags().DurationVar(&closeGrace, "close-grace", 0, "Close a surface once its last page has been gone this long (0 keeps it)")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "Do not record dispatched actions")
	return cmd
}

func showDraft(ctx context.Context, h *host.Host, kind string) (string, error) {
	inst, err := h.Show(ctx, kind, h.DraftURI(), surface.PlaceActive)
	if err != nil {
		return "", err
	}
	return h.Server().URL("/s/" + inst.Context().ID()), nil
}
