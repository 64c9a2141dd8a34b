package cli

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"prdraft/internal/journal"
)

func newJournalCmd(app *App) *cobra.Command {
	var limit int
	var typ string
	var path string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print the most recent dispatched actions",
		Long: strings.TrimSpace(`
Print the tail of the action journal, oldest first. The journal is an audit
trail: the host never reads it back.
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.config()
			if err != nil {
				return writeErr(cmd, err)
			}
			if strings.TrimSpace(path) == "" {
				path = c.Journal.Path
			}
			if strings.TrimSpace(path) == "" {
				return writeErr(cmd, errors.New("journal: disabled (journal.path is empty)"))
			}
			if _, err := os.Stat(path); err != nil {
				return writeErr(cmd, err)
			}
			log, err := app.log()
			if err != nil {
				return writeErr(cmd, err)
			}
			j, err := journal.Open(cmd.Context(), path, log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer j.Close()

			// Filter before limiting so --type still returns up to --limit entries.
			n := limit
			if typ != "" {
				n = 0
			}
			entries, err := j.Tail(cmd.Context(), n)
			if err != nil {
				return writeErr(cmd, err)
			}
			if typ != "" {
				kept := entries[:0]
				for _, e := range entries {
					if e.Type == typ {
						kept = append(kept, e)
					}
				}
				entries = kept
				if limit > 0 && len(entries) > limit {
					entries = entries[len(entries)-limit:]
				}
			}
			if entries == nil {
				entries = []journal.Entry{}
			}

			hints := []string{}
			if limit > 0 && len(entries) == limit {
				hints = append(hints, "prdraft journal --limit "+strconv.Itoa(limit*2))
			}
			return writeOut(cmd, app, map[string]any{
				"data":   entries,
				"meta":   map[string]any{"path": path, "count": len(entries)},
				"_hints": hints,
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries (0 for all)")
	cmd.Flags().StringVar(&typ, "type", "", "Only entries of this action type (e.g. SET_DOCUMENT)")
	cmd.Flags().StringVar(&path, "path", "", "Journal database; defaults to journal.path from config")
	return cmd
}
