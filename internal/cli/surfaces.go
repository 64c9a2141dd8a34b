package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"prdraft/internal/panels"
	"prdraft/internal/surface"
)

func newOpenCmd(app *App) *cobra.Command {
	var kind string
	var placement string
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "open [key]",
		Short: "Show the surface for a key on a running host",
		Long: strings.TrimSpace(`
Show the surface for key, creating it when the host has none. A key already on
screen is revealed, whatever kind is asked for. Without a key the repository's
draft is used.
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
			defer cancel()

			info, err := c.Show(ctx, kind, key, string(surface.ParsePlacement(placement)))
			if err != nil {
				return writeErr(cmd, err)
			}
			url := c.URL(info.Path)
			hints := []string{}
			if !noBrowser {
				if err := openURL(cmd, url); err != nil {
					hints = append(hints, "open "+url)
				}
			} else {
				hints = append(hints, "open "+url)
			}
			return writeOut(cmd, app, map[string]any{
				"data":   map[string]any{"surface": info, "url": url},
				"_hints": hints,
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", panels.KindPreview, "Surface kind ("+strings.Join(panels.Names(), "|")+")")
	cmd.Flags().StringVar(&placement, "placement", string(surface.PlaceActive), "Placement hint (active|beside|background)")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the surface URL instead of opening it")
	return cmd
}

func newSurfacesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "surfaces",
		Short: "List the live surfaces of a running host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			all, err := c.Surfaces(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": all})
		},
	}
}

func newStateCmd(app *App) *cobra.Command {
	var slice string

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the composite state of a running host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			raw, err := c.State(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			var state map[string]json.RawMessage
			if err := json.Unmarshal(raw, &state); err != nil {
				return writeErr(cmd, err)
			}
			if slice = strings.TrimSpace(slice); slice != "" {
				v, ok := state[slice]
				if !ok {
					return writeErr(cmd, errNotFound("slice", slice))
				}
				return writeOut(cmd, app, map[string]any{"data": v})
			}
			return writeOut(cmd, app, map[string]any{"data": raw})
		},
	}

	cmd.Flags().StringVar(&slice, "slice", "", "Print only this slice (e.g. draftPRs)")
	return cmd
}

func newCloseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "close [key]",
		Short: "Close the surface for a key on a running host",
		Args:  cobra.MaximumNArgs(1),
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
			defer cancel()
			info, ok, err := c.Find(ctx, key)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !ok {
				return writeErr(cmd, errNotFound("surface", key))
			}
			if err := c.Close(ctx, info.ID); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"closed": info}})
		},
	}
}
