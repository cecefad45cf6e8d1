package cli

import (
	"errors"
	"fmt"

	"pastebox/internal/perm"
	"pastebox/internal/render"
	"pastebox/internal/store"

	"github.com/spf13/cobra"
)

func newDispatcher(app *App, st *store.Store) (*render.Dispatcher, error) {
	return render.New(render.Config{
		URLs:       render.PathURLs{Base: app.cfg.BaseURL},
		Resolver:   st,
		Style:      app.cfg.HighlightStyle,
		ImageWidth: app.cfg.ImageWidth,
	})
}

func newRenderCmd(app *App) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "render <name>",
		Short: "Render an item to the HTML fragment the web UI shows",
		Long: `Render an item to the HTML fragment the web UI shows.

Incomplete uploads and locked items (without an admin --secret) fail.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := app.caps()
			if !caps.Has(perm.Read) {
				return writeErr(cmd, errors.New("permission denied: read"))
			}

			st, err := openStore(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			d, err := newDispatcher(app, st)
			if err != nil {
				return writeErr(cmd, err)
			}

			name := args[0]
			it, err := st.OpenItem(cmd.Context(), name)
			if err != nil {
				return writeErr(cmd, itemErr(name, err))
			}
			defer it.Close()

			res := d.Render(cmd.Context(), it, caps)
			if err := res.Err(); err != nil {
				return writeErr(cmd, err)
			}
			if raw {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), string(res.Fragment))
				return err
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"name":     res.Name,
				"strategy": res.Strategy.String(),
				"html":     string(res.Fragment),
			}})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print only the HTML fragment")
	return cmd
}
