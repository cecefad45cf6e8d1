package cli

import (
	"errors"

	"pastebox/internal/perm"
	"pastebox/internal/tui"

	"github.com/spf13/cobra"
)

func newViewCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <name>",
		Short: "Read an item in a terminal pager",
		Args:  cobra.ExactArgs(1),
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

			if err := tui.Run(cmd.Context(), st, args[0], tui.Options{
				Caps:  caps,
				Style: app.cfg.HighlightStyle,
			}); err != nil {
				return writeErr(cmd, itemErr(args[0], err))
			}
			return nil
		},
	}
	return cmd
}
