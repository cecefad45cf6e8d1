package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"pastebox/internal/config"
	"pastebox/internal/format"
	"pastebox/internal/log"
	"pastebox/internal/perm"
	"pastebox/internal/store"

	"github.com/spf13/cobra"
)

type App struct {
	ConfigPath string
	Dir        string
	Secret     string
	PrettyJSON bool
	Format     string

	cfg config.Config
	out format.Format
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "pastebox",
		Short:        "Pastebox: store files and render them for the browser or terminal",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Store a file and print its metadata
  pastebox add notes.md

  # Serve the web UI
  pastebox serve --addr 127.0.0.1:5000

  # Read an item in the terminal
  pastebox view abcd2345

  # Direct item lookup (shortcut for: pastebox show <name>)
  pastebox abcd2345
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		out, err := format.Parse(app.Format)
		if err != nil {
			return writeErr(cmd, err)
		}
		app.out = out

		cfg, err := config.Load(app.ConfigPath)
		if err != nil {
			return writeErr(cmd, err)
		}
		if strings.TrimSpace(app.Dir) != "" {
			cfg.Dir = strings.TrimSpace(app.Dir)
		}
		app.cfg = cfg
		if err := log.Initialize(cfg.LogFile); err != nil {
			return writeErr(cmd, err)
		}
		return nil
	}

	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		log.Close()
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("PASTEBOX_CONFIG", ""), "Path to config.toml (default: $XDG_CONFIG_HOME/pastebox/config.toml)")
	cmd.PersistentFlags().StringVar(&app.Dir, "dir", "", "Path to store dir (overrides the dir config key)")
	cmd.PersistentFlags().StringVar(&app.Secret, "secret", envOr("PASTEBOX_SECRET", ""), "Secret whose permissions apply to render/show/view")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("PASTEBOX_FORMAT", "json"), "Output format (json|text)")

	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newRenderCmd(app))
	cmd.AddCommand(newMklistCmd(app))
	cmd.AddCommand(newLockCmd(app, true))
	cmd.AddCommand(newLockCmd(app, false))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newPurgeCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newViewCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// openStore opens the configured store. Callers close it.
func openStore(ctx context.Context, app *App) (*store.Store, error) {
	dir, err := app.cfg.DataDir()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, dir)
}

// caps are the permissions of --secret under the configured policy.
func (app *App) caps() perm.Set {
	return app.cfg.Policy().ForSecret(app.Secret)
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.out, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
