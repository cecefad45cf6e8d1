package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pastebox/internal/model"
	"pastebox/internal/render"
	"pastebox/internal/store"

	"github.com/spf13/cobra"
)

func newAddCmd(app *App) *cobra.Command {
	var (
		contentType string
		filename    string
		maxlife     string
		listName    string
		lock        bool
	)

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Store files (use - to read stdin)",
		Example: strings.TrimSpace(`
# Store a file; the type is guessed from its name
pastebox add main.go

# Pipe from stdin, keep it for a day
git diff | pastebox add - --filename change.diff --maxlife 24h

# Store several files and a list item that bundles them
pastebox add --list screenshots *.png
`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(filename) != "" && len(args) > 1 {
				return writeErr(cmd, errors.New("--filename needs exactly one file"))
			}
			life, err := store.ParseMaxLife(maxlife)
			if err != nil {
				return writeErr(cmd, err)
			}

			st, err := openStore(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			metas := make([]model.ItemMeta, 0, len(args)+1)
			names := make([]string, 0, len(args))
			for _, path := range args {
				meta, err := addOne(cmd.Context(), st, cmd.InOrStdin(), path, store.NewItem{
					Filename: filename,
					Type:     contentType,
					Locked:   lock,
					MaxLife:  life,
				}, app.cfg.MaxBodySize)
				if err != nil {
					return writeErr(cmd, err)
				}
				metas = append(metas, meta)
				names = append(names, meta.Name)
			}

			if strings.TrimSpace(listName) != "" {
				lm, err := st.CreateList(cmd.Context(), listName, names, lock)
				if err != nil {
					return writeErr(cmd, err)
				}
				metas = append(metas, lm)
			}
			return writeOut(cmd, app, map[string]any{"data": metas})
		},
	}

	cmd.Flags().StringVar(&contentType, "type", "", "Content type (default: guessed from the filename)")
	cmd.Flags().StringVar(&filename, "filename", "", "Filename to record (default: the file's base name)")
	cmd.Flags().StringVar(&maxlife, "maxlife", "", "Lifetime, e.g. 1h or 168h (default: forever)")
	cmd.Flags().StringVar(&listName, "list", "", "Also create a list item with this filename referencing the added items")
	cmd.Flags().BoolVar(&lock, "lock", false, "Lock the items (admin permission needed to view)")
	return cmd
}

func addOne(ctx context.Context, st *store.Store, stdin io.Reader, path string, n store.NewItem, maxBytes int64) (model.ItemMeta, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
		if n.Filename == "" {
			n.Filename = "stdin"
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return model.ItemMeta{}, err
		}
		defer f.Close()
		r = f
		if n.Filename == "" {
			n.Filename = filepath.Base(path)
		}
	}
	meta, err := st.Create(ctx, n, r, maxBytes)
	if err != nil {
		return model.ItemMeta{}, err
	}
	return meta, nil
}

func newListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items sorted by filename",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			files, err := st.List(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": files})
		},
	}
	return cmd
}

type showVM struct {
	model.ItemMeta
	Strategy string `json:"strategy"`
	URL      string `json:"url,omitempty"`
}

func newShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show an item's metadata and how it would be rendered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			name := args[0]
			meta, err := st.Meta(cmd.Context(), name)
			if err != nil {
				return writeErr(cmd, itemErr(name, err))
			}
			if meta.Expired(time.Now()) {
				return writeErr(cmd, errNotFound("item", name))
			}
			vm := showVM{ItemMeta: meta, Strategy: render.Classify(meta.Type).String()}
			if app.cfg.BaseURL != "" {
				vm.URL = render.PathURLs{Base: app.cfg.BaseURL}.URL(meta.Name, render.EndpointDisplay)
			}
			return writeOut(cmd, app, map[string]any{"data": vm})
		},
	}
	return cmd
}

func newMklistCmd(app *App) *cobra.Command {
	var (
		filename string
		lock     bool
	)

	cmd := &cobra.Command{
		Use:   "mklist <name>...",
		Short: "Create a list item referencing existing items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			meta, err := st.CreateList(cmd.Context(), filename, args, lock)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": meta})
		},
	}

	cmd.Flags().StringVar(&filename, "filename", "list", "Filename of the list item")
	cmd.Flags().BoolVar(&lock, "lock", false, "Lock the list item")
	return cmd
}

func newLockCmd(app *App, locked bool) *cobra.Command {
	use, short := "lock <name>", "Lock an item (only admins can view it)"
	if !locked {
		use, short = "unlock <name>", "Unlock an item"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			name := args[0]
			if err := st.SetLocked(cmd.Context(), name, locked); err != nil {
				return writeErr(cmd, itemErr(name, err))
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"name": name, "locked": locked}})
		},
	}
	return cmd
}

func newDeleteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <name>...",
		Aliases: []string{"rm"},
		Short:   "Delete items",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			deleted := make([]map[string]any, 0, len(args))
			for _, name := range args {
				if err := st.Delete(cmd.Context(), name); err != nil {
					return writeErr(cmd, itemErr(name, err))
				}
				deleted = append(deleted, map[string]any{"name": name, "deleted": true})
			}
			return writeOut(cmd, app, map[string]any{"data": deleted})
		},
	}
	return cmd
}

func newPurgeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every expired item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			removed, err := st.Purge(cmd.Context(), time.Now())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"removed": removed, "count": len(removed)}})
		},
	}
	return cmd
}
