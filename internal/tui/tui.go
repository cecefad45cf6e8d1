// Package tui is the terminal viewer for a single item.
package tui

import (
	"context"
	"fmt"

	"pastebox/internal/model"
	"pastebox/internal/perm"
	"pastebox/internal/render"
	"pastebox/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

type Options struct {
	// Caps gate locked items the same way the web UI does.
	Caps  perm.Set
	Style string
}

// content is everything the viewer shows, read up front so the program never
// touches the store.
type content struct {
	meta  model.ItemMeta
	data  []byte
	files []model.FileInfo
}

// Run opens name and pages it until the user quits.
func Run(ctx context.Context, st *store.Store, name string, opts Options) error {
	c, err := load(ctx, st, name, opts.Caps)
	if err != nil {
		return err
	}
	profile := applyColorProfilePreference()
	m := newViewerModel(c, bodyOptions{Profile: profile, Style: opts.Style})
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func load(ctx context.Context, st *store.Store, name string, caps perm.Set) (content, error) {
	it, err := st.OpenItem(ctx, name)
	if err != nil {
		return content{}, err
	}
	defer it.Close()

	meta := it.Meta()
	if res, ok := render.Admit(meta, caps); !ok {
		return content{}, res.Err()
	}

	c := content{meta: meta}
	switch render.Classify(meta.Type) {
	case render.TextStrategy:
		if c.data, err = it.ReadAll(ctx); err != nil {
			return content{}, fmt.Errorf("read %s: %w", name, err)
		}
	case render.ListStrategy:
		data, err := it.ReadAll(ctx)
		if err != nil {
			return content{}, fmt.Errorf("read %s: %w", name, err)
		}
		if c.files, err = st.FileInfos(ctx, render.ListNames(data)); err != nil {
			return content{}, fmt.Errorf("resolve list %s: %w", name, err)
		}
	}
	return c, nil
}
