package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pastebox/internal/model"
	"pastebox/internal/perm"
	"pastebox/internal/render"
	"pastebox/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

var plain = bodyOptions{Profile: termenv.Ascii, Style: "friendly"}

func TestRenderBody_PlainTextKeepsSource(t *testing.T) {
	c := content{
		meta: model.ItemMeta{Name: "abc", Filename: "main.go", Type: "text/x-gosrc"},
		data: []byte("package main\n\nfunc main() {}\n"),
	}
	got := renderBody(c, 80, plain)
	if got != "package main\n\nfunc main() {}" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestRenderBody_ColorProfileAddsEscapes(t *testing.T) {
	c := content{
		meta: model.ItemMeta{Name: "abc", Type: "text/x-gosrc"},
		data: []byte("package main\n"),
	}
	got := renderBody(c, 80, bodyOptions{Profile: termenv.TrueColor, Style: "monokai"})
	if !strings.Contains(got, "\x1b[") {
		t.Fatalf("expected ANSI escapes for a truecolor profile, got %q", got)
	}
	if stripped := strings.TrimSpace(xansi.Strip(got)); stripped != "package main" {
		t.Fatalf("unexpected stripped body %q", stripped)
	}
}

func TestRenderBody_Fallbacks(t *testing.T) {
	bad := content{meta: model.ItemMeta{Name: "bad", Type: "text/plain"}, data: []byte{0xff, 0xfe}}
	if got := renderBody(bad, 80, plain); got != render.UnsupportedMessage {
		t.Fatalf("expected fallback for invalid UTF-8, got %q", got)
	}

	noLexer := content{meta: model.ItemMeta{Name: "x", Type: "text/x-unknown-thing"}, data: []byte("hi")}
	if got := renderBody(noLexer, 80, plain); got != render.UnsupportedMessage {
		t.Fatalf("expected fallback without a lexer, got %q", got)
	}

	bin := content{meta: model.ItemMeta{Name: "y", Type: "application/zip"}}
	if got := renderBody(bin, 80, plain); got != render.UnsupportedMessage {
		t.Fatalf("expected unsupported message, got %q", got)
	}

	img := content{meta: model.ItemMeta{Name: "z", Type: "image/png", Size: 2048}}
	if got := renderBody(img, 80, plain); !strings.Contains(got, "image/png") || !strings.Contains(got, "2.0 KiB") {
		t.Fatalf("unexpected media message %q", got)
	}
}

func TestRenderBody_Markdown(t *testing.T) {
	c := content{
		meta: model.ItemMeta{Name: "md", Type: "text/markdown"},
		data: []byte("# Title\n\nSome *text*.\n"),
	}
	got := renderBody(c, 60, plain)
	if !strings.Contains(got, "Title") || !strings.Contains(got, "Some") || strings.HasPrefix(got, "# Title\n\nSome *text*.") {
		t.Fatalf("expected rendered markdown, got %q", got)
	}
}

func TestRenderBody_ListSorted(t *testing.T) {
	c := content{
		meta: model.ItemMeta{Name: "l", Type: model.ListType},
		files: []model.FileInfo{
			{Name: "bbbb", Filename: "b.txt", Type: "text/plain", Size: 1},
			{Name: "aaaa", Filename: "a.txt", Type: "text/plain", Size: 2},
		},
	}
	got := renderBody(c, 80, plain)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "a.txt") || !strings.HasPrefix(lines[2], "b.txt") {
		t.Fatalf("unexpected list body:\n%s", got)
	}
}

func TestViewerModel_ResizeAndQuit(t *testing.T) {
	c := content{
		meta: model.ItemMeta{Name: "abc", Filename: "a-rather-long-file-name.txt", Type: "text/plain", Size: 5},
		data: []byte("hello"),
	}
	var m tea.Model = newViewerModel(c, plain)
	if got := m.View(); !strings.Contains(got, "loading") {
		t.Fatalf("expected loading view before the first resize, got %q", got)
	}

	m, _ = m.Update(tea.WindowSizeMsg{Width: 20, Height: 10})
	view := m.View()
	if !strings.Contains(view, "hello") {
		t.Fatalf("expected content in view, got:\n%s", view)
	}
	header := strings.SplitN(view, "\n", 2)[0]
	if w := xansi.StringWidth(header); w > 20 {
		t.Fatalf("expected header truncated to 20 cells, got %d: %q", w, header)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestLoad_AppliesGates(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	locked, err := st.Create(ctx, store.NewItem{Filename: "l.txt", Locked: true}, strings.NewReader("x"), 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := load(ctx, st, locked.Name, perm.Parse("read")); err == nil {
		t.Fatalf("expected locked item to be rejected without admin")
	}
	c, err := load(ctx, st, locked.Name, perm.Parse("read,admin"))
	if err != nil || string(c.data) != "x" {
		t.Fatalf("expected admin to load locked item, got %q (%v)", c.data, err)
	}

	pending, err := st.Reserve(ctx, store.NewItem{Filename: "p.txt"})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	_, err = load(ctx, st, pending, perm.Parse("read,admin"))
	var incomplete *render.IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected incomplete error, got %v", err)
	}

	list, err := st.CreateList(ctx, "bundle", []string{locked.Name, "missing"}, false)
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	c, err = load(ctx, st, list.Name, perm.Parse("read"))
	if err != nil || len(c.files) != 1 || c.files[0].Name != locked.Name {
		t.Fatalf("expected list to resolve one known item, got %#v (%v)", c.files, err)
	}
}
