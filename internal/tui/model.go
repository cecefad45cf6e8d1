package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

type viewerModel struct {
	c    content
	opts bodyOptions

	vp     viewport.Model
	ready  bool
	width  int
	height int
}

func newViewerModel(c content, opts bodyOptions) viewerModel {
	return viewerModel{c: c, opts: opts}
}

func (m viewerModel) Init() tea.Cmd { return nil }

func (m viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := msg.Height - lipglossHeight(m.headerView()) - lipglossHeight(m.footerView())
		if h < 1 {
			h = 1
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.vp.Width, m.vp.Height = msg.Width, h
		}
		// Markdown wraps to the width, so re-render on every resize.
		m.vp.SetContent(renderBody(m.c, msg.Width, m.opts))
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m viewerModel) View() string {
	if !m.ready {
		return "loading…"
	}
	return m.headerView() + "\n" + m.vp.View() + "\n" + m.footerView()
}

func (m viewerModel) headerView() string {
	meta := m.c.meta
	title := styleHeader.Render(meta.DisplayName())
	info := styleMuted.Render(fmt.Sprintf("  %s · %s · %s", meta.Type, humanize.IBytes(uint64(meta.Size)), meta.Name))
	return truncateLine(title+info, m.width)
}

func (m viewerModel) footerView() string {
	pct := 0.0
	if m.ready {
		pct = m.vp.ScrollPercent() * 100
	}
	return truncateLine(styleMuted.Render(fmt.Sprintf("%3.f%%  q quit · ↑/↓ scroll · pgup/pgdn page", pct)), m.width)
}

// truncateLine cuts s to width cells, keeping escape sequences intact.
func truncateLine(s string, width int) string {
	if width <= 0 || xansi.StringWidth(s) <= width {
		return s
	}
	return xansi.Truncate(s, width, "…")
}

func lipglossHeight(s string) int {
	return strings.Count(s, "\n") + 1
}
