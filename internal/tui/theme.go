package tui

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	colorMuted  = lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
	colorAccent = lipgloss.AdaptiveColor{Light: "#1d4ed8", Dark: "#93c5fd"}

	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleMuted  = lipgloss.NewStyle().Foreground(colorMuted)
)

// applyColorProfilePreference sets Lip Gloss's color profile for the viewer and
// returns it so code highlighting can match.
//
// Only NO_COLOR is honored; CLICOLOR is for non-interactive output.
func applyColorProfilePreference() termenv.Profile {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return termenv.Ascii
	}

	profile := termenv.ColorProfile()

	// TERM/COLORTERM can report more than the detector finds.
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	colorterm := strings.ToLower(strings.TrimSpace(os.Getenv("COLORTERM")))
	if strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit") {
		if profile != termenv.Ascii {
			profile = termenv.TrueColor
		}
	} else if strings.Contains(term, "256color") && profile == termenv.ANSI {
		profile = termenv.ANSI256
	}

	lipgloss.SetColorProfile(profile)
	return profile
}

// terminalFormatter picks the chroma formatter matching profile.
func terminalFormatter(profile termenv.Profile) chroma.Formatter {
	switch profile {
	case termenv.TrueColor:
		return formatters.TTY16m
	case termenv.ANSI256:
		return formatters.TTY256
	case termenv.ANSI:
		return formatters.TTY16
	default:
		return formatters.NoOp
	}
}

// markdownStyle is the glamour style for profile. PASTEBOX_TUI_THEME=light|dark
// overrides the default dark palette.
func markdownStyle(profile termenv.Profile) string {
	if profile == termenv.Ascii {
		return "notty"
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("PASTEBOX_TUI_THEME"))) {
	case "light":
		return "light"
	}
	return "dark"
}
