// Package format renders CLI results as JSON envelopes or aligned text.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type Format string

const (
	JSON Format = "json"
	Text Format = "text"
)

// Parse validates a --format value. Empty means JSON.
func Parse(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return JSON, nil
	case JSON, Text:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format: %s (want json or text)", s)
	}
}

// Write renders v to w. pretty only affects JSON.
func Write(w io.Writer, v any, f Format, pretty bool) error {
	switch f {
	case "", JSON:
		return writeJSON(w, v, pretty)
	case Text:
		return writeText(w, v)
	default:
		return fmt.Errorf("unknown format: %s", f)
	}
}

// writeJSON leaves <, > and & unescaped: rendered fragments are HTML and are
// read by people as often as by programs.
func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
