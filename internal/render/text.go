package render

import (
	"errors"
	"html/template"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

var (
	errNotUTF8 = errors.New("content is not valid UTF-8")
	errNoLexer = errors.New("no highlighter for content type")
)

// LineAnchorPrefix prefixes the id of every highlighted line ("L1", "L2", ...).
const LineAnchorPrefix = "L"

type highlighter struct {
	style     *chroma.Style
	formatter *html.Formatter
}

func newHighlighter(style string) *highlighter {
	if strings.TrimSpace(style) == "" {
		style = "friendly"
	}
	return &highlighter{
		style: styles.Get(style),
		formatter: html.New(
			html.WithClasses(true),
			html.WithLineNumbers(true),
			html.LineNumbersInTable(true),
			html.WithLinkableLineNumbers(true, LineAnchorPrefix),
		),
	}
}

// LexerFor returns the lexer registered for exactly contentType (parameters
// ignored), or nil. When several lexers claim the type, the one listing it as
// its primary type wins, and text/plain is always the plaintext lexer.
func LexerFor(contentType string) chroma.Lexer {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	if mt == "" {
		return nil
	}
	if mt == "text/plain" {
		if l := lexers.Get("plaintext"); l != nil {
			return l
		}
	}
	var first chroma.Lexer
	for _, l := range lexers.GlobalLexerRegistry.Lexers {
		types := l.Config().MimeTypes
		for i, t := range types {
			if t != mt {
				continue
			}
			if i == 0 {
				return l
			}
			if first == nil {
				first = l
			}
		}
	}
	return first
}

func (h *highlighter) HTML(contentType string, data []byte) (template.HTML, error) {
	if !utf8.Valid(data) {
		return "", errNotUTF8
	}
	lexer := LexerFor(contentType)
	if lexer == nil {
		return "", errNoLexer
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, string(data))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := h.formatter.Format(&b, h.style, it); err != nil {
		return "", err
	}
	// chroma escapes token text; the markup is its own.
	return template.HTML(b.String()), nil
}

func (h *highlighter) WriteCSS(w io.Writer) error {
	return h.formatter.WriteCSS(w, h.style)
}
