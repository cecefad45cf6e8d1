package tui

import (
	"fmt"
	"mime"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"pastebox/internal/log"
	"pastebox/internal/render"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
)

type bodyOptions struct {
	Profile termenv.Profile
	Style   string
}

var markdownTypes = map[string]bool{
	"text/markdown":   true,
	"text/x-markdown": true,
}

// renderBody renders c for a terminal width columns wide. Like the web
// renderer it never fails: problems fall back to a short message.
func renderBody(c content, width int, opts bodyOptions) string {
	tag := render.Classify(c.meta.Type)
	switch tag {
	case render.TextStrategy:
		out, err := renderText(c, width, opts)
		if err != nil {
			log.WarningLog.Printf("view %s (%s): %v; showing fallback", c.meta.Name, c.meta.Type, err)
			return render.UnsupportedMessage
		}
		return out
	case render.ListStrategy:
		return renderFileList(c)
	case render.ImageStrategy, render.AudioStrategy, render.VideoStrategy, render.PdfStrategy:
		return fmt.Sprintf("This is %s content (%s, %s).\nOpen it in the web UI or download it to view.",
			tag, c.meta.Type, humanize.IBytes(uint64(c.meta.Size)))
	default:
		return render.UnsupportedMessage
	}
}

func renderText(c content, width int, opts bodyOptions) (string, error) {
	if !utf8.Valid(c.data) {
		return "", fmt.Errorf("content is not valid UTF-8")
	}
	src := string(c.data)

	mt, _, err := mime.ParseMediaType(c.meta.Type)
	if err == nil && markdownTypes[mt] {
		return renderMarkdown(src, width, markdownStyle(opts.Profile))
	}

	lexer := render.LexerFor(c.meta.Type)
	if lexer == nil {
		return "", fmt.Errorf("no lexer for %s", c.meta.Type)
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, src)
	if err != nil {
		return "", err
	}
	style := styles.Get(opts.Style)
	var b strings.Builder
	if err := terminalFormatter(opts.Profile).Format(&b, style, it); err != nil {
		return "", err
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func renderFileList(c content) string {
	if len(c.files) == 0 {
		return styleMuted.Render("(empty list)")
	}
	render.SortFileInfos(c.files)

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSIZE\tTYPE\tUPLOADED\tNAME")
	for _, f := range c.files {
		label := f.Filename
		if label == "" {
			label = f.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", label, humanize.IBytes(uint64(f.Size)), f.Type,
			humanize.Time(time.Unix(f.UploadedAt, 0)), f.Name)
	}
	_ = tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}
