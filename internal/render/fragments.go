package render

import (
	"html/template"
	"strings"
)

// UnsupportedMessage is the text shown for content that cannot be rendered.
const UnsupportedMessage = "Can't render this content type."

var unsupportedFragment = template.HTML(`<p class="unsupported">` + template.HTMLEscapeString(UnsupportedMessage) + `</p>`)

var (
	imageTmpl = template.Must(template.New("image").Parse(`<img src="{{.Src}}" width="{{.Width}}" alt="{{.Alt}}">`))
	audioTmpl = template.Must(template.New("audio").Parse(`<audio controls src="{{.Src}}">html5 audio element not supported by your browser.</audio>`))
	videoTmpl = template.Must(template.New("video").Parse(`<video controls src="{{.Src}}">html5 video element not supported by your browser.</video>`))
	pdfTmpl   = template.Must(template.New("pdf").Parse(`<a href="{{.Src}}">Click to see PDF</a>`))
)

type mediaVM struct {
	Src   string
	Width int
	Alt   string
}

func execFragment(t *template.Template, data any) (template.HTML, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return template.HTML(b.String()), nil
}
