// Package render decides how a stored item is presented and produces the HTML
// fragment for it.
//
// The dispatcher only talks to its collaborators through the interfaces below:
// the item handle, the caller's capabilities, a URL builder and a resolver for
// list entries. It holds no mutable state and is safe for concurrent use.
package render

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"

	"pastebox/internal/log"
	"pastebox/internal/model"
	"pastebox/internal/perm"
)

// Handle is an open item, scoped to a single render.
type Handle interface {
	Name() string
	Meta() model.ItemMeta
	// ReadAll returns the full content and records the item as viewed.
	ReadAll(ctx context.Context) ([]byte, error)
}

// Capabilities reports what the caller may do.
type Capabilities interface {
	Has(p perm.Permission) bool
}

// NameResolver looks up list entries. Results come back in any order and
// unknown names are simply missing.
type NameResolver interface {
	FileInfos(ctx context.Context, names []string) ([]model.FileInfo, error)
}

type Config struct {
	URLs     URLBuilder
	Resolver NameResolver

	// Style is the chroma style used for highlight CSS (default "friendly").
	Style string
	// ImageWidth caps embedded images (default 800).
	ImageWidth int
}

type Dispatcher struct {
	urls       URLBuilder
	resolver   NameResolver
	imageWidth int
	hl         *highlighter
}

func New(cfg Config) (*Dispatcher, error) {
	if cfg.URLs == nil {
		return nil, errors.New("render: missing url builder")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("render: missing name resolver")
	}
	if cfg.ImageWidth <= 0 {
		cfg.ImageWidth = 800
	}
	return &Dispatcher{
		urls:       cfg.URLs,
		resolver:   cfg.Resolver,
		imageWidth: cfg.ImageWidth,
		hl:         newHighlighter(cfg.Style),
	}, nil
}

// Admit applies the completeness and lock gates, in that order. When the item
// is rejected it returns the rejection and false.
//
// Read permission is a precondition checked by the caller.
func Admit(meta model.ItemMeta, caps Capabilities) (Result, bool) {
	if !meta.Complete {
		return Result{Kind: Incomplete, Name: meta.Name, Heading: meta.Filename}, false
	}
	if meta.Locked && (caps == nil || !caps.Has(perm.Admin)) {
		return Result{Kind: Forbidden, Name: meta.Name}, false
	}
	return Result{}, true
}

// Render presents h for a caller holding caps. Rejections come back as
// Incomplete or Forbidden results; content problems never fail the render and
// fall back to the unsupported fragment instead.
func (d *Dispatcher) Render(ctx context.Context, h Handle, caps Capabilities) Result {
	meta := h.Meta()
	if res, ok := Admit(meta, caps); !ok {
		return res
	}
	frag, used := d.fragment(ctx, h, meta, Classify(meta.Type))
	return Result{Kind: Rendered, Name: meta.Name, Strategy: used, Fragment: frag}
}

func (d *Dispatcher) fragment(ctx context.Context, h Handle, meta model.ItemMeta, tag StrategyTag) (frag template.HTML, used StrategyTag) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorLog.Printf("render %s (%s): recovered: %v", meta.Name, meta.Type, r)
			frag, used = unsupportedFragment, UnsupportedStrategy
		}
	}()

	var err error
	switch tag {
	case ListStrategy:
		frag, err = d.renderList(ctx, h)
	case TextStrategy:
		frag, err = d.renderText(ctx, h, meta.Type)
	case ImageStrategy:
		frag, err = execFragment(imageTmpl, mediaVM{Src: d.urls.URL(meta.Name, EndpointDownload), Width: d.imageWidth, Alt: meta.DisplayName()})
	case AudioStrategy:
		frag, err = execFragment(audioTmpl, mediaVM{Src: d.urls.URL(meta.Name, EndpointDownload)})
	case VideoStrategy:
		frag, err = execFragment(videoTmpl, mediaVM{Src: d.urls.URL(meta.Name, EndpointDownload)})
	case PdfStrategy:
		frag, err = execFragment(pdfTmpl, mediaVM{Src: d.urls.URL(meta.Name, EndpointInline)})
	default:
		return unsupportedFragment, UnsupportedStrategy
	}
	if err != nil {
		log.WarningLog.Printf("render %s (%s) as %s: %v; showing fallback", meta.Name, meta.Type, tag, err)
		return unsupportedFragment, UnsupportedStrategy
	}
	return frag, tag
}

func (d *Dispatcher) renderText(ctx context.Context, h Handle, contentType string) (template.HTML, error) {
	data, err := h.ReadAll(ctx)
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	return d.hl.HTML(contentType, data)
}

// WriteHighlightCSS writes the stylesheet for highlighted text fragments.
func (d *Dispatcher) WriteHighlightCSS(w io.Writer) error {
	return d.hl.WriteCSS(w)
}
