package render

import "net/url"

type Endpoint string

const (
	EndpointDisplay  Endpoint = "display"
	EndpointDownload Endpoint = "download"
	EndpointInline   Endpoint = "inline"
)

// URLBuilder returns a URL for one of an item's endpoints.
type URLBuilder interface {
	URL(name string, e Endpoint) string
}

// PathURLs builds the web UI's URLs: <Base>/<name>, <Base>/<name>/+download
// and <Base>/<name>/+inline. An empty Base yields root-relative URLs.
type PathURLs struct {
	Base string
}

func (p PathURLs) URL(name string, e Endpoint) string {
	u := p.Base + "/" + url.PathEscape(name)
	switch e {
	case EndpointDownload:
		u += "/+download"
	case EndpointInline:
		u += "/+inline"
	}
	return u
}
