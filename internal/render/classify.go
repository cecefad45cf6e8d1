package render

import (
	"strings"

	"pastebox/internal/model"
)

// StrategyTag names how an item's content is presented.
type StrategyTag int

const (
	UnsupportedStrategy StrategyTag = iota
	ListStrategy
	TextStrategy
	ImageStrategy
	AudioStrategy
	VideoStrategy
	PdfStrategy
)

func (t StrategyTag) String() string {
	switch t {
	case ListStrategy:
		return "list"
	case TextStrategy:
		return "text"
	case ImageStrategy:
		return "image"
	case AudioStrategy:
		return "audio"
	case VideoStrategy:
		return "video"
	case PdfStrategy:
		return "pdf"
	default:
		return "unsupported"
	}
}

// Classify maps a MIME type to a strategy. Rules are tried in order and the
// first match wins; anything unmatched is UnsupportedStrategy.
//
//  1. the list pseudo type                 -> list
//  2. any other internal pseudo type       -> unsupported
//  3. text/*                               -> text
//  4. image/*, audio/*, video/*            -> image, audio, video
//  5. application/pdf                      -> pdf
func Classify(contentType string) StrategyTag {
	switch {
	case contentType == model.ListType, contentType == model.ListTypeLegacy:
		return ListStrategy
	case strings.HasPrefix(contentType, model.InternalTypePrefix),
		strings.HasPrefix(contentType, model.InternalTypePrefixLegacy):
		return UnsupportedStrategy
	case strings.HasPrefix(contentType, "text/"):
		return TextStrategy
	case strings.HasPrefix(contentType, "image/"):
		return ImageStrategy
	case strings.HasPrefix(contentType, "audio/"):
		return AudioStrategy
	case strings.HasPrefix(contentType, "video/"):
		return VideoStrategy
	case contentType == "application/pdf":
		return PdfStrategy
	default:
		return UnsupportedStrategy
	}
}
