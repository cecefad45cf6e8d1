package render

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := map[string]StrategyTag{
		"application/x-internal-list":   ListStrategy,
		"text/x-bepasty-list":           ListStrategy,
		"application/x-internal-other":  UnsupportedStrategy,
		"application/x-internal-list2":  UnsupportedStrategy,
		"text/x-bepasty-redirect":       UnsupportedStrategy,
		"text/plain":                    TextStrategy,
		"text/x-python":                 TextStrategy,
		"text/":                         TextStrategy,
		"image/png":                     ImageStrategy,
		"image/svg+xml":                 ImageStrategy,
		"audio/ogg":                     AudioStrategy,
		"video/webm":                    VideoStrategy,
		"application/pdf":               PdfStrategy,
		"application/pdf; charset=x":    UnsupportedStrategy,
		"application/octet-stream":      UnsupportedStrategy,
		"application/x-internal":        UnsupportedStrategy,
		"Text/Plain":                    UnsupportedStrategy,
		"":                              UnsupportedStrategy,
		"textual/plain":                 UnsupportedStrategy,
		"application/x-internal-list\n": UnsupportedStrategy,
	}
	for ct, want := range cases {
		assert.Equal(t, want, Classify(ct), "Classify(%q)", ct)
	}
}

func TestClassify_TotalAndPure(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	prefixes := []string{"", "text/", "image/", "audio/", "video/", "application/", "application/x-internal-"}
	for i := 0; i < 2000; i++ {
		b := make([]byte, r.Intn(24))
		r.Read(b)
		ct := prefixes[r.Intn(len(prefixes))] + string(b)

		got := Classify(ct)
		assert.Equal(t, got, Classify(ct))
		assert.GreaterOrEqual(t, int(got), int(UnsupportedStrategy))
		assert.LessOrEqual(t, int(got), int(PdfStrategy))
	}
}

func TestStrategyTagString(t *testing.T) {
	assert.Equal(t, "list", ListStrategy.String())
	assert.Equal(t, "unsupported", UnsupportedStrategy.String())
	assert.Equal(t, "unsupported", StrategyTag(99).String())
}
