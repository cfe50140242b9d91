package covers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pagetrail/pagetrail-server/internal/color"
	"github.com/pagetrail/pagetrail-server/internal/normalize"
)

// DefaultPlaceholderBase is a public placeholder image service.
const DefaultPlaceholderBase = "https://placehold.co"

// Placeholder builds deterministic fallback cover URLs of the form
// {base}/{W}x{H}/{bg}/{fg}?text={title}.
type Placeholder struct {
	BaseURL string
	Width   int
	Height  int
}

// NewPlaceholder returns a Placeholder with book-cover proportions.
func NewPlaceholder(baseURL string) Placeholder {
	if baseURL == "" {
		baseURL = DefaultPlaceholderBase
	}
	return Placeholder{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Width:   400,
		Height:  600,
	}
}

// URL returns the placeholder for seed. The background colour is keyed on
// the slug of seed, so "Dune" and " dune " share a colour.
func (p Placeholder) URL(seed string) string {
	text := normalize.Text(seed)
	key := normalize.Slugify(text)
	if key == "" {
		key = text
	}

	bg := color.ForSeed(key)
	fg := color.TextOn(bg)

	return fmt.Sprintf("%s/%dx%d/%s/%s?text=%s",
		p.BaseURL, p.Width, p.Height, bg, fg, url.QueryEscape(text))
}

// Owns reports whether raw was produced by this placeholder service.
func (p Placeholder) Owns(raw string) bool {
	return strings.HasPrefix(raw, p.BaseURL+"/")
}
