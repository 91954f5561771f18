// Package capture turns raw page HTML into the bounded plain-text
// excerpt a fingerprint submission carries.
package capture

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/hazyhaar/weave/agent/page"
)

// DefaultLimit matches the server-side content excerpt bound.
const DefaultLimit = 2000

// Capture is the fingerprint payload extracted from one page.
type Capture struct {
	Title string
	Text  string
}

// FromHTML extracts the page title and a whitespace-normalized text
// excerpt of at most limit runes. pageURL resolves relative links during
// conversion; limit <= 0 applies DefaultLimit.
func FromHTML(htmlSrc, pageURL string, limit int) (*Capture, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	doc, err := page.ParseString(htmlSrc)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	conv := converter.NewConverter(
		converter.WithPlugins(base.NewBasePlugin(), commonmark.NewCommonmarkPlugin()),
	)
	var opts []converter.ConvertOptionFunc
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		opts = append(opts, converter.WithDomain(u.Scheme+"://"+u.Host))
	}
	md, err := conv.ConvertString(htmlSrc, opts...)
	if err != nil {
		return nil, fmt.Errorf("capture: convert: %w", err)
	}

	text := strings.Join(strings.Fields(md), " ")
	if runes := []rune(text); len(runes) > limit {
		text = string(runes[:limit])
	}

	return &Capture{Title: doc.Title(), Text: text}, nil
}
