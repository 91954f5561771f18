// Package page implements the content mutation capability on an
// in-memory HTML document. It backs the agent in tests and in headless
// deployments where the page markup is fetched rather than rendered.
package page

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/weave/agent"
)

// Document wraps a parsed HTML tree.
type Document struct {
	root *html.Node
}

// Parse reads and parses an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("page: parse: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString parses an HTML document held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Title returns the text of the first <title> element, or "".
func (d *Document) Title() string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			title = strings.TrimSpace(collectText(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return title
}

// Render serializes the document back to HTML.
func (d *Document) Render() (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, d.root); err != nil {
		return "", fmt.Errorf("page: render: %w", err)
	}
	return sb.String(), nil
}

// Block is one candidate element in the document.
type Block struct {
	node *html.Node
}

// Text returns the block's visible text with whitespace collapsed.
func (b *Block) Text() string {
	return collectText(b.node)
}

// WordCount returns the number of whitespace-separated words in the block.
func (b *Block) WordCount() int {
	return len(strings.Fields(b.Text()))
}

// Mutator implements the agent's mutation capability against a Document.
type Mutator struct {
	doc       *Document
	selectors []string
	minWords  int
	maxWords  int
}

// Option configures a Mutator.
type Option func(*Mutator)

// WithSelectors overrides the candidate block selectors.
func WithSelectors(selectors ...string) Option {
	return func(m *Mutator) { m.selectors = selectors }
}

// WithWordRange overrides the qualifying word count window.
func WithWordRange(min, max int) Option {
	return func(m *Mutator) {
		m.minWords = min
		m.maxWords = max
	}
}

// NewMutator creates a Mutator over doc with the agent's default
// selectors and word count window.
func NewMutator(doc *Document, opts ...Option) *Mutator {
	m := &Mutator{
		doc:       doc,
		selectors: agent.DefaultSelectors,
		minWords:  agent.MinBlockWords,
		maxWords:  agent.MaxBlockWords,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindInsertionPoint returns the first candidate block that falls inside
// the word count window and, when keywords is non-empty, mentions at
// least one keyword. Candidates are scanned selector priority first,
// document order second.
func (m *Mutator) FindInsertionPoint(_ context.Context, keywords []string) (agent.Block, error) {
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	for _, n := range m.candidates() {
		b := &Block{node: n}
		wc := b.WordCount()
		if wc < m.minWords || wc > m.maxWords {
			continue
		}
		if len(lowered) > 0 && !mentionsAny(strings.ToLower(b.Text()), lowered) {
			continue
		}
		return b, nil
	}
	return nil, agent.ErrNoInsertionPoint
}

// candidates collects matching blocks across all selectors, deduplicated
// by node so a paragraph matched by several selectors keeps only its
// highest-priority slot.
func (m *Mutator) candidates() []*html.Node {
	seen := make(map[*html.Node]bool)
	var out []*html.Node
	for _, sel := range m.selectors {
		for _, n := range querySelectorAll(m.doc.root, sel) {
			if seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func mentionsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// VerifyLink reports whether the document contains at least one visible
// anchor whose href equals targetURL. Visibility here means no ancestor
// carries a hidden attribute or an inline display:none / visibility:hidden.
func (m *Mutator) VerifyLink(_ context.Context, targetURL string) (bool, error) {
	found := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.A && getAttr(n, "href") == targetURL {
			if isVisible(n) {
				found = true
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(m.doc.root)
	return found, nil
}

func isVisible(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if hasAttr(p, "hidden") {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(getAttr(p, "style")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

// collectText extracts visible text from a subtree, skipping script and
// style, collapsing runs of whitespace to single spaces.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}
