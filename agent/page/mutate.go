package page

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/weave/agent"
)

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*`)

// splitSentences breaks text on sentence-ending punctuation, keeping the
// punctuation attached to its sentence. Empty segments are dropped.
func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Mutate rewrites block in place as:
//
//	first sentence + connector + <a href=... rel=noopener>anchor</a> + "." + remaining sentences
//
// A block with fewer than one sentence of trailing text cannot absorb a
// link this way, so anything that splits into fewer than two sentences
// is rejected with ErrContentTooShort and left untouched.
func (m *Mutator) Mutate(_ context.Context, block agent.Block, link agent.Link, connector string) error {
	b, ok := block.(*Block)
	if !ok {
		return fmt.Errorf("page: mutate: foreign block type %T", block)
	}
	if connector == "" {
		connector = agent.DefaultConnector
	}

	sentences := splitSentences(b.Text())
	if len(sentences) < 2 {
		return agent.ErrContentTooShort
	}
	first := sentences[0]
	rest := strings.Join(sentences[1:], " ")

	for c := b.node.FirstChild; c != nil; {
		next := c.NextSibling
		b.node.RemoveChild(c)
		c = next
	}

	anchor := &html.Node{
		Type:     html.ElementNode,
		Data:     "a",
		DataAtom: atom.A,
		Attr: []html.Attribute{
			{Key: "href", Val: link.URL},
			{Key: "rel", Val: "noopener"},
		},
	}
	anchor.AppendChild(&html.Node{Type: html.TextNode, Data: link.AnchorText})

	b.node.AppendChild(&html.Node{Type: html.TextNode, Data: first + connector})
	b.node.AppendChild(anchor)
	b.node.AppendChild(&html.Node{Type: html.TextNode, Data: ". " + rest})
	return nil
}
