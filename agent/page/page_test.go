package page_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/weave/agent"
	"github.com/hazyhaar/weave/agent/page"
)

const articlePara = "Gardening in raised beds keeps the soil loose and the weeds manageable across seasons. " +
	"Many growers rotate crops each spring to keep pests from settling in."

const bodyPara = "Outside the article there is a navigation teaser paragraph that happens to be long enough " +
	"to land inside the qualifying word count window for candidate blocks."

const testDoc = `<html><head><title>Garden Notes</title></head><body>
<p>` + bodyPara + `</p>
<article>
<p>Too short to qualify here.</p>
<p>` + articlePara + `</p>
</article>
</body></html>`

func mustParse(t *testing.T, src string) *page.Document {
	t.Helper()
	doc, err := page.ParseString(src)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestTitle(t *testing.T) {
	doc := mustParse(t, testDoc)
	if got := doc.Title(); got != "Garden Notes" {
		t.Fatalf("title = %q", got)
	}
}

func TestFindInsertionPointPrefersArticleOverBody(t *testing.T) {
	doc := mustParse(t, testDoc)
	m := page.NewMutator(doc)

	b, err := m.FindInsertionPoint(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	// The body paragraph comes first in document order, but "article p"
	// outranks "body p" in selector priority.
	if !strings.Contains(b.Text(), "raised beds") {
		t.Fatalf("picked wrong block: %q", b.Text())
	}
}

func TestFindInsertionPointSkipsOutOfRangeBlocks(t *testing.T) {
	doc := mustParse(t, `<html><body><article><p>Tiny.</p></article></body></html>`)
	m := page.NewMutator(doc)

	_, err := m.FindInsertionPoint(context.Background(), nil)
	if !errors.Is(err, agent.ErrNoInsertionPoint) {
		t.Fatalf("err = %v, want ErrNoInsertionPoint", err)
	}
}

func TestFindInsertionPointFiltersByKeyword(t *testing.T) {
	doc := mustParse(t, testDoc)
	m := page.NewMutator(doc)
	ctx := context.Background()

	if _, err := m.FindInsertionPoint(ctx, []string{"seo"}); !errors.Is(err, agent.ErrNoInsertionPoint) {
		t.Fatalf("err = %v, want ErrNoInsertionPoint for unmatched keywords", err)
	}

	b, err := m.FindInsertionPoint(ctx, []string{"seo", "crops"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.Text(), "crops") {
		t.Fatalf("picked block without keyword: %q", b.Text())
	}
}

func TestMutateSplitsFirstSentence(t *testing.T) {
	doc := mustParse(t, testDoc)
	m := page.NewMutator(doc)
	ctx := context.Background()

	b, err := m.FindInsertionPoint(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	link := agent.Link{URL: "https://partner.test/tools", AnchorText: "garden tools"}
	if err := m.Mutate(ctx, b, link, ""); err != nil {
		t.Fatal(err)
	}

	out, err := doc.Render()
	if err != nil {
		t.Fatal(err)
	}
	anchor := `<a href="https://partner.test/tools" rel="noopener">garden tools</a>`
	if !strings.Contains(out, anchor) {
		t.Fatalf("rendered document missing anchor:\n%s", out)
	}
	// First sentence, then connector, then link, then the remainder.
	idx := strings.Index(out, "manageable across seasons.")
	connIdx := strings.Index(out, "For further reading, see")
	anchorIdx := strings.Index(out, anchor)
	restIdx := strings.Index(out, "Many growers rotate crops")
	if !(idx < connIdx && connIdx < anchorIdx && anchorIdx < restIdx) {
		t.Fatalf("mutation out of order:\n%s", out)
	}

	ok, err := m.VerifyLink(ctx, "https://partner.test/tools")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("inserted link not verified")
	}
}

func TestMutateRejectsSingleSentenceBlock(t *testing.T) {
	doc := mustParse(t, `<html><body><article><p>One single sentence that goes on long enough to pass the word count window but never actually ends with more to say</p></article></body></html>`)
	m := page.NewMutator(doc)
	ctx := context.Background()

	b, err := m.FindInsertionPoint(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	before := b.Text()

	err = m.Mutate(ctx, b, agent.Link{URL: "https://x.test/", AnchorText: "x"}, "")
	if !errors.Is(err, agent.ErrContentTooShort) {
		t.Fatalf("err = %v, want ErrContentTooShort", err)
	}
	if b.Text() != before {
		t.Fatal("rejected mutation still altered the block")
	}
}

func TestVerifyLinkIgnoresHiddenAnchors(t *testing.T) {
	doc := mustParse(t, `<html><body>
<div style="display: none"><a href="https://hidden.test/">hidden</a></div>
<p><a href="https://visible.test/">visible</a></p>
</body></html>`)
	m := page.NewMutator(doc)
	ctx := context.Background()

	if ok, _ := m.VerifyLink(ctx, "https://hidden.test/"); ok {
		t.Fatal("hidden anchor reported visible")
	}
	if ok, _ := m.VerifyLink(ctx, "https://visible.test/"); !ok {
		t.Fatal("visible anchor not found")
	}
	if ok, _ := m.VerifyLink(ctx, "https://absent.test/"); ok {
		t.Fatal("absent anchor reported present")
	}
}
