package capture_test

import (
	"strings"
	"testing"

	"github.com/hazyhaar/weave/agent/capture"
)

func TestFromHTML(t *testing.T) {
	src := `<html><head><title>Garden Notes</title></head><body>
<h1>Raised Beds</h1>
<p>Gardening in raised beds keeps the soil loose.</p>
<script>console.log("noise")</script>
</body></html>`

	c, err := capture.FromHTML(src, "https://host.test/article", 0)
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "Garden Notes" {
		t.Fatalf("title = %q", c.Title)
	}
	if !strings.Contains(c.Text, "Raised Beds") || !strings.Contains(c.Text, "soil loose") {
		t.Fatalf("text = %q", c.Text)
	}
	if strings.Contains(c.Text, "console.log") {
		t.Fatalf("script leaked into text: %q", c.Text)
	}
	if strings.ContainsAny(c.Text, "\n\t") {
		t.Fatalf("text not whitespace-normalized: %q", c.Text)
	}
}

func TestFromHTMLTruncates(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<html><body><p>`)
	for i := 0; i < 500; i++ {
		sb.WriteString("lorem ipsum dolor ")
	}
	sb.WriteString(`</p></body></html>`)

	c, err := capture.FromHTML(sb.String(), "https://host.test/", 100)
	if err != nil {
		t.Fatal(err)
	}
	if got := len([]rune(c.Text)); got > 100 {
		t.Fatalf("text length = %d, want <= 100", got)
	}
}
