package agent

import "context"

// Link is the element an instruction asks the agent to insert.
type Link struct {
	URL        string
	AnchorText string
}

// Block is one candidate text block on the page. Implementations carry
// whatever handle they need to find the block again during Mutate.
type Block interface {
	Text() string
	WordCount() int
}

// ContentMutator is the page mutation capability. The selection and
// mutation algorithm runs against this interface so it can be exercised
// on a synthetic in-memory document as well as a live browser page.
type ContentMutator interface {
	// FindInsertionPoint scans candidate blocks in priority and document
	// order and returns the first qualifying one, or ErrNoInsertionPoint.
	FindInsertionPoint(ctx context.Context, keywords []string) (Block, error)

	// Mutate rewrites block as: first sentence + connector + link +
	// "." + remaining text. Returns ErrContentTooShort when the block
	// has fewer than two sentences; the block is then left untouched.
	Mutate(ctx context.Context, block Block, link Link, connector string) error

	// VerifyLink reports whether at least one link on the page points at
	// targetURL and is actually visible in layout.
	VerifyLink(ctx context.Context, targetURL string) (bool, error)
}

// DefaultConnector joins the first sentence to the inserted link.
const DefaultConnector = " For further reading, see "

// InsertionMethod names the mutation strategy in execution results and
// attempt rows.
const InsertionMethod = "first-sentence-split"

// DefaultSelectors is the prioritized list of content-container selectors
// the agent scans for candidate blocks, most specific first.
var DefaultSelectors = []string{
	"article p",
	"main p",
	"[role=main] p",
	"#content p",
	".content p",
	".post-content p",
	".entry-content p",
	"body p",
}

// Word count bounds for a qualifying block: long enough to absorb a link
// without dominating it, short enough that the first-sentence split does
// not bury the link mid-wall-of-text.
const (
	MinBlockWords = 20
	MaxBlockWords = 100
)
