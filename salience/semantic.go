package salience

import "context"

// maxSemanticKeywords caps how many entries the semantic stage may
// contribute, regardless of what the extractor returns.
const maxSemanticKeywords = 15

// SemanticKeyword is one entry from the semantic extractor.
type SemanticKeyword struct {
	Phrase string  `json:"phrase"`
	Score  float64 `json:"score"`
	Type   string  `json:"type,omitempty"`
}

// Extraction is the structured result of a semantic extraction call.
type Extraction struct {
	Lang     string            `json:"lang,omitempty"`
	Keywords []SemanticKeyword `json:"keywords"`
}

// Extractor is the semantic extraction capability. Implementations must
// fail closed: on timeout, malformed output, or missing credentials they
// return an error (or nil, nil) and never panic into the caller. The
// Engine treats every error as "stage absent".
type Extractor interface {
	Extract(ctx context.Context, text, langHint string) (*Extraction, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, text, langHint string) (*Extraction, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(ctx context.Context, text, langHint string) (*Extraction, error) {
	return f(ctx, text, langHint)
}
