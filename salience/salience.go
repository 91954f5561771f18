// Package salience extracts and ranks candidate phrases from page text.
//
// Ranking is two-stage. A statistical n-gram pass always runs and never
// fails: it weights bigrams and trigrams above single tokens so that
// specific multi-word phrases beat generic ones. An optional semantic
// extractor refines the result when configured; any failure there is
// swallowed and the statistical ranking stands alone.
//
// Given identical input text and identical extractor output, Rank is
// deterministic: ties are broken on the phrase itself, never on map order.
package salience

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// Keyword is one ranked phrase.
type Keyword struct {
	Phrase string  `json:"phrase"`
	Score  float64 `json:"score"`
}

// Weights applied per n-gram size in the statistical stage. Longer phrases
// carry more intent, so their raw counts are inflated before ranking.
const (
	unigramWeight = 1.0
	bigramWeight  = 1.5
	trigramWeight = 2.0
)

// Blend factors for phrases present in both stages.
const (
	semanticBlend  = 0.6
	heuristicBlend = 0.4
)

// Options configures an Engine.
type Options struct {
	// HeuristicLimit caps the statistical stage output. Default: 25.
	HeuristicLimit int
	// FinalLimit caps the merged ranking. Default: 15.
	FinalLimit int
	// SemanticBudget is the maximum number of characters submitted to the
	// semantic extractor. Default: 6000.
	SemanticBudget int
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.HeuristicLimit <= 0 {
		o.HeuristicLimit = 25
	}
	if o.FinalLimit <= 0 {
		o.FinalLimit = 15
	}
	if o.SemanticBudget <= 0 {
		o.SemanticBudget = 6000
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Engine ranks keywords. The zero value is not usable; construct with New.
type Engine struct {
	extractor Extractor
	opts      Options
}

// New creates an Engine. extractor may be nil, in which case only the
// statistical stage runs.
func New(opts Options, extractor Extractor) *Engine {
	opts.defaults()
	return &Engine{extractor: extractor, opts: opts}
}

// Rank returns the merged keyword ranking for text, most salient first.
// It never returns an error: the semantic stage is best-effort and its
// failures are only logged.
func (e *Engine) Rank(ctx context.Context, text, langHint string) []Keyword {
	heur := heuristicRank(text, e.opts.HeuristicLimit)
	if len(heur) == 0 {
		return nil
	}

	// Normalize statistical scores to [0,1] by the stage maximum.
	max := heur[0].Score
	byPhrase := make(map[string]float64, len(heur))
	order := make([]string, 0, len(heur))
	for _, k := range heur {
		p := strings.ToLower(k.Phrase)
		if _, dup := byPhrase[p]; dup {
			continue
		}
		byPhrase[p] = k.Score / max
		order = append(order, p)
	}

	if e.extractor != nil {
		ext := e.semantic(ctx, text, langHint)
		for _, sk := range ext {
			p := strings.ToLower(strings.TrimSpace(sk.Phrase))
			if p == "" {
				continue
			}
			score := clamp01(sk.Score)
			if h, ok := byPhrase[p]; ok {
				byPhrase[p] = semanticBlend*score + heuristicBlend*h
			} else {
				byPhrase[p] = score
				order = append(order, p)
			}
		}
	}

	ranked := make([]Keyword, 0, len(order))
	for _, p := range order {
		ranked = append(ranked, Keyword{Phrase: p, Score: byPhrase[p]})
	}

	// Multi-word phrases first: they are more specific and less ambiguous
	// than single tokens. Score breaks ties within a length class, and the
	// phrase itself breaks score ties so the ordering is total.
	sort.SliceStable(ranked, func(i, j int) bool {
		li := len(strings.Fields(ranked[i].Phrase))
		lj := len(strings.Fields(ranked[j].Phrase))
		if li != lj {
			return li > lj
		}
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Phrase < ranked[j].Phrase
	})

	if len(ranked) > e.opts.FinalLimit {
		ranked = ranked[:e.opts.FinalLimit]
	}
	return ranked
}

// semantic runs the optional extractor and returns its keywords, or nil on
// any failure. Errors never propagate past this point.
func (e *Engine) semantic(ctx context.Context, text, langHint string) []SemanticKeyword {
	clipped := text
	if len(clipped) > e.opts.SemanticBudget {
		clipped = clipped[:e.opts.SemanticBudget]
	}

	ext, err := e.extractor.Extract(ctx, clipped, langHint)
	if err != nil {
		e.opts.Logger.Warn("salience: semantic stage failed, using statistical ranking only", "error", err)
		return nil
	}
	if ext == nil || len(ext.Keywords) == 0 {
		return nil
	}

	kws := ext.Keywords
	if len(kws) > maxSemanticKeywords {
		kws = kws[:maxSemanticKeywords]
	}
	return kws
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
