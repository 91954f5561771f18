package salience

import (
	"sort"
	"strings"
	"unicode"
)

// Tokenize lowercases text, strips everything that is not a letter or
// digit, and splits on whitespace. It is the shared word model for both
// ranking and density: the denominator of every density figure is the
// length of this token slice.
func Tokenize(text string) []string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)
	return strings.Fields(mapped)
}

// contentTokens drops stop-words and tokens of length <= 2, leaving the
// sequence that n-grams are built over. Because stop-words never enter
// this sequence, no ranked phrase can start or end with one. Dangling
// fragments like "the rise of" are impossible by construction.
func contentTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len(t) <= 2 || stopwords[t] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// heuristicRank counts weighted n-grams over the content tokens of text
// and returns the top limit phrases sorted by weighted count descending.
// Pure function of its input: ties break on the phrase string.
func heuristicRank(text string, limit int) []Keyword {
	tokens := contentTokens(Tokenize(text))
	if len(tokens) == 0 {
		return nil
	}

	counts := make(map[string]float64)
	for i, t := range tokens {
		counts[t] += unigramWeight
		if i+1 < len(tokens) {
			counts[t+" "+tokens[i+1]] += bigramWeight
		}
		if i+2 < len(tokens) {
			counts[t+" "+tokens[i+1]+" "+tokens[i+2]] += trigramWeight
		}
	}

	ranked := make([]Keyword, 0, len(counts))
	for phrase, score := range counts {
		ranked = append(ranked, Keyword{Phrase: phrase, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Phrase < ranked[j].Phrase
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
