package salience

import (
	"math"
	"regexp"
	"strings"
)

// Density computes, for each phrase, the percentage of the text it covers:
// whole-word case-insensitive matches divided by the total tokenizable
// word count, times 100, rounded to 2 decimals. Phrases are reported in
// lowercase, matching the Rank output.
func Density(text string, phrases []string) map[string]float64 {
	out := make(map[string]float64, len(phrases))
	total := len(Tokenize(text))
	if total == 0 {
		for _, p := range phrases {
			out[strings.ToLower(p)] = 0
		}
		return out
	}

	for _, p := range phrases {
		phrase := strings.ToLower(strings.TrimSpace(p))
		if phrase == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
		if err != nil {
			out[phrase] = 0
			continue
		}
		n := len(re.FindAllStringIndex(text, -1))
		out[phrase] = math.Round(float64(n)/float64(total)*100*100) / 100
	}
	return out
}
