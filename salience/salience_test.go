package salience_test

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/hazyhaar/weave/salience"
)

func rankOnly(t *testing.T, text string) []salience.Keyword {
	t.Helper()
	e := salience.New(salience.Options{}, nil)
	return e.Rank(context.Background(), text, "")
}

func TestRankDeterministic(t *testing.T) {
	text := "Search engine optimization improves search rankings. " +
		"Good search engine optimization needs good content."

	first := rankOnly(t, text)
	for i := 0; i < 5; i++ {
		again := rankOnly(t, text)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\n%v\nvs\n%v", i, first, again)
		}
	}
}

func TestRankPrefersMultiWordPhrases(t *testing.T) {
	kws := rankOnly(t, "The quick brown fox jumps. It is a fast animal.")
	if len(kws) == 0 {
		t.Fatal("empty ranking")
	}

	pos := func(phrase string) int {
		for i, k := range kws {
			if k.Phrase == phrase {
				return i
			}
		}
		return -1
	}

	trigram := pos("quick brown fox")
	unigram := pos("fox")
	if trigram < 0 {
		t.Fatalf("missing phrase %q in %v", "quick brown fox", kws)
	}
	if unigram >= 0 && trigram > unigram {
		t.Fatalf("%q ranked below %q", "quick brown fox", "fox")
	}
}

func TestRankDropsStopWordPhrases(t *testing.T) {
	kws := rankOnly(t, "The rise of the machines is near. The rise of the machines continues.")
	for _, k := range kws {
		fields := strings.Fields(k.Phrase)
		for _, edge := range []string{fields[0], fields[len(fields)-1]} {
			switch edge {
			case "the", "of", "is":
				t.Fatalf("phrase %q starts or ends with a stop-word", k.Phrase)
			}
		}
	}
}

func TestRankWithoutExtractorNeverEmpty(t *testing.T) {
	kws := rankOnly(t, "databases store structured records efficiently")
	if len(kws) == 0 {
		t.Fatal("statistical stage alone must produce a ranking")
	}
}

func TestRankExtractorFailureFallsBack(t *testing.T) {
	failing := salience.ExtractorFunc(func(ctx context.Context, text, langHint string) (*salience.Extraction, error) {
		return nil, errors.New("boom")
	})
	text := "content marketing strategies for content teams"

	withFailing := salience.New(salience.Options{}, failing).Rank(context.Background(), text, "")
	without := rankOnly(t, text)
	if !reflect.DeepEqual(withFailing, without) {
		t.Fatalf("failing extractor changed output:\n%v\nvs\n%v", withFailing, without)
	}
}

func TestMergeBlendsScores(t *testing.T) {
	// Content tokens: alpha beta alpha beta gamma.
	// Max weighted count is the bigram "alpha beta" (2 occurrences x 1.5 = 3),
	// so normalized("alpha") = 2/3.
	text := "alpha beta alpha beta gamma"
	sem := salience.ExtractorFunc(func(ctx context.Context, _, _ string) (*salience.Extraction, error) {
		return &salience.Extraction{Keywords: []salience.SemanticKeyword{
			{Phrase: "alpha", Score: 0.9},
		}}, nil
	})

	kws := salience.New(salience.Options{}, sem).Rank(context.Background(), text, "")

	want := 0.6*0.9 + 0.4*(2.0/3.0)
	for _, k := range kws {
		if k.Phrase == "alpha" {
			if math.Abs(k.Score-want) > 1e-9 {
				t.Fatalf("blended score = %v, want %v", k.Score, want)
			}
			return
		}
	}
	t.Fatalf("phrase alpha missing from %v", kws)
}

func TestMergeInsertsSemanticOnlyPhrases(t *testing.T) {
	sem := salience.ExtractorFunc(func(ctx context.Context, _, _ string) (*salience.Extraction, error) {
		return &salience.Extraction{Keywords: []salience.SemanticKeyword{
			{Phrase: "machine learning", Score: 0.8},
		}}, nil
	})

	kws := salience.New(salience.Options{}, sem).Rank(context.Background(), "neural networks classify images", "")
	for _, k := range kws {
		if k.Phrase == "machine learning" {
			if k.Score != 0.8 {
				t.Fatalf("semantic-only score = %v, want 0.8", k.Score)
			}
			return
		}
	}
	t.Fatal("semantic-only phrase not inserted")
}

func TestRankTruncatesToFinalLimit(t *testing.T) {
	text := strings.Repeat("apple banana cherry durian elderberry fig grape honeydew kiwi lemon mango nectarine orange papaya quince raspberry ", 3)
	kws := salience.New(salience.Options{FinalLimit: 5}, nil).Rank(context.Background(), text, "")
	if len(kws) != 5 {
		t.Fatalf("got %d keywords, want 5", len(kws))
	}
}

func TestRankEmptyText(t *testing.T) {
	if kws := rankOnly(t, ""); kws != nil {
		t.Fatalf("expected nil for empty text, got %v", kws)
	}
	if kws := rankOnly(t, "a an of"); kws != nil {
		t.Fatalf("expected nil for stop-words only, got %v", kws)
	}
}

func TestDensity(t *testing.T) {
	text := "Go is great. Go go go!"
	d := salience.Density(text, []string{"go", "great", "absent"})

	// 6 tokenizable words, 4 whole-word matches of "go".
	if got, want := d["go"], 66.67; got != want {
		t.Fatalf("density(go) = %v, want %v", got, want)
	}
	if got, want := d["great"], 16.67; got != want {
		t.Fatalf("density(great) = %v, want %v", got, want)
	}
	if got := d["absent"]; got != 0 {
		t.Fatalf("density(absent) = %v, want 0", got)
	}
}

func TestDensityWholeWordOnly(t *testing.T) {
	d := salience.Density("the cart in the carton", []string{"cart"})
	// "carton" must not count as a match for "cart".
	if got, want := d["cart"], 20.0; got != want {
		t.Fatalf("density(cart) = %v, want %v", got, want)
	}
}

func TestDensityEmptyText(t *testing.T) {
	d := salience.Density("", []string{"anything"})
	if d["anything"] != 0 {
		t.Fatalf("density on empty text = %v, want 0", d["anything"])
	}
}
