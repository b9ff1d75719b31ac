package lexical

import (
	"reflect"
	"testing"
)

func TestTermsNgramExpansion(t *testing.T) {
	p := NewPipeline("en", 2, nil)

	terms := p.Terms("stock market rally")
	want := []string{
		"stock", "stock market",
		"market", "market ralli",
		"ralli",
	}
	if !reflect.DeepEqual(terms, want) {
		t.Errorf("Terms = %v, want %v", terms, want)
	}
}

func TestTermsDeterminism(t *testing.T) {
	p := NewPipeline("en", 3, []string{"the"})

	text := "The quick brown fox jumps over the lazy dog"
	first := p.Terms(text)
	for i := 0; i < 10; i++ {
		if got := p.Terms(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: Terms = %v, want %v", i, got, first)
		}
	}
}

func TestTermsExclusionBreaksRun(t *testing.T) {
	p := NewPipeline("en", 2, []string{"market"})

	// "market" is excluded, so no bigram may bridge across it.
	terms := p.Terms("stock market rally")
	want := []string{"stock", "ralli"}
	if !reflect.DeepEqual(terms, want) {
		t.Errorf("Terms = %v, want %v", terms, want)
	}
}

func TestTermsDropsShortAndNumeric(t *testing.T) {
	p := NewPipeline("en", 1, nil)

	terms := p.Terms("a 42 I 2024 growth")
	want := []string{"growth"}
	if !reflect.DeepEqual(terms, want) {
		t.Errorf("Terms = %v, want %v", terms, want)
	}
}

func TestStemKnownForms(t *testing.T) {
	p := NewPipeline("en", 1, nil)

	cases := map[string]string{
		"Running": "run",
		"skies":   "ski",
		"Cats":    "cat",
	}
	for word, want := range cases {
		if got := p.Stem(word); got != want {
			t.Errorf("Stem(%q) = %q, want %q", word, got, want)
		}
	}
}

func TestStemKeyMultiWord(t *testing.T) {
	p := NewPipeline("en", 1, nil)

	if got := p.StemKey("Machine Learning"); got != "machin learn" {
		t.Errorf("StemKey = %q, want %q", got, "machin learn")
	}
	if got := p.StemKey("  "); got != "" {
		t.Errorf("StemKey of blank = %q, want empty", got)
	}
}

func TestExcludeStems(t *testing.T) {
	p := NewPipeline("en", 1, nil)
	p.ExcludeStems("weather")

	if !p.Excluded("weather") {
		t.Error("ExcludeStems should register the stem verbatim")
	}
}
