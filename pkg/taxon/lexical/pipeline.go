// Package lexical turns raw text into the stemmed, filtered n-gram terms the
// index is built from. The pipeline is pure: identical input always yields
// the identical term sequence.
package lexical

import (
	"strings"
	"unicode"
)

// Pipeline converts raw text into an ordered sequence of terms:
// tokenization → stemming → exclusion filtering → n-gram expansion.
type Pipeline struct {
	stemmer  *Stemmer
	maxGram  int
	excluded map[string]struct{}
}

// NewPipeline creates a pipeline for the given language code, maximum n-gram
// length and exclusion list. Exclusions are stemmed on the way in so callers
// can pass surface forms.
func NewPipeline(language string, maxGram int, exclusions []string) *Pipeline {
	if maxGram < 1 {
		maxGram = 1
	}
	p := &Pipeline{
		stemmer:  NewStemmer(language),
		maxGram:  maxGram,
		excluded: make(map[string]struct{}, len(exclusions)),
	}
	for _, w := range exclusions {
		if stem := p.stemmer.Stem(w); stem != "" {
			p.excluded[stem] = struct{}{}
		}
	}
	return p
}

// MaxGram returns the configured maximum n-gram length.
func (p *Pipeline) MaxGram() int { return p.maxGram }

// Stem reduces a single word to its stem.
func (p *Pipeline) Stem(word string) string { return p.stemmer.Stem(word) }

// Excluded reports whether a stem is on the exclusion list.
func (p *Pipeline) Excluded(stem string) bool {
	_, ok := p.excluded[stem]
	return ok
}

// Exclude adds stems to the exclusion list. Inputs are stemmed first.
func (p *Pipeline) Exclude(words ...string) {
	for _, w := range words {
		if stem := p.stemmer.Stem(w); stem != "" {
			p.excluded[stem] = struct{}{}
		}
	}
}

// ExcludeStems adds already-stemmed entries to the exclusion list verbatim.
func (p *Pipeline) ExcludeStems(stems ...string) {
	for _, s := range stems {
		if s != "" {
			p.excluded[s] = struct{}{}
		}
	}
}

// Exclusions returns the current exclusion stems in unspecified order.
func (p *Pipeline) Exclusions() []string {
	out := make([]string, 0, len(p.excluded))
	for stem := range p.excluded {
		out = append(out, stem)
	}
	return out
}

// StemKey normalizes a (possibly multi-word) label into its canonical stem
// key: every word stemmed, joined by single spaces. Labels that stem away to
// nothing fall back to their trimmed lowercase form.
func (p *Pipeline) StemKey(label string) string {
	words := splitWords(label)
	stems := make([]string, 0, len(words))
	for _, w := range words {
		if stem := p.stemmer.Stem(w); stem != "" {
			stems = append(stems, stem)
		}
	}
	if len(stems) == 0 {
		return strings.ToLower(strings.TrimSpace(label))
	}
	return strings.Join(stems, " ")
}

// Terms runs the full pipeline: for each contiguous run of surviving stems it
// emits every sub-sequence of length 1..maxGram, left to right, shorter grams
// first at each position. A stem that is excluded or too short terminates the
// current run.
func (p *Pipeline) Terms(text string) []string {
	words := splitWords(text)

	var terms []string
	var run []string
	flush := func() {
		if len(run) > 0 {
			terms = appendGrams(terms, run, p.maxGram)
			run = run[:0]
		}
	}

	for _, w := range words {
		stem := p.stemmer.Stem(w)
		if len(stem) <= 1 || p.Excluded(stem) {
			flush()
			continue
		}
		run = append(run, stem)
	}
	flush()

	return terms
}

// appendGrams emits all n-grams of length 1..maxGram from a run of stems.
func appendGrams(terms []string, run []string, maxGram int) []string {
	for i := range run {
		limit := maxGram
		if rest := len(run) - i; rest < limit {
			limit = rest
		}
		for n := 1; n <= limit; n++ {
			terms = append(terms, strings.Join(run[i:i+n], " "))
		}
	}
	return terms
}

// splitWords breaks text into lowercase word tokens. Letters, digits and
// inner hyphens are kept; everything else separates tokens. Numeric-only
// tokens carry no categorical signal and are dropped.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	emit := func() {
		if current.Len() == 0 {
			return
		}
		word := cleanToken(current.String())
		current.Reset()
		if word == "" || isNumericOnly(word) {
			return
		}
		words = append(words, word)
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' {
			current.WriteRune(unicode.ToLower(r))
		} else {
			emit()
		}
	}
	emit()

	return words
}

// cleanToken strips leading/trailing hyphens and collapses consecutive hyphens.
func cleanToken(token string) string {
	token = strings.Trim(token, "-")
	for strings.Contains(token, "--") {
		token = strings.ReplaceAll(token, "--", "-")
	}
	return token
}

// isNumericOnly returns true if the token contains only digits and hyphens.
func isNumericOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}
