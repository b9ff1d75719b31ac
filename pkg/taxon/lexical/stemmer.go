package lexical

import (
	"strings"

	"github.com/kljensen/snowball"
)

// Stemmer reduces words to their stems for a configured language.
// Stemming is deterministic: the same word always yields the same stem.
type Stemmer struct {
	language string
}

// languageNames maps ISO 639-1 codes to snowball language names.
// Unknown codes fall back to english.
var languageNames = map[string]string{
	"en": "english",
	"es": "spanish",
	"fr": "french",
	"hu": "hungarian",
	"no": "norwegian",
	"ru": "russian",
	"sv": "swedish",
}

// NewStemmer creates a stemmer for the given language code (e.g. "en").
func NewStemmer(code string) *Stemmer {
	name, ok := languageNames[strings.ToLower(code)]
	if !ok {
		name = "english"
	}
	return &Stemmer{language: name}
}

// Stem returns the lowercase stem of a single word. Words the stemmer cannot
// process are returned lowercased unchanged.
func (s *Stemmer) Stem(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return ""
	}
	stemmed, err := snowball.Stem(word, s.language, false)
	if err != nil {
		return word
	}
	return stemmed
}
