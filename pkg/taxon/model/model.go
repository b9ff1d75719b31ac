// Package model holds the mutable statistical index the classifier learns
// into: categories, terms, per-category frequency tables, co-occurrence
// relations and gravitational groups. Engines receive the index by exclusive
// reference; there is no package-level state.
package model

import (
	"fmt"
	"math"
	"sort"
)

// TermID identifies a term in the global term table. IDs are dense and only
// reassigned when the eviction engine compacts the table.
type TermID int

// CategoryID identifies a category. IDs are allocated monotonically and
// never recycled except on full reset.
type CategoryID int

// Term is a stemmed, filtered n-gram used as a classification feature.
type Term struct {
	ID    TermID `json:"id"`
	Value string `json:"value"`
	// DF is the number of distinct training examples containing the term,
	// across all categories.
	DF int `json:"df"`
}

// Category is a predictable label keyed by its stemmed form.
type Category struct {
	ID   CategoryID `json:"id"`
	Stem string     `json:"stem"`
	// Variants maps observed surface forms to occurrence counts; the most
	// frequent variant is used for display.
	Variants map[string]int `json:"variants"`
	// DocCount is the number of training examples assigned to the category.
	DocCount int `json:"doc_count"`
	// TermTotal is the total number of term occurrences recorded in Terms.
	TermTotal int `json:"term_total"`
	// Terms maps term ids to occurrence counts within the category.
	Terms map[TermID]int `json:"terms"`
}

// BestVariant returns the surface form with the highest observed count.
// Ties resolve to the lexicographically smaller form so output is stable.
func (c *Category) BestVariant() string {
	best, bestCount := c.Stem, -1
	for v, n := range c.Variants {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}

// GravitationalGroup is a named set of stemmed terms that biases prediction
// toward a known concept cluster. Groups never influence training.
type GravitationalGroup struct {
	Name  string              `json:"name"`
	Terms map[string]struct{} `json:"terms"`
}

// Strength grows with group size but saturates, so giant groups do not
// dominate scoring.
func (g *GravitationalGroup) Strength() float64 {
	return math.Log1p(float64(len(g.Terms)))
}

// EnsembleWeights configures the contribution of each prediction algorithm.
// An algorithm with weight zero is skipped entirely, computation included.
type EnsembleWeights struct {
	Prior          float64 `json:"prior" yaml:"prior"`
	CrossEntropy   float64 `json:"cross_entropy" yaml:"cross_entropy"`
	Pearson        float64 `json:"pearson" yaml:"pearson"`
	WeightedTFIDF  float64 `json:"weighted_tfidf" yaml:"weighted_tfidf"`
	MissingPenalty float64 `json:"missing_penalty" yaml:"missing_penalty"`
	Cosine         float64 `json:"cosine" yaml:"cosine"`
	Jaccard        float64 `json:"jaccard" yaml:"jaccard"`
	// Gravity blends gravitational-group boosting into final scores;
	// zero disables boosting.
	Gravity float64 `json:"gravity" yaml:"gravity"`
}

// DefaultEnsembleWeights enables every algorithm at equal weight.
func DefaultEnsembleWeights() EnsembleWeights {
	return EnsembleWeights{
		Prior:          1,
		CrossEntropy:   1,
		Pearson:        1,
		WeightedTFIDF:  1,
		MissingPenalty: 1,
		Cosine:         1,
		Jaccard:        1,
		Gravity:        1,
	}
}

// DefaultAvgTermBytes seeds the bytes-per-term estimate before the first
// save has measured the real serialized size.
const DefaultAvgTermBytes = 64.0

// Index is the aggregate root owning all learned statistics.
type Index struct {
	Categories []*Category `json:"categories"`
	Terms      []*Term     `json:"terms"`
	// Relations records how often two categories co-occurred as labels of
	// the same training example, keyed stem→stem. Both directions are
	// incremented independently.
	Relations map[string]map[string]int      `json:"relations"`
	Groups    map[string]*GravitationalGroup `json:"groups"`
	// TotalDocs counts training examples. A multi-label example increments
	// it exactly once.
	TotalDocs int `json:"total_docs"`
	// Excluded holds stems that never become terms or categories.
	Excluded map[string]struct{} `json:"-"`
	MaxGram  int                 `json:"max_gram"`
	Weights  EnsembleWeights     `json:"weights"`
	// ByteBudget bounds the serialized index size; zero disables eviction.
	ByteBudget int64 `json:"byte_budget"`
	// AvgTermBytes is the measured average serialized size per term,
	// recomputed after every successful save and load.
	AvgTermBytes float64 `json:"avg_term_bytes"`

	byStem     map[string]CategoryID
	byValue    map[string]TermID
	generation uint64
}

// NewIndex creates an empty index with the given maximum n-gram length.
func NewIndex(maxGram int) *Index {
	if maxGram < 1 {
		maxGram = 1
	}
	return &Index{
		Relations:    make(map[string]map[string]int),
		Groups:       make(map[string]*GravitationalGroup),
		Excluded:     make(map[string]struct{}),
		MaxGram:      maxGram,
		Weights:      DefaultEnsembleWeights(),
		AvgTermBytes: DefaultAvgTermBytes,
		byStem:       make(map[string]CategoryID),
		byValue:      make(map[string]TermID),
	}
}

// Generation returns a counter bumped on every mutation. Derived caches key
// themselves on it to detect staleness.
func (ix *Index) Generation() uint64 { return ix.generation }

// Bump marks the index as mutated, invalidating generation-keyed caches.
func (ix *Index) Bump() { ix.generation++ }

// CategoryByStem looks up a category by its canonical stem key.
func (ix *Index) CategoryByStem(stem string) (*Category, bool) {
	id, ok := ix.byStem[stem]
	if !ok {
		return nil, false
	}
	return ix.Categories[id], true
}

// EnsureCategory resolves or creates the category for a stem key and records
// the raw surface form as a variant.
func (ix *Index) EnsureCategory(stem, surface string) *Category {
	cat, ok := ix.CategoryByStem(stem)
	if !ok {
		cat = &Category{
			ID:       CategoryID(len(ix.Categories)),
			Stem:     stem,
			Variants: make(map[string]int),
			Terms:    make(map[TermID]int),
		}
		ix.Categories = append(ix.Categories, cat)
		ix.byStem[stem] = cat.ID
	}
	if surface != "" {
		cat.Variants[surface]++
	}
	return cat
}

// TermByValue looks up a term by its string value.
func (ix *Index) TermByValue(value string) (*Term, bool) {
	id, ok := ix.byValue[value]
	if !ok {
		return nil, false
	}
	return ix.Terms[id], true
}

// EnsureTerm registers a term value, returning the existing entry if known.
func (ix *Index) EnsureTerm(value string) *Term {
	if t, ok := ix.TermByValue(value); ok {
		return t
	}
	t := &Term{ID: TermID(len(ix.Terms)), Value: value}
	ix.Terms = append(ix.Terms, t)
	ix.byValue[value] = t.ID
	return t
}

// AddRelation increments the directed co-occurrence edge from one category
// stem to another. Callers wanting symmetry must add both directions.
func (ix *Index) AddRelation(from, to string, weight int) {
	edges, ok := ix.Relations[from]
	if !ok {
		edges = make(map[string]int)
		ix.Relations[from] = edges
	}
	edges[to] += weight
}

// AddGroup installs a gravitational group under a stemmed name with
// already-stemmed member terms. Re-adding a name replaces its members.
func (ix *Index) AddGroup(name string, stems []string) {
	terms := make(map[string]struct{}, len(stems))
	for _, s := range stems {
		if s != "" {
			terms[s] = struct{}{}
		}
	}
	ix.Groups[name] = &GravitationalGroup{Name: name, Terms: terms}
	ix.Bump()
}

// AllowedTermCount converts the byte budget into a term-count budget using
// the measured average serialized size per term.
func (ix *Index) AllowedTermCount() int {
	if ix.ByteBudget <= 0 {
		return 0
	}
	avg := ix.AvgTermBytes
	if avg <= 0 {
		avg = DefaultAvgTermBytes
	}
	return int(float64(ix.ByteBudget) / avg)
}

// NeedsPurge reports whether the term table exceeds the byte budget.
func (ix *Index) NeedsPurge() bool {
	allowed := ix.AllowedTermCount()
	return allowed > 0 && len(ix.Terms) > allowed
}

// RetainTerms keeps exactly the terms whose current ids appear in keep,
// discarding the rest from the global table and every category table and
// rebuilding contiguous ids. Category occurrence totals are decremented by
// each dropped entry's count before it is removed.
func (ix *Index) RetainTerms(keep map[TermID]struct{}) {
	kept := make([]*Term, 0, len(keep))
	remap := make(map[TermID]TermID, len(keep))
	for _, t := range ix.Terms {
		if _, ok := keep[t.ID]; !ok {
			continue
		}
		oldID := t.ID
		t.ID = TermID(len(kept))
		remap[oldID] = t.ID
		kept = append(kept, t)
	}
	ix.Terms = kept

	ix.byValue = make(map[string]TermID, len(kept))
	for _, t := range kept {
		ix.byValue[t.Value] = t.ID
	}

	for _, cat := range ix.Categories {
		rebuilt := make(map[TermID]int, len(cat.Terms))
		for oldID, count := range cat.Terms {
			if newID, ok := remap[oldID]; ok {
				rebuilt[newID] = count
			} else {
				cat.TermTotal -= count
			}
		}
		cat.Terms = rebuilt
	}
	ix.Bump()
}

// Reindex rebuilds the derived lookup tables and validates referential
// integrity. It must be called after a load populates the exported fields.
func (ix *Index) Reindex() error {
	ix.byStem = make(map[string]CategoryID, len(ix.Categories))
	for i, cat := range ix.Categories {
		if cat.ID != CategoryID(i) {
			return fmt.Errorf("category %q: id %d out of order", cat.Stem, cat.ID)
		}
		if _, dup := ix.byStem[cat.Stem]; dup {
			return fmt.Errorf("duplicate category stem %q", cat.Stem)
		}
		ix.byStem[cat.Stem] = cat.ID
		if cat.Variants == nil {
			cat.Variants = make(map[string]int)
		}
		if cat.Terms == nil {
			cat.Terms = make(map[TermID]int)
		}
	}

	ix.byValue = make(map[string]TermID, len(ix.Terms))
	for i, t := range ix.Terms {
		if t.ID != TermID(i) {
			return fmt.Errorf("term %q: id %d out of order", t.Value, t.ID)
		}
		if _, dup := ix.byValue[t.Value]; dup {
			return fmt.Errorf("duplicate term value %q", t.Value)
		}
		ix.byValue[t.Value] = t.ID
	}

	for _, cat := range ix.Categories {
		for id := range cat.Terms {
			if int(id) < 0 || int(id) >= len(ix.Terms) {
				return fmt.Errorf("category %q references unknown term id %d", cat.Stem, id)
			}
		}
	}

	if ix.Relations == nil {
		ix.Relations = make(map[string]map[string]int)
	}
	if ix.Groups == nil {
		ix.Groups = make(map[string]*GravitationalGroup)
	}
	if ix.Excluded == nil {
		ix.Excluded = make(map[string]struct{})
	}
	ix.Bump()
	return nil
}

// Reset drops every learned statistic while keeping configuration
// (exclusions, weights, budget, n-gram length).
func (ix *Index) Reset() {
	ix.Categories = nil
	ix.Terms = nil
	ix.Relations = make(map[string]map[string]int)
	ix.Groups = make(map[string]*GravitationalGroup)
	ix.TotalDocs = 0
	ix.byStem = make(map[string]CategoryID)
	ix.byValue = make(map[string]TermID)
	ix.Bump()
}

// SortedStems returns every category stem in lexical order; useful for
// deterministic iteration in tests and serialization.
func (ix *Index) SortedStems() []string {
	stems := make([]string, 0, len(ix.Categories))
	for _, cat := range ix.Categories {
		stems = append(stems, cat.Stem)
	}
	sort.Strings(stems)
	return stems
}
