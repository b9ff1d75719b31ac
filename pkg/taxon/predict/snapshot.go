// Package predict scores query text against every known category: a lazily
// rebuilt preprocessing snapshot feeds a weighted ensemble of similarity and
// likelihood algorithms, optionally biased by gravitational groups.
package predict

import (
	"math"

	"github.com/cognitext/taxon/pkg/taxon/model"
)

// alpha is the additive smoothing constant applied to priors and term
// probabilities.
const alpha = 0.5

// Snapshot memoizes the derived statistics a prediction needs: per-category
// log-priors, smoothed term probabilities, global IDF and TF-IDF vectors.
// It is valid for exactly one index generation and rebuilt in full after any
// mutation; there is no partial invalidation.
type Snapshot struct {
	generation uint64

	// priors holds the smoothed log-prior per category id.
	priors []float64
	// termProb holds smoothed P(term|category), sparse over category terms.
	termProb []map[model.TermID]float64
	// floor is the smoothed probability of a term absent from a category.
	floor []float64
	// idf holds ln((N+1)/(df+1)) per term id.
	idf []float64
	// tfidf holds term-frequency-in-category × idf, sparse per category.
	tfidf []map[model.TermID]float64
	// tfidfNorm is the L2 norm of each category's TF-IDF vector.
	tfidfNorm []float64
}

// BuildSnapshot computes the full preprocessing snapshot for the index's
// current generation. Cost is O(categories × terms); callers wanting warm
// first predictions should invoke it eagerly.
func BuildSnapshot(ix *model.Index) *Snapshot {
	numCats := len(ix.Categories)
	numTerms := len(ix.Terms)

	s := &Snapshot{
		generation: ix.Generation(),
		priors:     make([]float64, numCats),
		termProb:   make([]map[model.TermID]float64, numCats),
		floor:      make([]float64, numCats),
		idf:        make([]float64, numTerms),
		tfidf:      make([]map[model.TermID]float64, numCats),
		tfidfNorm:  make([]float64, numCats),
	}

	for _, t := range ix.Terms {
		s.idf[t.ID] = math.Log(float64(ix.TotalDocs+1) / float64(t.DF+1))
	}

	priorDenom := float64(ix.TotalDocs) + alpha*float64(numCats)
	vocab := float64(numTerms)

	for _, cat := range ix.Categories {
		s.priors[cat.ID] = math.Log((float64(cat.DocCount) + alpha) / priorDenom)

		probDenom := float64(cat.TermTotal) + alpha*vocab
		s.floor[cat.ID] = alpha / probDenom

		probs := make(map[model.TermID]float64, len(cat.Terms))
		vec := make(map[model.TermID]float64, len(cat.Terms))
		var norm float64
		for id, count := range cat.Terms {
			probs[id] = (float64(count) + alpha) / probDenom
			w := float64(count) * s.idf[id]
			vec[id] = w
			norm += w * w
		}
		s.termProb[cat.ID] = probs
		s.tfidf[cat.ID] = vec
		s.tfidfNorm[cat.ID] = math.Sqrt(norm)
	}

	return s
}

// Current reports whether the snapshot still matches the index generation.
func (s *Snapshot) Current(ix *model.Index) bool {
	return s != nil && s.generation == ix.Generation()
}

// prob returns the smoothed probability of a term within a category.
func (s *Snapshot) prob(cat model.CategoryID, term model.TermID) float64 {
	if p, ok := s.termProb[cat][term]; ok {
		return p
	}
	return s.floor[cat]
}
