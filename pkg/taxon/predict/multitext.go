package predict

import (
	"math"

	"github.com/cognitext/taxon/pkg/taxon/lexical"
	"github.com/cognitext/taxon/pkg/taxon/model"
)

// Fixed weights for the weighted multi-text path. Unlike the single-text
// ensemble these are not configurable: the two-algorithm blend is part of
// the scoring contract.
const (
	multiPriorWeight      = 0.1
	multiLikelihoodWeight = 0.9
)

// WeightedQueryVector accumulates term frequencies across several texts,
// scaling every occurrence by weight^exponent before accumulation.
func WeightedQueryVector(ix *model.Index, p *lexical.Pipeline, texts map[string]float64, exponent float64) map[model.TermID]float64 {
	if exponent == 0 {
		exponent = 1
	}
	tf := make(map[model.TermID]float64)
	for text, weight := range texts {
		if weight <= 0 {
			continue
		}
		scale := math.Pow(weight, exponent)
		for _, value := range p.Terms(text) {
			if t, ok := ix.TermByValue(value); ok {
				tf[t.ID] += scale
			}
		}
	}
	return tf
}

// ScoreWeighted scores an accumulated multi-text query vector with the
// smoothed log-prior and the TF-IDF-weighted log-likelihood, blended at
// fixed weights, then divides the exponentials by their sum so the result is
// a true probability distribution over trained categories.
func ScoreWeighted(ix *model.Index, snap *Snapshot, queryTF map[model.TermID]float64) []Candidate {
	cats := trainedCategories(ix)
	if len(cats) == 0 {
		return nil
	}

	totals := make([]float64, len(cats))
	for i, cat := range cats {
		likelihood := negCrossEntropy(snap, cat, queryTF)
		totals[i] = multiPriorWeight*snap.priors[cat.ID] + multiLikelihoodWeight*likelihood
	}

	return exponentiate(cats, totals, true)
}
