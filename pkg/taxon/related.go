package taxon

import (
	"context"
	"fmt"
	"sort"

	"github.com/cognitext/taxon/pkg/taxon/cache"
	"github.com/cognitext/taxon/pkg/taxon/internalerr"
	"github.com/cognitext/taxon/pkg/taxon/predict"
)

// Related finds categories related to the weighted input categories. The
// co-occurrence graph is consulted first: every edge from an input category
// contributes edge weight × input weight to a candidate. When the graph
// yields fewer candidates than requested, the weighted multi-text prediction
// path fills the gap using the input labels as query texts. Output shaping
// matches Predict.
func (c *Classifier) Related(ctx context.Context, categories map[string]float64, opts PredictOptions) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: related needs a non-empty category→weight map", internalerr.ErrInvalidInput)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.destroyed {
		return nil, internalerr.ErrDestroyed
	}

	shape := predict.ShapeOptions{Amount: opts.Amount, Adaptive: opts.Adaptive, Capitalize: opts.Capitalize}
	key := cache.Key(c.index.Generation(), shape, append([]string{"r"}, cache.SortedWeightParts(categories)...)...)
	if cached, ok := c.results.Get(key); ok {
		return cached, nil
	}

	inputStems := make(map[string]struct{}, len(categories))
	for name := range categories {
		inputStems[c.pipeline.StemKey(name)] = struct{}{}
	}

	// Accumulate co-occurrence candidates, skipping anything already in
	// the input.
	scores := make(map[string]float64)
	for name, weight := range categories {
		stem := c.pipeline.StemKey(name)
		for to, edgeWeight := range c.index.Relations[stem] {
			if _, isInput := inputStems[to]; isInput {
				continue
			}
			scores[to] += float64(edgeWeight) * weight
		}
	}

	cands := make([]predict.Candidate, 0, len(scores))
	for stem, score := range scores {
		if cat, ok := c.index.CategoryByStem(stem); ok {
			cands = append(cands, predict.Candidate{Category: cat, Score: score})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Category.Stem < cands[j].Category.Stem
	})

	wanted := opts.Amount
	if wanted <= 0 {
		wanted = 5
	}
	if len(cands) < wanted {
		cands = c.supplementRelated(cands, categories, inputStems)
	}

	results := predict.Shape(cands, shape)
	c.results.Add(key, results)
	return results, nil
}

// supplementRelated merges weighted-prediction candidates behind the
// co-occurrence candidates without duplicating categories already chosen or
// present in the input.
func (c *Classifier) supplementRelated(cands []predict.Candidate, categories map[string]float64, inputStems map[string]struct{}) []predict.Candidate {
	chosen := make(map[string]struct{}, len(cands))
	for _, cand := range cands {
		chosen[cand.Category.Stem] = struct{}{}
	}

	qtf := predict.WeightedQueryVector(c.index, c.pipeline, categories, c.weightExp)
	for _, cand := range predict.ScoreWeighted(c.index, c.snapshot(), qtf) {
		if _, isInput := inputStems[cand.Category.Stem]; isInput {
			continue
		}
		if _, dup := chosen[cand.Category.Stem]; dup {
			continue
		}
		cands = append(cands, cand)
	}
	return cands
}
