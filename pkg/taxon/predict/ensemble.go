package predict

import (
	"math"
	"sort"

	"github.com/cognitext/taxon/pkg/taxon/model"
)

// signatureThreshold is the per-category occurrence count above which a term
// counts as a signature term for the missing-term penalty.
const signatureThreshold = 10

// Candidate pairs a category with its ensemble score.
type Candidate struct {
	Category *model.Category
	Score    float64
}

// QueryVector maps a term sequence onto known term ids with occurrence
// counts. Terms the index has never seen carry no signal and are dropped.
func QueryVector(ix *model.Index, terms []string) map[model.TermID]float64 {
	tf := make(map[model.TermID]float64)
	for _, value := range terms {
		if t, ok := ix.TermByValue(value); ok {
			tf[t.ID]++
		}
	}
	return tf
}

// ScoreSingle runs the full ensemble for a single-text query. Each enabled
// algorithm scores every trained category, its raw scores are min-max
// normalized to [-1, 1], and the weighted sum is passed through a
// numerically stable exp(total − max) transform. Scores are comparable
// relative magnitudes, not probabilities.
func ScoreSingle(ix *model.Index, snap *Snapshot, queryTF map[model.TermID]float64) []Candidate {
	cats := trainedCategories(ix)
	if len(cats) == 0 {
		return nil
	}

	w := ix.Weights
	algos := []struct {
		weight float64
		fn     func(cat *model.Category) float64
	}{
		{w.Prior, func(cat *model.Category) float64 { return snap.priors[cat.ID] }},
		{w.CrossEntropy, func(cat *model.Category) float64 { return negCrossEntropy(snap, cat, queryTF) }},
		{w.Pearson, func(cat *model.Category) float64 { return pearsonShared(snap, cat, queryTF) }},
		{w.WeightedTFIDF, func(cat *model.Category) float64 { return weightedTFIDFSum(snap, cat, queryTF) }},
		{w.MissingPenalty, func(cat *model.Category) float64 { return missingSignaturePenalty(cat, queryTF) }},
		{w.Cosine, func(cat *model.Category) float64 { return cosineTFIDF(snap, cat, queryTF) }},
		{w.Jaccard, func(cat *model.Category) float64 { return jaccardTerms(cat, queryTF) }},
	}

	totals := make([]float64, len(cats))
	raw := make([]float64, len(cats))
	for _, a := range algos {
		// Zero-weight algorithms are skipped entirely, computation included.
		if a.weight == 0 {
			continue
		}
		for i, cat := range cats {
			raw[i] = a.fn(cat)
		}
		normalizeMinMax(raw)
		for i := range totals {
			totals[i] += a.weight * raw[i]
		}
	}

	return exponentiate(cats, totals, false)
}

// trainedCategories returns every category with at least one training
// document, in id order.
func trainedCategories(ix *model.Index) []*model.Category {
	cats := make([]*model.Category, 0, len(ix.Categories))
	for _, cat := range ix.Categories {
		if cat.DocCount > 0 {
			cats = append(cats, cat)
		}
	}
	return cats
}

// normalizeMinMax rescales scores in place to [-1, 1]. A degenerate range
// (max == min) normalizes every score to 0 rather than dividing by zero.
func normalizeMinMax(scores []float64) {
	if len(scores) == 0 {
		return
	}
	min, max := scores[0], scores[0]
	for _, v := range scores[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		for i := range scores {
			scores[i] = 0
		}
		return
	}
	span := max - min
	for i := range scores {
		scores[i] = -1 + 2*(scores[i]-min)/span
	}
}

// exponentiate converts ensemble totals to final scores via
// exp(total − max). When normalize is set the scores are additionally
// divided by their sum, yielding a true probability distribution.
func exponentiate(cats []*model.Category, totals []float64, normalize bool) []Candidate {
	max := math.Inf(-1)
	for _, v := range totals {
		if v > max {
			max = v
		}
	}

	cands := make([]Candidate, len(cats))
	var sum float64
	for i, cat := range cats {
		score := math.Exp(totals[i] - max)
		sum += score
		cands[i] = Candidate{Category: cat, Score: score}
	}
	if normalize && sum > 0 {
		for i := range cands {
			cands[i].Score /= sum
		}
	}

	sortCandidates(cands)
	return cands
}

func sortCandidates(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Category.Stem < cands[j].Category.Stem
	})
}

// negCrossEntropy is the negative cross-entropy between the query TF-IDF
// weights and the category's smoothed term probabilities:
// Σ q(t)·idf(t)·ln P(t|c).
func negCrossEntropy(snap *Snapshot, cat *model.Category, queryTF map[model.TermID]float64) float64 {
	var sum float64
	for id, tf := range queryTF {
		sum += tf * snap.idf[id] * math.Log(snap.prob(cat.ID, id))
	}
	return sum
}

// pearsonShared computes the Pearson correlation between the query and
// category TF-IDF vectors, restricted to their shared terms. Fewer than two
// shared terms give no basis for correlation and score 0.
func pearsonShared(snap *Snapshot, cat *model.Category, queryTF map[model.TermID]float64) float64 {
	var xs, ys []float64
	for id, tf := range queryTF {
		if cw, ok := snap.tfidf[cat.ID][id]; ok {
			xs = append(xs, tf*snap.idf[id])
			ys = append(ys, cw)
		}
	}
	n := float64(len(xs))
	if n < 2 {
		return 0
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

// weightedTFIDFSum sums the query's TF-IDF weights over terms present in the
// category, each weighted by the term's relative frequency within the
// category, rewarding overlap on the category's own frequent terms.
func weightedTFIDFSum(snap *Snapshot, cat *model.Category, queryTF map[model.TermID]float64) float64 {
	if cat.TermTotal == 0 {
		return 0
	}
	var sum float64
	for id, tf := range queryTF {
		if count, ok := cat.Terms[id]; ok {
			sum += tf * snap.idf[id] * float64(count) / float64(cat.TermTotal)
		}
	}
	return sum
}

// missingSignaturePenalty penalizes categories whose high-frequency terms
// (count > signatureThreshold) are absent from the query. Each missing
// signature term contributes its own log-relative-frequency, which is
// negative, so heavier misses push the raw score further down.
func missingSignaturePenalty(cat *model.Category, queryTF map[model.TermID]float64) float64 {
	if cat.TermTotal == 0 {
		return 0
	}
	var penalty float64
	for id, count := range cat.Terms {
		if count <= signatureThreshold {
			continue
		}
		if _, present := queryTF[id]; present {
			continue
		}
		penalty += math.Log(float64(count) / float64(cat.TermTotal))
	}
	return penalty
}

// cosineTFIDF is the cosine similarity of the query and category TF-IDF
// vectors.
func cosineTFIDF(snap *Snapshot, cat *model.Category, queryTF map[model.TermID]float64) float64 {
	var dot, qNorm float64
	for id, tf := range queryTF {
		qw := tf * snap.idf[id]
		qNorm += qw * qw
		if cw, ok := snap.tfidf[cat.ID][id]; ok {
			dot += qw * cw
		}
	}
	cNorm := snap.tfidfNorm[cat.ID]
	if qNorm == 0 || cNorm == 0 {
		return 0
	}
	return dot / (math.Sqrt(qNorm) * cNorm)
}

// jaccardTerms is the Jaccard similarity between the query's term set and
// the category's term set.
func jaccardTerms(cat *model.Category, queryTF map[model.TermID]float64) float64 {
	var shared int
	for id := range queryTF {
		if _, ok := cat.Terms[id]; ok {
			shared++
		}
	}
	union := len(queryTF) + len(cat.Terms) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
