package predict

import (
	"github.com/cognitext/taxon/pkg/taxon/model"
)

// gravitySampleCap bounds how many top-ranked result categories are sampled
// per group when computing activation, keeping boost cost independent of
// result size.
const gravitySampleCap = 3

// ApplyGravity boosts candidates toward the most strongly activated
// gravitational group(s). Activation combines two independent signals: group
// terms present in the query's term set, and group terms matching the stems
// of the top-ranked candidates (at most gravitySampleCap samples per group).
// Only the group(s) with the single highest activation survive; any
// candidate whose stem is itself one of those group keys gets a boost
// proportional to the activation, and the list is re-sorted.
func ApplyGravity(ix *model.Index, queryTerms []string, cands []Candidate) {
	gravity := ix.Weights.Gravity
	if gravity <= 0 || len(ix.Groups) == 0 || len(cands) == 0 {
		return
	}

	querySet := make(map[string]struct{}, len(queryTerms))
	for _, t := range queryTerms {
		querySet[t] = struct{}{}
	}

	sample := cands
	if len(sample) > gravitySampleCap {
		sample = sample[:gravitySampleCap]
	}

	best := 0.0
	activations := make(map[string]float64, len(ix.Groups))
	for name, group := range ix.Groups {
		matches := 0
		for term := range group.Terms {
			if _, ok := querySet[term]; ok {
				matches++
			}
		}
		for _, cand := range sample {
			if _, ok := group.Terms[cand.Category.Stem]; ok {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		activation := float64(matches) * group.Strength()
		activations[name] = activation
		if activation > best {
			best = activation
		}
	}
	if best == 0 {
		return
	}

	// Ties keep every group at the maximum; everything weaker is discarded.
	winners := make(map[string]struct{})
	for name, activation := range activations {
		if activation == best {
			winners[name] = struct{}{}
		}
	}

	factor := 1 + gravity*best/(best+1)
	boosted := false
	for i := range cands {
		if _, ok := winners[cands[i].Category.Stem]; ok {
			cands[i].Score *= factor
			boosted = true
		}
	}
	if boosted {
		sortCandidates(cands)
	}
}
