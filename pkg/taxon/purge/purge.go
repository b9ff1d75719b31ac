// Package purge bounds the index to its byte budget by importance-based
// term pruning. Frequently occurring, fairly distributed terms survive; rare
// terms and terms concentrated in over-represented categories go first.
// This is not recency-based eviction: no access times are tracked.
package purge

import (
	"runtime"
	"sort"

	"github.com/cognitext/taxon/pkg/taxon/model"
)

// fairnessTolerance is the slack factor applied to the per-category quota in
// the correction phase.
const fairnessTolerance = 1.2

// yieldStride is how many terms are processed between cooperative yields, so
// a large purge does not monopolize the scheduler for unbounded stretches.
const yieldStride = 4096

// Stats summarizes a purge run.
type Stats struct {
	// TermsBefore and TermsAfter count the global term table.
	TermsBefore int
	TermsAfter  int
	// TrimmedCategories counts categories corrected in the fairness phase.
	TrimmedCategories int
}

// Run prunes the index down to its term-count budget in two phases: a global
// importance ranking that keeps exactly the allowed number of terms, then a
// per-category fairness correction that trims over-represented categories
// back within tolerance. An index within budget is left untouched, which
// also makes back-to-back runs idempotent.
//
// Callers must hold the index exclusively and guard against reentrancy; Run
// itself performs no locking.
func Run(ix *model.Index) Stats {
	stats := Stats{TermsBefore: len(ix.Terms), TermsAfter: len(ix.Terms)}

	allowed := ix.AllowedTermCount()
	if allowed <= 0 || len(ix.Terms) <= allowed || len(ix.Categories) == 0 {
		return stats
	}

	target := allowed / len(ix.Categories)
	if target < 1 {
		target = 1
	}

	keep := rankTerms(ix, allowed, target)
	ix.RetainTerms(keep)
	stats.TermsAfter = len(ix.Terms)

	stats.TrimmedCategories = trimCategories(ix, target)
	return stats
}

// rankTerms scores every term by global document frequency divided by one
// plus the summed imbalance penalty of the categories containing it, and
// returns the ids of the top allowed terms.
func rankTerms(ix *model.Index, allowed, target int) map[model.TermID]struct{} {
	// Imbalance penalty per category: how far its document count overshoots
	// the per-category quota.
	penalty := make([]float64, len(ix.Categories))
	for i, cat := range ix.Categories {
		over := float64(cat.DocCount-target) / float64(target)
		if over > 0 {
			penalty[i] = over
		}
	}

	penaltySum := make([]float64, len(ix.Terms))
	for i, cat := range ix.Categories {
		for id := range cat.Terms {
			penaltySum[id] += penalty[i]
		}
	}

	type scored struct {
		id    model.TermID
		score float64
	}
	ranked := make([]scored, len(ix.Terms))
	for i, t := range ix.Terms {
		ranked[i] = scored{id: t.ID, score: float64(t.DF) / (1 + penaltySum[t.ID])}
		if i%yieldStride == yieldStride-1 {
			runtime.Gosched()
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})

	keep := make(map[model.TermID]struct{}, allowed)
	for _, s := range ranked[:allowed] {
		keep[s.id] = struct{}{}
	}
	return keep
}

// trimCategories removes the lowest-frequency retained terms from any
// category whose occurrence total still exceeds target × tolerance. Removal
// is per-category only; the term stays in the global table for everyone
// else. The occurrence total is decremented by each entry's count before the
// entry is deleted — reading the table after deletion would see zero and
// leave the recorded total inflated.
func trimCategories(ix *model.Index, target int) int {
	limit := int(float64(target) * fairnessTolerance)
	trimmed := 0

	for _, cat := range ix.Categories {
		if cat.TermTotal <= limit {
			continue
		}

		type entry struct {
			id    model.TermID
			count int
		}
		entries := make([]entry, 0, len(cat.Terms))
		for id, count := range cat.Terms {
			entries = append(entries, entry{id: id, count: count})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].count != entries[j].count {
				return entries[i].count < entries[j].count
			}
			return entries[i].id < entries[j].id
		})

		for _, e := range entries {
			if cat.TermTotal <= limit {
				break
			}
			cat.TermTotal -= e.count
			delete(cat.Terms, e.id)
		}
		trimmed++
	}

	if trimmed > 0 {
		ix.Bump()
	}
	return trimmed
}
