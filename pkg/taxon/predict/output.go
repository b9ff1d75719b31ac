package predict

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Adaptive cutoff thresholds: walking the sorted results stops when the gap
// to the next score exceeds gapRatio of the current one, or the next score
// falls below floorRatio of the top score.
const (
	adaptiveGapRatio   = 0.15
	adaptiveFloorRatio = 0.8
)

// Result is one shaped prediction: the category's best surface form and its
// score.
type Result struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ShapeOptions controls how scored candidates become results. Exactly one of
// Amount and Adaptive applies; when neither is set a small default count is
// used.
type ShapeOptions struct {
	// Amount truncates to an exact result count when positive.
	Amount int
	// Adaptive keeps results until the score gap or floor cutoff triggers,
	// always keeping at least one.
	Adaptive bool
	// Capitalize title-cases the output labels.
	Capitalize bool
}

const defaultAmount = 5

var titleCaser = cases.Title(language.Und)

// Shape maps sorted candidates to results: stems become best surface
// variants, optionally capitalized, truncated by exact count or adaptive
// cutoff.
func Shape(cands []Candidate, opts ShapeOptions) []Result {
	if opts.Adaptive {
		cands = adaptiveCut(cands)
	} else {
		amount := opts.Amount
		if amount <= 0 {
			amount = defaultAmount
		}
		if len(cands) > amount {
			cands = cands[:amount]
		}
	}

	results := make([]Result, len(cands))
	for i, cand := range cands {
		label := cand.Category.BestVariant()
		if opts.Capitalize {
			label = titleCaser.String(label)
		}
		results[i] = Result{Label: label, Score: cand.Score}
	}
	return results
}

// adaptiveCut walks the sorted list and stops at the first score cliff,
// keeping at least one result.
func adaptiveCut(cands []Candidate) []Candidate {
	if len(cands) <= 1 {
		return cands
	}
	top := cands[0].Score
	keep := 1
	for keep < len(cands) {
		cur := cands[keep-1].Score
		next := cands[keep].Score
		if cur-next > adaptiveGapRatio*cur {
			break
		}
		if next < adaptiveFloorRatio*top {
			break
		}
		keep++
	}
	return cands[:keep]
}
