package predict

import (
	"math"
	"testing"

	"github.com/cognitext/taxon/pkg/taxon/lexical"
	"github.com/cognitext/taxon/pkg/taxon/model"
)

func trainedIndex(t *testing.T, p *lexical.Pipeline, examples []model.Example) *model.Index {
	t.Helper()
	ix := model.NewIndex(p.MaxGram())
	if got := ix.TrainBatch(p, examples); got != len(examples) {
		t.Fatalf("ingested %d of %d examples", got, len(examples))
	}
	return ix
}

func TestScoreSingleRanksTrainedCategoryFirst(t *testing.T) {
	p := lexical.NewPipeline("en", 2, nil)
	ix := trainedIndex(t, p, []model.Example{
		{Input: "Sunny forecast with clear skies", Output: []string{"Weather"}},
		{Input: "Stock market rally lifts shares", Output: []string{"Finance"}},
	})

	snap := BuildSnapshot(ix)
	queryTF := QueryVector(ix, p.Terms("Clear skies ahead"))
	cands := ScoreSingle(ix, snap, queryTF)

	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2", len(cands))
	}
	if cands[0].Category.Stem != "weather" {
		t.Errorf("top candidate = %q, want %q", cands[0].Category.Stem, "weather")
	}
	if cands[0].Score <= cands[1].Score {
		t.Errorf("scores not strictly ordered: %v >= %v wanted", cands[0].Score, cands[1].Score)
	}
}

func TestScoreSingleSkipsUntrainedCategories(t *testing.T) {
	p := lexical.NewPipeline("en", 1, nil)
	ix := trainedIndex(t, p, []model.Example{
		{Input: "goal scored late", Output: []string{"Sports"}},
	})
	// A category with no training documents must never appear in results.
	ix.EnsureCategory("empti", "Empty")

	snap := BuildSnapshot(ix)
	cands := ScoreSingle(ix, snap, QueryVector(ix, p.Terms("late goal")))
	if len(cands) != 1 {
		t.Fatalf("candidates = %d, want 1", len(cands))
	}
	if cands[0].Category.Stem != "sport" {
		t.Errorf("candidate = %q, want %q", cands[0].Category.Stem, "sport")
	}
}

func TestQueryVectorDropsUnknownTerms(t *testing.T) {
	p := lexical.NewPipeline("en", 1, nil)
	ix := trainedIndex(t, p, []model.Example{
		{Input: "sunny forecast", Output: []string{"Weather"}},
	})

	tf := QueryVector(ix, []string{"sunni", "sunni", "unseen"})
	if len(tf) != 1 {
		t.Fatalf("vector size = %d, want 1", len(tf))
	}
	term, ok := ix.TermByValue("sunni")
	if !ok {
		t.Fatal("trained term missing")
	}
	if tf[term.ID] != 2 {
		t.Errorf("tf = %v, want 2", tf[term.ID])
	}
}

func TestNormalizeMinMaxBounds(t *testing.T) {
	scores := []float64{3, 7, 5}
	normalizeMinMax(scores)
	if scores[0] != -1 || scores[1] != 1 {
		t.Errorf("endpoints = %v, want -1 and 1", scores)
	}
	if scores[2] != 0 {
		t.Errorf("midpoint = %v, want 0", scores[2])
	}
}

func TestNormalizeMinMaxDegenerateRange(t *testing.T) {
	scores := []float64{4.2, 4.2, 4.2}
	normalizeMinMax(scores)
	for i, v := range scores {
		if v != 0 {
			t.Errorf("scores[%d] = %v, want 0 when all inputs are equal", i, v)
		}
	}
}

func TestScoreWeightedIsProbabilityDistribution(t *testing.T) {
	p := lexical.NewPipeline("en", 2, nil)
	ix := trainedIndex(t, p, []model.Example{
		{Input: "Sunny forecast with clear skies", Output: []string{"Weather"}},
		{Input: "Stock market rally lifts shares", Output: []string{"Finance"}},
		{Input: "Late goal decides the derby", Output: []string{"Sports"}},
	})

	snap := BuildSnapshot(ix)
	queryTF := WeightedQueryVector(ix, p, map[string]float64{
		"clear skies over the stadium": 1.0,
		"market news":                  0.5,
	}, 1)
	cands := ScoreWeighted(ix, snap, queryTF)

	if len(cands) != 3 {
		t.Fatalf("candidates = %d, want 3", len(cands))
	}
	var sum float64
	for _, c := range cands {
		if c.Score < 0 || c.Score > 1 {
			t.Errorf("score %v outside [0, 1]", c.Score)
		}
		sum += c.Score
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("scores sum to %v, want 1", sum)
	}
}

func TestWeightedQueryVectorSkipsNonPositiveWeights(t *testing.T) {
	p := lexical.NewPipeline("en", 1, nil)
	ix := trainedIndex(t, p, []model.Example{
		{Input: "sunny forecast", Output: []string{"Weather"}},
	})

	tf := WeightedQueryVector(ix, p, map[string]float64{
		"sunny":    0,
		"forecast": -2,
	}, 1)
	if len(tf) != 0 {
		t.Errorf("vector size = %d, want 0 for non-positive weights", len(tf))
	}
}

func TestWeightedQueryVectorAppliesExponent(t *testing.T) {
	p := lexical.NewPipeline("en", 1, nil)
	ix := trainedIndex(t, p, []model.Example{
		{Input: "sunny forecast", Output: []string{"Weather"}},
	})
	term, _ := ix.TermByValue("sunni")

	tf := WeightedQueryVector(ix, p, map[string]float64{"sunny": 3}, 2)
	if got := tf[term.ID]; math.Abs(got-9) > 1e-12 {
		t.Errorf("tf = %v, want 9 (weight 3 at exponent 2)", got)
	}
}

func stubCandidates(scores ...float64) []Candidate {
	names := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	cands := make([]Candidate, len(scores))
	for i, s := range scores {
		cands[i] = Candidate{
			Category: &model.Category{
				Stem:     names[i],
				Variants: map[string]int{names[i]: 1},
			},
			Score: s,
		}
	}
	return cands
}

func TestAdaptiveCutStopsAtScoreGap(t *testing.T) {
	// 1.0 → 0.95 is a 5% drop (kept); 0.95 → 0.5 is a 47% drop (cut).
	cands := adaptiveCut(stubCandidates(1.0, 0.95, 0.5, 0.4))
	if len(cands) != 2 {
		t.Fatalf("kept %d candidates, want 2", len(cands))
	}
}

func TestAdaptiveCutStopsBelowFloor(t *testing.T) {
	// Gentle decay, but 0.75 is below 80% of the top score.
	cands := adaptiveCut(stubCandidates(1.0, 0.9, 0.82, 0.75))
	if len(cands) != 3 {
		t.Fatalf("kept %d candidates, want 3", len(cands))
	}
}

func TestAdaptiveCutKeepsAtLeastOne(t *testing.T) {
	cands := adaptiveCut(stubCandidates(1.0, 0.01))
	if len(cands) != 1 {
		t.Fatalf("kept %d candidates, want 1", len(cands))
	}
}

func TestShapeTruncatesAndCapitalizes(t *testing.T) {
	cands := stubCandidates(0.9, 0.8, 0.7)
	results := Shape(cands, ShapeOptions{Amount: 2, Capitalize: true})
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Label != "Alpha" || results[1].Label != "Beta" {
		t.Errorf("labels = %q, %q; want capitalized variants", results[0].Label, results[1].Label)
	}
}

func TestShapeUsesBestVariant(t *testing.T) {
	cands := []Candidate{{
		Category: &model.Category{
			Stem:     "machin learn",
			Variants: map[string]int{"machine learning": 1, "Machine Learning": 4},
		},
		Score: 1,
	}}
	results := Shape(cands, ShapeOptions{Amount: 1})
	if results[0].Label != "Machine Learning" {
		t.Errorf("label = %q, want the most frequent surface form", results[0].Label)
	}
}

func TestApplyGravityBoostsWinningGroup(t *testing.T) {
	p := lexical.NewPipeline("en", 1, nil)
	ix := trainedIndex(t, p, []model.Example{
		{Input: "clear skies tomorrow", Output: []string{"Weather"}},
		{Input: "stock market rally", Output: []string{"Finance"}},
	})
	ix.AddGroup("weather", []string{"ski", "clear", "weather"})

	cands := []Candidate{
		{Category: mustCategory(t, ix, "financ"), Score: 1.0},
		{Category: mustCategory(t, ix, "weather"), Score: 0.9},
	}
	ApplyGravity(ix, []string{"clear", "ski"}, cands)

	if cands[0].Category.Stem != "weather" {
		t.Errorf("top after boost = %q, want %q", cands[0].Category.Stem, "weather")
	}
	if cands[0].Score <= 0.9 {
		t.Errorf("boosted score = %v, want > 0.9", cands[0].Score)
	}
}

func TestApplyGravityIgnoresInactiveGroups(t *testing.T) {
	p := lexical.NewPipeline("en", 1, nil)
	ix := trainedIndex(t, p, []model.Example{
		{Input: "clear skies tomorrow", Output: []string{"Weather"}},
	})
	ix.AddGroup("cuisin", []string{"pasta", "sauce"})

	cands := []Candidate{{Category: mustCategory(t, ix, "weather"), Score: 0.5}}
	ApplyGravity(ix, []string{"clear"}, cands)
	if cands[0].Score != 0.5 {
		t.Errorf("score = %v, want unchanged when no group activates", cands[0].Score)
	}
}

func TestSnapshotCurrentTracksGeneration(t *testing.T) {
	p := lexical.NewPipeline("en", 1, nil)
	ix := trainedIndex(t, p, []model.Example{
		{Input: "clear skies", Output: []string{"Weather"}},
	})

	snap := BuildSnapshot(ix)
	if !snap.Current(ix) {
		t.Fatal("fresh snapshot must be current")
	}
	ix.TrainBatch(p, []model.Example{
		{Input: "stock rally", Output: []string{"Finance"}},
	})
	if snap.Current(ix) {
		t.Error("snapshot must go stale after training")
	}
	var nilSnap *Snapshot
	if nilSnap.Current(ix) {
		t.Error("nil snapshot can never be current")
	}
}

func mustCategory(t *testing.T, ix *model.Index, stem string) *model.Category {
	t.Helper()
	cat, ok := ix.CategoryByStem(stem)
	if !ok {
		t.Fatalf("category %q not found", stem)
	}
	return cat
}
