package purge

import (
	"testing"

	"github.com/cognitext/taxon/pkg/taxon/lexical"
	"github.com/cognitext/taxon/pkg/taxon/model"
)

// budget configures the index so it allows exactly n terms.
func budget(ix *model.Index, n int) {
	ix.AvgTermBytes = 100
	ix.ByteBudget = int64(n * 100)
}

func TestRunLeavesIndexWithinBudgetUntouched(t *testing.T) {
	p := lexical.NewPipeline("en", 1, nil)
	ix := model.NewIndex(1)
	ix.TrainBatch(p, []model.Example{
		{Input: "sunny forecast", Output: []string{"Weather"}},
	})
	budget(ix, 10)

	stats := Run(ix)
	if stats.TermsBefore != 2 || stats.TermsAfter != 2 {
		t.Errorf("stats = %+v, want untouched term table", stats)
	}
	if stats.TrimmedCategories != 0 {
		t.Errorf("trimmed %d categories, want 0", stats.TrimmedCategories)
	}
}

func TestRunPrunesToAllowedCount(t *testing.T) {
	p := lexical.NewPipeline("en", 1, nil)
	ix := model.NewIndex(1)
	examples := make([]model.Example, 0, 6)
	for i := 0; i < 5; i++ {
		examples = append(examples, model.Example{Input: "sunny forecast", Output: []string{"Weather"}})
	}
	examples = append(examples, model.Example{Input: "zebra quartz violet umbra", Output: []string{"Weather"}})
	ix.TrainBatch(p, examples)
	budget(ix, 4)

	if !ix.NeedsPurge() {
		t.Fatal("index must exceed budget before the run")
	}
	stats := Run(ix)
	if stats.TermsBefore != 6 || stats.TermsAfter != 4 {
		t.Fatalf("stats = %+v, want 6 terms pruned to 4", stats)
	}

	// High-DF terms survive; singleton tail terms go first.
	for _, value := range []string{"sunni", "forecast"} {
		if _, ok := ix.TermByValue(value); !ok {
			t.Errorf("frequent term %q evicted", value)
		}
	}
	if _, ok := ix.TermByValue("umbra"); ok {
		t.Error("rare tail term survived eviction")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	p := lexical.NewPipeline("en", 1, nil)
	ix := model.NewIndex(1)
	ix.TrainBatch(p, []model.Example{
		{Input: "alpha beta gamma delta epsilon zeta", Output: []string{"Topic"}},
	})
	budget(ix, 3)

	first := Run(ix)
	if first.TermsAfter != 3 {
		t.Fatalf("first run left %d terms, want 3", first.TermsAfter)
	}
	second := Run(ix)
	if second.TermsBefore != second.TermsAfter {
		t.Errorf("second run changed the term table: %+v", second)
	}
	if second.TrimmedCategories != 0 {
		t.Errorf("second run trimmed %d categories, want 0", second.TrimmedCategories)
	}
}

func TestRunKeepsTermTotalsConsistent(t *testing.T) {
	p := lexical.NewPipeline("en", 1, nil)
	ix := model.NewIndex(1)
	ix.TrainBatch(p, []model.Example{
		{Input: "alpha beta alpha gamma", Output: []string{"Big"}},
		{Input: "alpha beta delta", Output: []string{"Big"}},
		{Input: "epsilon zeta", Output: []string{"Small"}},
	})
	budget(ix, 4)

	Run(ix)

	for _, cat := range ix.Categories {
		sum := 0
		for _, count := range cat.Terms {
			sum += count
		}
		if sum != cat.TermTotal {
			t.Errorf("category %q: TermTotal = %d, occurrence sum = %d", cat.Stem, cat.TermTotal, sum)
		}
	}
}

func TestRunTrimsOverRepresentedCategories(t *testing.T) {
	p := lexical.NewPipeline("en", 1, nil)
	ix := model.NewIndex(1)
	var examples []model.Example
	for i := 0; i < 6; i++ {
		examples = append(examples, model.Example{Input: "alpha beta", Output: []string{"Big"}})
	}
	examples = append(examples,
		model.Example{Input: "gamma delta", Output: []string{"Small"}},
		model.Example{Input: "gamma delta", Output: []string{"Small"}},
	)
	ix.TrainBatch(p, examples)
	budget(ix, 3)

	stats := Run(ix)
	if stats.TrimmedCategories == 0 {
		t.Fatal("over-represented categories must be trimmed")
	}

	target := 3 / len(ix.Categories)
	if target < 1 {
		target = 1
	}
	limit := int(float64(target) * fairnessTolerance)
	for _, cat := range ix.Categories {
		if cat.TermTotal > limit {
			t.Errorf("category %q: TermTotal = %d exceeds fairness limit %d", cat.Stem, cat.TermTotal, limit)
		}
	}
}

func TestRunRebuildsContiguousTermIDs(t *testing.T) {
	p := lexical.NewPipeline("en", 1, nil)
	ix := model.NewIndex(1)
	ix.TrainBatch(p, []model.Example{
		{Input: "alpha beta gamma delta epsilon zeta", Output: []string{"Topic"}},
	})
	budget(ix, 3)

	Run(ix)

	for i, term := range ix.Terms {
		if term.ID != model.TermID(i) {
			t.Errorf("term %q: id = %d, want %d", term.Value, term.ID, i)
		}
	}
	if err := ix.Reindex(); err != nil {
		t.Errorf("post-purge integrity check failed: %v", err)
	}
}
