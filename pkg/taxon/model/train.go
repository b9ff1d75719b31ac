package model

import (
	"github.com/cognitext/taxon/pkg/taxon/lexical"
)

// Example is one training observation: input text plus one or more output
// labels. Examples are not retained; only their aggregate effect survives.
type Example struct {
	Input  string   `json:"input"`
	Output []string `json:"output"`
}

// TrainBatch ingests a batch of examples, updating categories, terms,
// document frequencies and the co-occurrence graph. It returns the number of
// examples that actually contributed statistics.
//
// The total document counter increments once per ingested example, not once
// per label: an example is a single observation however many labels it
// carries. Term document frequency likewise counts each example once per
// distinct term.
func (ix *Index) TrainBatch(p *lexical.Pipeline, examples []Example) int {
	ingested := 0
	for _, ex := range examples {
		if ix.trainOne(p, ex) {
			ingested++
		}
	}
	if ingested > 0 {
		ix.Bump()
	}
	return ingested
}

type trainLabel struct {
	stem    string
	surface string
}

func (ix *Index) trainOne(p *lexical.Pipeline, ex Example) bool {
	labels := ix.survivingLabels(p, ex.Output)
	if len(labels) == 0 {
		return false
	}

	cats := make([]*Category, len(labels))
	for i, l := range labels {
		cats[i] = ix.EnsureCategory(l.stem, l.surface)
	}

	// The pipeline runs once per example, not once per label.
	terms := p.Terms(ex.Input)
	if len(terms) == 0 {
		return false
	}

	ix.TotalDocs++

	// Document frequency counts examples, not occurrences.
	seen := make(map[TermID]struct{}, len(terms))
	ids := make([]TermID, len(terms))
	for i, value := range terms {
		t := ix.EnsureTerm(value)
		ids[i] = t.ID
		if _, dup := seen[t.ID]; !dup {
			seen[t.ID] = struct{}{}
			t.DF++
		}
	}

	for _, cat := range cats {
		cat.DocCount++
		for _, id := range ids {
			cat.Terms[id]++
			cat.TermTotal++
		}
	}

	// Co-occurrence edges for multi-label examples; both directions are
	// incremented independently.
	if len(labels) >= 2 {
		for i := range labels {
			for j := range labels {
				if i != j && labels[i].stem != labels[j].stem {
					ix.AddRelation(labels[i].stem, labels[j].stem, 1)
				}
			}
		}
	}

	return true
}

// survivingLabels stems each raw label and drops excluded or empty ones,
// deduplicating by stem. A fully excluded example yields nothing.
func (ix *Index) survivingLabels(p *lexical.Pipeline, raw []string) []trainLabel {
	var labels []trainLabel
	seen := make(map[string]struct{}, len(raw))
	for _, label := range raw {
		stem := p.StemKey(label)
		if stem == "" {
			continue
		}
		if _, excluded := ix.Excluded[stem]; excluded {
			continue
		}
		if _, dup := seen[stem]; dup {
			continue
		}
		seen[stem] = struct{}{}
		labels = append(labels, trainLabel{stem: stem, surface: label})
	}
	return labels
}
