// Package persist saves and loads the learned index. Two backends implement
// the same narrow interface: a gzip-compressed JSON container on disk and a
// relational SQLite layout. Pre-trained models can additionally be imported
// over HTTP for a later load.
package persist

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/cognitext/taxon/pkg/taxon/model"
)

// Store is the persistence collaborator the classifier consumes.
type Store interface {
	// Load deserializes the persisted model. Missing, empty, corrupt and
	// malformed data fail with distinguishable errors (internalerr
	// sentinels).
	Load(ctx context.Context) (*model.Index, error)
	// Save serializes the index. The index's average-bytes-per-term
	// estimate is recomputed on success.
	Save(ctx context.Context, ix *model.Index) error
}

// container is the stable persisted shape of the index. Field layout is
// format-level: other implementations must produce the same structure, not
// the same bytes.
type container struct {
	SnapshotID   string                    `json:"snapshot_id"`
	SavedAt      time.Time                 `json:"saved_at"`
	MaxGram      int                       `json:"max_gram"`
	TotalDocs    int                       `json:"total_docs"`
	Categories   []*model.Category         `json:"categories"`
	Terms        []*model.Term             `json:"terms"`
	Relations    map[string]map[string]int `json:"relations"`
	Groups       map[string][]string       `json:"groups"`
	Weights      model.EnsembleWeights     `json:"weights"`
	Exclusions   []string                  `json:"exclusions"`
	ByteBudget   int64                     `json:"byte_budget"`
	AvgTermBytes float64                   `json:"avg_term_bytes,omitempty"`
}

func toContainer(ix *model.Index, snapshotID string) *container {
	groups := make(map[string][]string, len(ix.Groups))
	for name, g := range ix.Groups {
		terms := make([]string, 0, len(g.Terms))
		for t := range g.Terms {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		groups[name] = terms
	}

	exclusions := make([]string, 0, len(ix.Excluded))
	for stem := range ix.Excluded {
		exclusions = append(exclusions, stem)
	}
	sort.Strings(exclusions)

	return &container{
		SnapshotID:   snapshotID,
		SavedAt:      time.Now().UTC(),
		MaxGram:      ix.MaxGram,
		TotalDocs:    ix.TotalDocs,
		Categories:   ix.Categories,
		Terms:        ix.Terms,
		Relations:    ix.Relations,
		Groups:       groups,
		Weights:      ix.Weights,
		Exclusions:   exclusions,
		ByteBudget:   ix.ByteBudget,
		AvgTermBytes: ix.AvgTermBytes,
	}
}

// fromContainer rebuilds an index from its persisted shape. Reindex
// validates referential integrity; the caller maps its failure to
// ErrCorruptModel.
func fromContainer(c *container) (*model.Index, error) {
	ix := model.NewIndex(c.MaxGram)
	ix.TotalDocs = c.TotalDocs
	ix.Categories = c.Categories
	ix.Terms = c.Terms
	if c.Relations != nil {
		ix.Relations = c.Relations
	}
	for name, terms := range c.Groups {
		ix.AddGroup(name, terms)
	}
	for _, stem := range c.Exclusions {
		ix.Excluded[stem] = struct{}{}
	}
	ix.Weights = c.Weights
	ix.ByteBudget = c.ByteBudget
	ix.AvgTermBytes = c.AvgTermBytes

	if err := ix.Reindex(); err != nil {
		return nil, err
	}
	return ix, nil
}

// measureAvgTermBytes derives the average serialized bytes per term from the
// container's uncompressed JSON encoding. Both backends use the same measure
// so the byte budget converts identically to a term budget.
func measureAvgTermBytes(c *container) (float64, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return 0, err
	}
	terms := len(c.Terms)
	if terms == 0 {
		return model.DefaultAvgTermBytes, nil
	}
	return float64(len(raw)) / float64(terms), nil
}
