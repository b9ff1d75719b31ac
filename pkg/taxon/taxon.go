// Package taxon is an incremental multi-label text classifier: it learns a
// statistical term/category index from streamed examples and scores new text
// against every known category with a weighted algorithm ensemble. The same
// statistics answer category-relation queries and drive thematic clustering.
package taxon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cognitext/taxon/pkg/taxon/cache"
	"github.com/cognitext/taxon/pkg/taxon/cluster"
	"github.com/cognitext/taxon/pkg/taxon/config"
	"github.com/cognitext/taxon/pkg/taxon/internalerr"
	"github.com/cognitext/taxon/pkg/taxon/lexical"
	"github.com/cognitext/taxon/pkg/taxon/model"
	"github.com/cognitext/taxon/pkg/taxon/persist"
	"github.com/cognitext/taxon/pkg/taxon/predict"
	"github.com/cognitext/taxon/pkg/taxon/purge"
)

// Example is one training observation. Re-exported so callers do not need to
// import the model package.
type Example = model.Example

// Result is one shaped prediction.
type Result = predict.Result

// Options configures a Classifier.
type Options struct {
	// Language selects the stemmer by ISO 639-1 code (default "en").
	Language string
	// MaxGram is the maximum term n-gram length (default 2).
	MaxGram int
	// Exclusions lists words that never become terms or category labels.
	Exclusions []string
	// Weights overrides the ensemble algorithm weights.
	Weights *model.EnsembleWeights
	// ByteBudget bounds the serialized index size; zero disables eviction.
	ByteBudget int64
	// WeightExponent scales multi-text query weights (default 1).
	WeightExponent float64
	// Store is the persistence collaborator; nil keeps the model in memory
	// only.
	Store persist.Store
	// CreateIfMissing starts from an empty index when no model can be
	// loaded; without it a missing or corrupt model is fatal.
	CreateIfMissing bool
	// RemoteURL optionally imports a pre-trained model before the first
	// load. Only meaningful together with a file store.
	RemoteURL string
	// CacheSize bounds the prediction result cache.
	CacheSize int
	// Logger receives swallowed background errors; defaults to the
	// standard logger.
	Logger *log.Logger
	// Seed fixes the clustering random source for reproducible runs; zero
	// seeds from the clock.
	Seed int64
}

// FromConfig converts a loaded configuration into Options with a file store.
func FromConfig(cfg config.Config) Options {
	opts := Options{
		Language:        cfg.Language,
		MaxGram:         cfg.MaxGram,
		Exclusions:      cfg.Exclusions,
		Weights:         cfg.Weights,
		ByteBudget:      cfg.ByteBudget,
		WeightExponent:  cfg.WeightExponent,
		CreateIfMissing: cfg.CreateIfMissing,
		RemoteURL:       cfg.RemoteURL,
		CacheSize:       cfg.CacheSize,
	}
	if cfg.ModelPath != "" {
		opts.Store = persist.NewFileStore(cfg.ModelPath)
	}
	return opts
}

// Classifier owns one model index exclusively. Training takes the write
// lock; prediction, relation and clustering queries share the read lock, so
// no read ever observes a half-updated index.
type Classifier struct {
	mu        sync.RWMutex
	index     *model.Index
	pipeline  *lexical.Pipeline
	store     persist.Store
	results   *cache.ResultCache
	logger    *log.Logger
	weightExp float64
	destroyed bool

	// guardMu protects the purge/save reentrancy flags.
	guardMu sync.Mutex
	purging bool
	saving  bool

	// preMu protects the lazily rebuilt preprocessing snapshot.
	preMu sync.Mutex
	pre   *predict.Snapshot

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a classifier, importing and loading a persisted model when a
// store is configured. With CreateIfMissing, a missing or corrupt model
// falls back to an empty index; otherwise it is fatal.
func New(ctx context.Context, opts Options) (*Classifier, error) {
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.MaxGram < 1 {
		opts.MaxGram = 2
	}
	if opts.WeightExponent == 0 {
		opts.WeightExponent = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "taxon: ", log.LstdFlags)
	}

	results, err := cache.New(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	c := &Classifier{
		store:     opts.Store,
		results:   results,
		logger:    logger,
		weightExp: opts.WeightExponent,
		rng:       rand.New(rand.NewSource(seed)),
	}

	if opts.RemoteURL != "" {
		if err := c.importRemote(ctx, opts); err != nil {
			return nil, err
		}
	}

	ix, err := c.loadOrCreate(ctx, opts)
	if err != nil {
		return nil, err
	}
	c.index = ix

	c.pipeline = lexical.NewPipeline(opts.Language, ix.MaxGram, opts.Exclusions)
	// Stems persisted with the model and stems from the options must agree
	// between the pipeline and the index.
	for stem := range ix.Excluded {
		c.pipeline.ExcludeStems(stem)
	}
	for _, stem := range c.pipeline.Exclusions() {
		ix.Excluded[stem] = struct{}{}
	}

	return c, nil
}

func (c *Classifier) importRemote(ctx context.Context, opts Options) error {
	fs, ok := opts.Store.(*persist.FileStore)
	if !ok {
		return fmt.Errorf("%w: remote import requires a file store", internalerr.ErrInvalidInput)
	}
	if _, err := os.Stat(fs.Path()); err == nil {
		return nil // local model wins
	}
	if err := persist.ImportRemote(ctx, opts.RemoteURL, fs.Path()); err != nil {
		if !opts.CreateIfMissing {
			return err
		}
		c.logger.Printf("remote import failed, starting empty: %v", err)
	}
	return nil
}

func (c *Classifier) loadOrCreate(ctx context.Context, opts Options) (*model.Index, error) {
	if opts.Store != nil {
		ix, err := opts.Store.Load(ctx)
		switch {
		case err == nil:
			return ix, nil
		case errors.Is(err, internalerr.ErrModelNotFound):
			if !opts.CreateIfMissing {
				return nil, err
			}
		case errors.Is(err, internalerr.ErrCorruptModel):
			if !opts.CreateIfMissing {
				return nil, err
			}
			c.logger.Printf("corrupt model, starting empty: %v", err)
		default:
			return nil, err
		}
	}

	ix := model.NewIndex(opts.MaxGram)
	if opts.Weights != nil {
		ix.Weights = *opts.Weights
	}
	ix.ByteBudget = opts.ByteBudget
	return ix, nil
}

// Train ingests a batch of examples. After the batch, a purge is started in
// the background when the index exceeds its byte budget; a failed purge is
// logged and swallowed so it can never fail training.
func (c *Classifier) Train(ctx context.Context, examples []Example) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return internalerr.ErrDestroyed
	}
	c.index.TrainBatch(c.pipeline, examples)
	needsPurge := c.index.NeedsPurge()
	c.mu.Unlock()

	if needsPurge {
		go c.backgroundPurge()
	}
	return nil
}

func (c *Classifier) backgroundPurge() {
	c.guardMu.Lock()
	if c.purging || c.saving {
		c.guardMu.Unlock()
		return
	}
	c.purging = true
	c.guardMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Printf("purge failed: %v", r)
		}
		c.guardMu.Lock()
		c.purging = false
		c.guardMu.Unlock()
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	stats := purge.Run(c.index)
	if stats.TermsAfter < stats.TermsBefore {
		c.logger.Printf("purged terms: %d -> %d", stats.TermsBefore, stats.TermsAfter)
	}
}

// Purge synchronously prunes an over-budget index and reports what was
// removed. It fails with ErrPurgeInProgress while a background purge or a
// save holds the guard; an index within budget is a no-op.
func (c *Classifier) Purge(ctx context.Context) (purge.Stats, error) {
	if err := ctx.Err(); err != nil {
		return purge.Stats{}, err
	}

	c.guardMu.Lock()
	if c.purging || c.saving {
		c.guardMu.Unlock()
		return purge.Stats{}, internalerr.ErrPurgeInProgress
	}
	c.purging = true
	c.guardMu.Unlock()
	defer func() {
		c.guardMu.Lock()
		c.purging = false
		c.guardMu.Unlock()
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return purge.Stats{}, internalerr.ErrDestroyed
	}
	return purge.Run(c.index), nil
}

// Predict scores the query against every trained category and returns the
// shaped results. Single-text queries run the full ensemble with
// gravitational boosting; weighted multi-text queries return a true
// probability distribution.
func (c *Classifier) Predict(ctx context.Context, q Query, opts PredictOptions) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !q.valid() {
		return nil, fmt.Errorf("%w: query must be a text or a non-empty text→weight map", internalerr.ErrInvalidInput)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.destroyed {
		return nil, internalerr.ErrDestroyed
	}

	shape := predict.ShapeOptions{Amount: opts.Amount, Adaptive: opts.Adaptive, Capitalize: opts.Capitalize}

	var key string
	if q.isText {
		key = cache.Key(c.index.Generation(), shape, "s", q.text)
	} else {
		key = cache.Key(c.index.Generation(), shape, append([]string{"w"}, cache.SortedWeightParts(q.weighted)...)...)
	}
	if cached, ok := c.results.Get(key); ok {
		return cached, nil
	}

	snap := c.snapshot()

	var results []Result
	if q.isText {
		terms := c.pipeline.Terms(q.text)
		cands := predict.ScoreSingle(c.index, snap, predict.QueryVector(c.index, terms))
		predict.ApplyGravity(c.index, terms, cands)
		results = predict.Shape(cands, shape)
	} else {
		qtf := predict.WeightedQueryVector(c.index, c.pipeline, q.weighted, c.weightExp)
		results = predict.Shape(predict.ScoreWeighted(c.index, snap, qtf), shape)
	}

	c.results.Add(key, results)
	return results, nil
}

// Warm eagerly rebuilds the preprocessing snapshot so the next prediction
// after a mutation does not pay the rebuild cost.
func (c *Classifier) Warm(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.destroyed {
		return internalerr.ErrDestroyed
	}
	c.snapshot()
	return nil
}

// snapshot returns the preprocessing snapshot for the current index
// generation, rebuilding it in full when stale. Callers must hold at least
// the read lock.
func (c *Classifier) snapshot() *predict.Snapshot {
	c.preMu.Lock()
	defer c.preMu.Unlock()
	if !c.pre.Current(c.index) {
		c.pre = predict.BuildSnapshot(c.index)
	}
	return c.pre
}

// Reduce groups the input categories into at most K thematic clusters keyed
// by generated names.
func (c *Classifier) Reduce(ctx context.Context, input ReduceInput, opts ReduceOptions) (map[string][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	weights := input.toWeights()
	if weights == nil {
		return nil, fmt.Errorf("%w: reduce needs a category list or a category→weight map", internalerr.ErrInvalidInput)
	}
	if opts.Amount < 1 {
		return nil, fmt.Errorf("%w: reduce amount must be >= 1", internalerr.ErrInvalidInput)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.destroyed {
		return nil, internalerr.ErrDestroyed
	}

	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return cluster.Reduce(c.index, c.pipeline, weights, opts.Amount, c.rng), nil
}

// AddGravitationalGroups installs named term groups that bias prediction
// toward known concept clusters. Group names and member terms are stemmed on
// the way in; re-adding a name replaces its members.
func (c *Classifier) AddGravitationalGroups(groups map[string][]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return internalerr.ErrDestroyed
	}

	for name, terms := range groups {
		stemName := c.pipeline.StemKey(name)
		if stemName == "" {
			return fmt.Errorf("%w: empty group name", internalerr.ErrInvalidInput)
		}
		stems := make([]string, 0, len(terms))
		for _, term := range terms {
			if stem := c.pipeline.StemKey(term); stem != "" {
				stems = append(stems, stem)
			}
		}
		c.index.AddGroup(stemName, stems)
	}
	return nil
}

// Save purges an over-budget index first, then persists it through the
// configured store. The save guard is released on success and failure alike;
// errors are returned to the caller, never swallowed.
func (c *Classifier) Save(ctx context.Context) error {
	if c.store == nil {
		return fmt.Errorf("%w: no store configured", internalerr.ErrInvalidInput)
	}

	c.guardMu.Lock()
	if c.saving {
		c.guardMu.Unlock()
		return internalerr.ErrSaveInProgress
	}
	c.saving = true
	c.guardMu.Unlock()
	defer func() {
		c.guardMu.Lock()
		c.saving = false
		c.guardMu.Unlock()
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return internalerr.ErrDestroyed
	}

	// Save always works on a consistent, already-purged index.
	if c.index.NeedsPurge() {
		purge.Run(c.index)
	}
	return c.store.Save(ctx, c.index)
}

// Reset drops every learned statistic while keeping configuration
// (exclusions, weights, budget, n-gram length).
func (c *Classifier) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return internalerr.ErrDestroyed
	}
	c.index.Reset()
	c.results.Purge()
	return nil
}

// Destroy permanently disables the classifier and clears all state. Every
// later operation, Destroy included, fails with ErrDestroyed.
func (c *Classifier) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return internalerr.ErrDestroyed
	}
	c.destroyed = true
	c.index = nil
	c.results.Purge()
	return nil
}

// Joined renders results as a labels-only string, most likely first.
func Joined(results []Result, sep string) string {
	labels := Labels(results)
	return strings.Join(labels, sep)
}

// Labels strips scores from results.
func Labels(results []Result) []string {
	labels := make([]string, len(results))
	for i, r := range results {
		labels[i] = r.Label
	}
	return labels
}
