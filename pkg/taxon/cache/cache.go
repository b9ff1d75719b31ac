// Package cache provides a bounded LRU cache for shaped prediction results.
// Keys embed the index generation, so stale entries from before a mutation
// are simply never hit again and age out of the LRU.
package cache

import (
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cognitext/taxon/pkg/taxon/predict"
)

// DefaultSize is the cache capacity used when callers do not configure one.
const DefaultSize = 256

// ResultCache memoizes shaped prediction results per index generation.
type ResultCache struct {
	lru *lru.Cache[string, []predict.Result]
}

// New creates a result cache with the given capacity.
func New(size int) (*ResultCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	inner, err := lru.New[string, []predict.Result](size)
	if err != nil {
		return nil, err
	}
	return &ResultCache{lru: inner}, nil
}

// Key builds a cache key from the index generation, shaping options and the
// query parts. Weighted queries must pass their parts in a stable order;
// SortedWeightParts helps with that.
func Key(generation uint64, opts predict.ShapeOptions, parts ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "g%d|a%d|d%t|c%t", generation, opts.Amount, opts.Adaptive, opts.Capitalize)
	for _, p := range parts {
		b.WriteByte('|')
		b.WriteString(p)
	}
	return b.String()
}

// SortedWeightParts renders a weight map as deterministic key parts.
func SortedWeightParts(weights map[string]float64) []string {
	parts := make([]string, 0, len(weights))
	for text, w := range weights {
		parts = append(parts, fmt.Sprintf("%s=%g", text, w))
	}
	sort.Strings(parts)
	return parts
}

// Get returns the cached results for a key, if present.
func (c *ResultCache) Get(key string) ([]predict.Result, bool) {
	return c.lru.Get(key)
}

// Add stores results under a key.
func (c *ResultCache) Add(key string, results []predict.Result) {
	c.lru.Add(key, results)
}

// Purge drops every entry.
func (c *ResultCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}
