package persist

import (
	"context"
	crand "crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/oklog/ulid/v2"

	"github.com/cognitext/taxon/pkg/taxon/internalerr"
	"github.com/cognitext/taxon/pkg/taxon/model"
)

// SQLiteStore persists the model relationally in a single SQLite file. It
// keeps exactly one model per database: every save replaces the previous
// snapshot inside one transaction.
type SQLiteStore struct {
	db      *sql.DB
	entropy *ulid.MonotonicEntropy
}

// OpenSQLite opens (creating if needed) a SQLite-backed model store with WAL
// mode enabled.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{
		db:      db,
		entropy: ulid.Monotonic(crand.Reader, 0),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS snapshot (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	snapshot_id TEXT NOT NULL,
	saved_at TEXT NOT NULL,
	total_docs INTEGER NOT NULL,
	max_gram INTEGER NOT NULL,
	byte_budget INTEGER NOT NULL,
	avg_term_bytes REAL NOT NULL,
	weights_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
	id INTEGER NOT NULL,
	stem TEXT PRIMARY KEY,
	doc_count INTEGER NOT NULL,
	term_total INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS category_variants (
	stem TEXT NOT NULL,
	variant TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY(stem, variant)
);

CREATE TABLE IF NOT EXISTS category_terms (
	stem TEXT NOT NULL,
	term_id INTEGER NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY(stem, term_id)
);

CREATE TABLE IF NOT EXISTS terms (
	id INTEGER PRIMARY KEY,
	value TEXT UNIQUE NOT NULL,
	df INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS relations (
	t1 TEXT NOT NULL,
	t2 TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY(t1, t2)
);

CREATE TABLE IF NOT EXISTS gravity_groups (
	name TEXT NOT NULL,
	term TEXT NOT NULL,
	PRIMARY KEY(name, term)
);

CREATE TABLE IF NOT EXISTS exclusions (
	term TEXT PRIMARY KEY
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Save replaces the stored model with the given index inside a transaction
// and updates the index's average-bytes-per-term estimate.
func (s *SQLiteStore) Save(ctx context.Context, ix *model.Index) error {
	c := toContainer(ix, ulid.MustNew(ulid.Now(), s.entropy).String())

	weightsJSON, err := json.Marshal(c.Weights)
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{
		"snapshot", "categories", "category_variants", "category_terms",
		"terms", "relations", "gravity_groups", "exclusions",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO snapshot (id, snapshot_id, saved_at, total_docs, max_gram, byte_budget, avg_term_bytes, weights_json)
VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
		c.SnapshotID,
		c.SavedAt.Format(time.RFC3339Nano),
		c.TotalDocs,
		c.MaxGram,
		c.ByteBudget,
		c.AvgTermBytes,
		string(weightsJSON),
	)
	if err != nil {
		return err
	}

	for _, cat := range c.Categories {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO categories (id, stem, doc_count, term_total) VALUES (?, ?, ?, ?)",
			cat.ID, cat.Stem, cat.DocCount, cat.TermTotal,
		); err != nil {
			return err
		}
		for variant, count := range cat.Variants {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO category_variants (stem, variant, count) VALUES (?, ?, ?)",
				cat.Stem, variant, count,
			); err != nil {
				return err
			}
		}
		for id, count := range cat.Terms {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO category_terms (stem, term_id, count) VALUES (?, ?, ?)",
				cat.Stem, id, count,
			); err != nil {
				return err
			}
		}
	}

	for _, t := range c.Terms {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO terms (id, value, df) VALUES (?, ?, ?)",
			t.ID, t.Value, t.DF,
		); err != nil {
			return err
		}
	}

	for from, edges := range c.Relations {
		for to, count := range edges {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO relations (t1, t2, count) VALUES (?, ?, ?)",
				from, to, count,
			); err != nil {
				return err
			}
		}
	}

	for name, terms := range c.Groups {
		for _, term := range terms {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO gravity_groups (name, term) VALUES (?, ?)",
				name, term,
			); err != nil {
				return err
			}
		}
	}

	for _, term := range c.Exclusions {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO exclusions (term) VALUES (?)", term,
		); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	avg, err := measureAvgTermBytes(c)
	if err == nil {
		ix.AvgTermBytes = avg
	}
	return nil
}

// Load rebuilds the index from the stored rows.
func (s *SQLiteStore) Load(ctx context.Context) (*model.Index, error) {
	var c container
	var savedAt, weightsJSON string

	err := s.db.QueryRowContext(ctx, `
SELECT snapshot_id, saved_at, total_docs, max_gram, byte_budget, avg_term_bytes, weights_json
FROM snapshot WHERE id = 1`).Scan(
		&c.SnapshotID, &savedAt, &c.TotalDocs, &c.MaxGram,
		&c.ByteBudget, &c.AvgTermBytes, &weightsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no saved model", internalerr.ErrModelNotFound)
	}
	if err != nil {
		return nil, err
	}
	if c.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
		return nil, fmt.Errorf("%w: saved_at: %v", internalerr.ErrCorruptModel, err)
	}
	if err := json.Unmarshal([]byte(weightsJSON), &c.Weights); err != nil {
		return nil, fmt.Errorf("%w: weights: %v", internalerr.ErrCorruptModel, err)
	}

	if err := s.loadCategories(ctx, &c); err != nil {
		return nil, err
	}
	if err := s.loadTerms(ctx, &c); err != nil {
		return nil, err
	}
	if err := s.loadRelations(ctx, &c); err != nil {
		return nil, err
	}
	if err := s.loadGroupsAndExclusions(ctx, &c); err != nil {
		return nil, err
	}

	ix, err := fromContainer(&c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrCorruptModel, err)
	}

	avg, err := measureAvgTermBytes(&c)
	if err == nil {
		ix.AvgTermBytes = avg
	}
	return ix, nil
}

func (s *SQLiteStore) loadCategories(ctx context.Context, c *container) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, stem, doc_count, term_total FROM categories ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	byStem := make(map[string]*model.Category)
	for rows.Next() {
		cat := &model.Category{
			Variants: make(map[string]int),
			Terms:    make(map[model.TermID]int),
		}
		if err := rows.Scan(&cat.ID, &cat.Stem, &cat.DocCount, &cat.TermTotal); err != nil {
			return err
		}
		c.Categories = append(c.Categories, cat)
		byStem[cat.Stem] = cat
	}
	if err := rows.Err(); err != nil {
		return err
	}

	variants, err := s.db.QueryContext(ctx,
		"SELECT stem, variant, count FROM category_variants")
	if err != nil {
		return err
	}
	defer variants.Close()
	for variants.Next() {
		var stem, variant string
		var count int
		if err := variants.Scan(&stem, &variant, &count); err != nil {
			return err
		}
		cat, ok := byStem[stem]
		if !ok {
			return fmt.Errorf("%w: variant for unknown category %q", internalerr.ErrCorruptModel, stem)
		}
		cat.Variants[variant] = count
	}
	if err := variants.Err(); err != nil {
		return err
	}

	counts, err := s.db.QueryContext(ctx,
		"SELECT stem, term_id, count FROM category_terms")
	if err != nil {
		return err
	}
	defer counts.Close()
	for counts.Next() {
		var stem string
		var id model.TermID
		var count int
		if err := counts.Scan(&stem, &id, &count); err != nil {
			return err
		}
		cat, ok := byStem[stem]
		if !ok {
			return fmt.Errorf("%w: term count for unknown category %q", internalerr.ErrCorruptModel, stem)
		}
		cat.Terms[id] = count
	}
	return counts.Err()
}

func (s *SQLiteStore) loadTerms(ctx context.Context, c *container) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, value, df FROM terms ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		t := &model.Term{}
		if err := rows.Scan(&t.ID, &t.Value, &t.DF); err != nil {
			return err
		}
		c.Terms = append(c.Terms, t)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadRelations(ctx context.Context, c *container) error {
	c.Relations = make(map[string]map[string]int)
	rows, err := s.db.QueryContext(ctx, "SELECT t1, t2, count FROM relations")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var from, to string
		var count int
		if err := rows.Scan(&from, &to, &count); err != nil {
			return err
		}
		edges, ok := c.Relations[from]
		if !ok {
			edges = make(map[string]int)
			c.Relations[from] = edges
		}
		edges[to] = count
	}
	return rows.Err()
}

func (s *SQLiteStore) loadGroupsAndExclusions(ctx context.Context, c *container) error {
	c.Groups = make(map[string][]string)
	rows, err := s.db.QueryContext(ctx, "SELECT name, term FROM gravity_groups ORDER BY name, term")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name, term string
		if err := rows.Scan(&name, &term); err != nil {
			return err
		}
		c.Groups[name] = append(c.Groups[name], term)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	excl, err := s.db.QueryContext(ctx, "SELECT term FROM exclusions ORDER BY term")
	if err != nil {
		return err
	}
	defer excl.Close()
	for excl.Next() {
		var term string
		if err := excl.Scan(&term); err != nil {
			return err
		}
		c.Exclusions = append(c.Exclusions, term)
	}
	return excl.Err()
}
