package persist

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/oklog/ulid/v2"

	"github.com/cognitext/taxon/pkg/taxon/internalerr"
	"github.com/cognitext/taxon/pkg/taxon/model"
)

// FileStore persists the model as a gzip-compressed JSON container at a
// fixed path. Parent directories are created on save; writes go through a
// temp file and rename so an interrupted save never leaves a truncated
// model behind.
type FileStore struct {
	path    string
	entropy *ulid.MonotonicEntropy
}

// NewFileStore creates a file store for the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:    path,
		entropy: ulid.Monotonic(crand.Reader, 0),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads, decompresses and decodes the container, rebuilds the index and
// recomputes the average-bytes-per-term estimate from the decompressed size.
func (s *FileStore) Load(ctx context.Context) (*model.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	compressed, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", internalerr.ErrModelNotFound, s.path)
		}
		return nil, err
	}
	if len(compressed) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", internalerr.ErrCorruptModel, s.path)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: decompress %s: %v", internalerr.ErrCorruptModel, s.path, err)
	}
	raw, err := io.ReadAll(zr)
	if closeErr := zr.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decompress %s: %v", internalerr.ErrCorruptModel, s.path, err)
	}

	var c container
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", internalerr.ErrCorruptModel, s.path, err)
	}

	ix, err := fromContainer(&c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrCorruptModel, err)
	}

	if terms := len(ix.Terms); terms > 0 {
		ix.AvgTermBytes = float64(len(raw)) / float64(terms)
	} else {
		ix.AvgTermBytes = model.DefaultAvgTermBytes
	}
	return ix, nil
}

// Save encodes and compresses the index to disk, creating parent directories
// as needed, and updates the index's average-bytes-per-term estimate.
func (s *FileStore) Save(ctx context.Context, ix *model.Index) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c := toContainer(ix, ulid.MustNew(ulid.Now(), s.entropy).String())
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model directory: %w", err)
		}
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return fmt.Errorf("compress model: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress model: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write model: %w", err)
	}

	if terms := len(ix.Terms); terms > 0 {
		ix.AvgTermBytes = float64(len(raw)) / float64(terms)
	}
	return nil
}
