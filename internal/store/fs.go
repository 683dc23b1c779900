package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/driftlab/revdrift/internal/cache"
	"github.com/driftlab/revdrift/internal/corpus"
	"github.com/driftlab/revdrift/internal/metrics"
	"github.com/driftlab/revdrift/pkg/shingle"
)

// FSStore keeps shingle sets as hex-per-line text files under
// shingles/<doc>/<w>/lam-<label>/C-<version>.txt, with a bounded in-memory
// LRU of decoded sets in front of the files.
type FSStore struct {
	root    string
	decoded *cache.LRU[Key, []shingle.Fingerprint]
	metrics *metrics.Metrics
}

// NewFSStore creates a filesystem store rooted at root. cacheSize bounds
// the decoded-set LRU; m may be nil when instrumentation is not wanted.
func NewFSStore(root string, cacheSize int, m *metrics.Metrics) (*FSStore, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	decoded, err := cache.New[Key, []shingle.Fingerprint](cacheSize, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("create set cache: %w", err)
	}
	return &FSStore{root: root, decoded: decoded, metrics: m}, nil
}

func (s *FSStore) path(key Key) string {
	return corpus.ShinglePath(s.root, key.Doc, key.W, key.Budget, key.Version)
}

func (s *FSStore) Get(ctx context.Context, key Key) ([]shingle.Fingerprint, error) {
	if set, ok := s.decoded.Get(key); ok {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return set, nil
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingError{Key: key}
		}
		return nil, fmt.Errorf("open shingles %s: %w", key, err)
	}
	defer f.Close()

	set, err := shingle.ReadSet(f)
	if err != nil {
		return nil, fmt.Errorf("decode shingles %s: %w", key, err)
	}
	s.decoded.Set(key, set)
	return set, nil
}

func (s *FSStore) Has(ctx context.Context, key Key) (bool, error) {
	if _, ok := s.decoded.Get(key); ok {
		return true, nil
	}
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat shingles %s: %w", key, err)
}

func (s *FSStore) Put(ctx context.Context, key Key, set []shingle.Fingerprint) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create shingle dir: %w", err)
	}

	// Write-then-rename so readers never observe a half-written artifact.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-shingles-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	if err := shingle.WriteSet(tmp, set); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write shingles %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename shingles %s: %w", key, err)
	}

	s.decoded.Set(key, set)
	return nil
}

func (s *FSStore) Close() error {
	return nil
}
