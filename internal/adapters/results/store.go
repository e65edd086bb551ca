// Package results implements the run-result store backing cross-invocation
// aggregation.
package results

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.trai.ch/mox/internal/core/domain"
	"go.trai.ch/mox/internal/core/ports"
	"go.trai.ch/zerr"
)

// Filename is the results file inside the work directory.
const Filename = "results.json"

// Store implements ports.ResultStore using a flat JSON file keyed by
// environment name.
type Store struct {
	path  string
	mu    sync.RWMutex
	cache map[string]domain.RunResult
}

// NewStore creates a Store backed by the file at path, loading any
// previously persisted results.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:  filepath.Clean(path),
		cache: make(map[string]domain.RunResult),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path) //nolint:gosec // path is under the work directory
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.Wrap(err, "reading result store")
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &s.cache); err != nil {
		return zerr.Wrap(err, "unmarshaling result store")
	}
	return nil
}

func (s *Store) save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.cache, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return zerr.Wrap(err, "marshaling result store")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return zerr.Wrap(err, "creating result store directory")
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil { //nolint:gosec // results are not secret
		return zerr.Wrap(err, "writing result store")
	}
	return nil
}

// Get retrieves the last result for env, or nil when none is stored.
func (s *Store) Get(env string) (*domain.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.cache[env]
	if !ok {
		return nil, nil
	}
	return &result, nil
}

// Put stores the result and persists the store.
func (s *Store) Put(result domain.RunResult) error {
	s.mu.Lock()
	s.cache[result.Env] = result
	s.mu.Unlock()

	return s.save()
}

// All returns every stored result sorted by environment name.
func (s *Store) All() ([]domain.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.RunResult, 0, len(s.cache))
	for _, result := range s.cache {
		all = append(all, result)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Env < all[j].Env })
	return all, nil
}

var _ ports.ResultStore = (*Store)(nil)
