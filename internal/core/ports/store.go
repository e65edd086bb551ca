package ports

import "go.trai.ch/mox/internal/core/domain"

// ResultStore defines the interface for persisting run results across
// invocations, keyed by environment name.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ResultStore interface {
	// Get retrieves the last result for a given environment name.
	// Returns nil, nil if not found.
	Get(env string) (*domain.RunResult, error)

	// Put stores the result.
	Put(result domain.RunResult) error

	// All returns every stored result, sorted by environment name.
	All() ([]domain.RunResult, error)
}
