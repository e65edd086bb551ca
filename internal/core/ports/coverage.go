package ports

import (
	"context"

	"go.trai.ch/mox/internal/core/domain"
)

// AggregateRequest describes one coverage aggregation.
type AggregateRequest struct {
	// Paths are dataset files or globs to fold into the accumulator.
	Paths []string

	// Erase clears the persisted accumulator first. Erasing is never
	// interleaved with a combine.
	Erase bool

	// RootDir anchors dataset file paths so the same source file merges
	// across datasets produced in different directories.
	RootDir string
}

// CoverageAggregator combines coverage datasets and renders reports.
//
//go:generate go run go.uber.org/mock/mockgen -source=coverage.go -destination=mocks/mock_coverage.go -package=mocks
type CoverageAggregator interface {
	// Aggregate folds the requested datasets into the persisted
	// accumulator and returns the report over the combined data.
	// Unreadable datasets are logged and excluded; they never abort the
	// aggregation. Aggregating zero datasets yields an empty report.
	Aggregate(ctx context.Context, req AggregateRequest) (domain.CoverageReport, error)

	// Erase clears the persisted accumulator.
	Erase() error

	// ReportPaths returns where the combined dataset and the rendered
	// report were last written.
	ReportPaths() (dataset string, report string)
}
