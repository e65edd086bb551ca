// Package coverage implements the coverage dataset store, combine step and
// report rendering.
package coverage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/mox/internal/core/domain"
	"go.trai.ch/mox/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	// CombinedFilename is the persisted accumulator inside the coverage
	// directory.
	CombinedFilename = "combined.json"

	// ReportFilename is the rendered text report.
	ReportFilename = "report.txt"

	// ReportJSONFilename is the structured report breakdown.
	ReportJSONFilename = "report.json"
)

// Aggregator implements ports.CoverageAggregator over JSON dataset files
// in a coverage directory. The combine step is serialized: datasets are
// produced concurrently by isolated runs, but only one writer folds them.
type Aggregator struct {
	dir    string
	logger ports.Logger

	mu sync.Mutex
}

// NewAggregator creates an Aggregator persisting its state under dir.
func NewAggregator(dir string, logger ports.Logger) *Aggregator {
	return &Aggregator{dir: dir, logger: logger}
}

// Aggregate folds the requested datasets into the persisted accumulator
// and returns the report over the combined data.
//
// When the request asks for an erase it happens strictly before the first
// dataset is read; the shared mutex keeps it from interleaving with any
// other combine. Unreadable datasets are logged and excluded. Zero
// datasets yield an empty (or previously accumulated) report.
func (a *Aggregator) Aggregate(ctx context.Context, req ports.AggregateRequest) (domain.CoverageReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if req.Erase {
		if err := a.erase(); err != nil {
			return domain.CoverageReport{}, err
		}
	}

	combined, err := a.loadCombined()
	if err != nil {
		return domain.CoverageReport{}, err
	}

	for _, path := range expandPaths(req.Paths) {
		if err := ctx.Err(); err != nil {
			return domain.CoverageReport{}, err
		}
		dataset, err := ReadDataset(path)
		if err != nil {
			a.warn(err)
			continue
		}
		dataset.Rebase(req.RootDir)
		combined.Merge(dataset)
	}

	if err := a.saveCombined(combined); err != nil {
		return domain.CoverageReport{}, err
	}

	report := domain.BuildReport(combined)
	if err := a.writeReports(report); err != nil {
		return domain.CoverageReport{}, err
	}
	return report, nil
}

// Erase clears the persisted accumulator and any rendered reports.
func (a *Aggregator) Erase() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.erase()
}

// ReportPaths returns where the combined dataset and the rendered report
// are written.
func (a *Aggregator) ReportPaths() (dataset string, report string) {
	return filepath.Join(a.dir, CombinedFilename), filepath.Join(a.dir, ReportFilename)
}

func (a *Aggregator) erase() error {
	for _, name := range []string{CombinedFilename, ReportFilename, ReportJSONFilename} {
		if err := os.Remove(filepath.Join(a.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return zerr.Wrap(err, "erasing coverage state")
		}
	}
	return nil
}

func (a *Aggregator) loadCombined() (*domain.CoverageData, error) {
	path := filepath.Join(a.dir, CombinedFilename)
	dataset, err := ReadDataset(path)
	if err != nil {
		if errors.Is(err, domain.ErrArtifactUnreadable) && errors.Is(err, fs.ErrNotExist) {
			return domain.NewCoverageData(), nil
		}
		// A corrupt accumulator is different from a corrupt input
		// dataset: warn, then start clean rather than abort.
		if errors.Is(err, domain.ErrArtifactUnreadable) {
			a.warn(err)
			return domain.NewCoverageData(), nil
		}
		return nil, err
	}
	return dataset, nil
}

func (a *Aggregator) saveCombined(dataset *domain.CoverageData) error {
	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "marshaling combined dataset")
	}
	if err := os.MkdirAll(a.dir, 0o750); err != nil {
		return zerr.Wrap(err, "creating coverage directory")
	}
	path := filepath.Join(a.dir, CombinedFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // coverage data is not secret
		return zerr.Wrap(err, "writing combined dataset")
	}
	return nil
}

func (a *Aggregator) writeReports(report domain.CoverageReport) error {
	text := RenderText(report)
	if err := os.WriteFile(filepath.Join(a.dir, ReportFilename), []byte(text), 0o644); err != nil { //nolint:gosec
		return zerr.Wrap(err, "writing coverage report")
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "marshaling coverage report")
	}
	if err := os.WriteFile(filepath.Join(a.dir, ReportJSONFilename), data, 0o644); err != nil { //nolint:gosec
		return zerr.Wrap(err, "writing coverage report breakdown")
	}
	return nil
}

func (a *Aggregator) warn(err error) {
	if a.logger != nil {
		a.logger.Warn(err.Error())
	}
}

// ReadDataset reads and decodes one dataset file. Decode failures and
// read failures are ErrArtifactUnreadable so callers can treat them as
// non-fatal.
func ReadDataset(path string) (*domain.CoverageData, error) {
	data, err := os.ReadFile(path) //nolint:gosec // artifact paths come from run results
	if err != nil {
		unreadable := zerr.With(domain.ErrArtifactUnreadable, "artifact", path)
		return nil, fmt.Errorf("%w: %w", unreadable, err)
	}

	var dataset domain.CoverageData
	if err := json.Unmarshal(data, &dataset); err != nil {
		unreadable := zerr.With(domain.ErrArtifactUnreadable, "artifact", path)
		return nil, fmt.Errorf("%w: %w", unreadable, err)
	}
	if dataset.Files == nil {
		dataset.Files = make(map[string]domain.FileCoverage)
	}
	if dataset.Base == "" {
		dataset.Base = filepath.Dir(path)
	}
	return &dataset, nil
}

// expandPaths resolves globs, keeping literal paths as-is so a missing
// explicit file still surfaces as an unreadable-artifact warning.
func expandPaths(paths []string) []string {
	var out []string
	for _, path := range paths {
		matches, err := filepath.Glob(path)
		if err != nil || len(matches) == 0 {
			out = append(out, path)
			continue
		}
		out = append(out, matches...)
	}
	return out
}

var _ ports.CoverageAggregator = (*Aggregator)(nil)
