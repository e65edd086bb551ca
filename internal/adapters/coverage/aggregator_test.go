package coverage_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/mox/internal/adapters/coverage"
	"go.trai.ch/mox/internal/core/domain"
	"go.trai.ch/mox/internal/core/ports"
)

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Info(string)     {}
func (l *recordingLogger) Warn(msg string) { l.warnings = append(l.warnings, msg) }
func (l *recordingLogger) Error(error)     {}

func writeDataset(t *testing.T, path string, dataset *domain.CoverageData) {
	t.Helper()
	data, err := json.Marshal(dataset)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func dataset(files map[string]domain.FileCoverage) *domain.CoverageData {
	d := domain.NewCoverageData()
	d.Files = files
	return d
}

func TestAggregate_EmptyInputYieldsEmptyReport(t *testing.T) {
	dir := t.TempDir()
	agg := coverage.NewAggregator(filepath.Join(dir, "coverage"), nil)

	report, err := agg.Aggregate(context.Background(), ports.AggregateRequest{RootDir: dir})
	require.NoError(t, err)
	require.Empty(t, report.Files)
	require.Zero(t, report.Total.Statements)
}

func TestAggregate_SingleDatasetReportsItsOwnContent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "py27.json")
	writeDataset(t, path, dataset(map[string]domain.FileCoverage{
		"pex/pex.py": {Statements: []int{1, 2, 3}, Covered: []int{1, 2}},
	}))

	agg := coverage.NewAggregator(filepath.Join(root, "coverage"), nil)
	report, err := agg.Aggregate(context.Background(), ports.AggregateRequest{
		Paths:   []string{path},
		Erase:   true,
		RootDir: root,
	})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	require.Equal(t, "pex/pex.py", report.Files[0].Name)
	require.Equal(t, 3, report.Files[0].Statements)
	require.Equal(t, 1, report.Files[0].Missed)
}

func TestAggregate_CombineIsOrderInsensitive(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.json")
	b := filepath.Join(root, "b.json")
	c := filepath.Join(root, "c.json")
	writeDataset(t, a, dataset(map[string]domain.FileCoverage{
		"pex/pex.py": {Statements: []int{1, 2, 3, 4}, Covered: []int{1}},
	}))
	writeDataset(t, b, dataset(map[string]domain.FileCoverage{
		"pex/pex.py": {Statements: []int{1, 2, 3, 4}, Covered: []int{2, 3}},
	}))
	writeDataset(t, c, dataset(map[string]domain.FileCoverage{
		"pex/pex.py": {Statements: []int{1, 2, 3, 4}, Covered: []int{4}},
		"pex/bin.py": {Statements: []int{1}, Covered: []int{1}},
	}))

	run := func(order []string) domain.CoverageReport {
		agg := coverage.NewAggregator(filepath.Join(t.TempDir(), "coverage"), nil)
		report, err := agg.Aggregate(context.Background(), ports.AggregateRequest{
			Paths:   order,
			Erase:   true,
			RootDir: root,
		})
		require.NoError(t, err)
		return report
	}

	first := run([]string{a, b, c})
	second := run([]string{c, a, b})
	third := run([]string{b, c, a})
	require.Equal(t, first, second)
	require.Equal(t, first, third)

	// Every line of pex/pex.py is covered by some run.
	require.Equal(t, 0, first.Total.Missed)
	require.Equal(t, 5, first.Total.Statements)
}

func TestAggregate_GroupedCombineEqualsFlatCombine(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.json")
	b := filepath.Join(root, "b.json")
	c := filepath.Join(root, "c.json")
	writeDataset(t, a, dataset(map[string]domain.FileCoverage{
		"m.py": {Statements: []int{1, 2}, Covered: []int{1}},
	}))
	writeDataset(t, b, dataset(map[string]domain.FileCoverage{
		"m.py": {Statements: []int{1, 2}, Covered: []int{2}},
	}))
	writeDataset(t, c, dataset(map[string]domain.FileCoverage{
		"n.py": {Statements: []int{1}, Covered: []int{}},
	}))

	// combine(combine(A,B),C): two invocations over the same accumulator.
	covDir := filepath.Join(t.TempDir(), "coverage")
	agg := coverage.NewAggregator(covDir, nil)
	_, err := agg.Aggregate(context.Background(), ports.AggregateRequest{
		Paths: []string{a, b}, Erase: true, RootDir: root,
	})
	require.NoError(t, err)
	grouped, err := agg.Aggregate(context.Background(), ports.AggregateRequest{
		Paths: []string{c}, RootDir: root,
	})
	require.NoError(t, err)

	flatAgg := coverage.NewAggregator(filepath.Join(t.TempDir(), "coverage"), nil)
	flat, err := flatAgg.Aggregate(context.Background(), ports.AggregateRequest{
		Paths: []string{a, b, c}, Erase: true, RootDir: root,
	})
	require.NoError(t, err)

	require.Equal(t, flat, grouped)
}

func TestAggregate_NormalizesPathsAcrossWorkingDirectories(t *testing.T) {
	root := t.TempDir()

	// Two isolated runs measured the same source file, one through an
	// absolute path under the project root and one relative to its own
	// working directory.
	abs := dataset(map[string]domain.FileCoverage{
		filepath.Join(root, "pex", "pex.py"): {Statements: []int{1, 2}, Covered: []int{1}},
	})
	rel := domain.NewCoverageData()
	rel.Base = root
	rel.Files = map[string]domain.FileCoverage{
		filepath.Join("pex", "pex.py"): {Statements: []int{1, 2}, Covered: []int{2}},
	}

	a := filepath.Join(root, "a.json")
	b := filepath.Join(root, "b.json")
	writeDataset(t, a, abs)
	writeDataset(t, b, rel)

	agg := coverage.NewAggregator(filepath.Join(root, "coverage"), nil)
	report, err := agg.Aggregate(context.Background(), ports.AggregateRequest{
		Paths: []string{a, b}, Erase: true, RootDir: root,
	})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	require.Equal(t, filepath.Join("pex", "pex.py"), report.Files[0].Name)
	require.Equal(t, 0, report.Files[0].Missed)
}

func TestAggregate_CorruptDatasetIsWarnedAndExcluded(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "good.json")
	bad := filepath.Join(root, "bad.json")
	writeDataset(t, good, dataset(map[string]domain.FileCoverage{
		"m.py": {Statements: []int{1}, Covered: []int{1}},
	}))
	require.NoError(t, os.WriteFile(bad, []byte("not json at all"), 0o644))

	log := &recordingLogger{}
	agg := coverage.NewAggregator(filepath.Join(root, "coverage"), log)
	report, err := agg.Aggregate(context.Background(), ports.AggregateRequest{
		Paths: []string{good, bad, filepath.Join(root, "missing.json")},
		Erase: true, RootDir: root,
	})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	require.Len(t, log.warnings, 2)
}

func TestAggregate_EraseClearsAccumulatedState(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.json")
	writeDataset(t, a, dataset(map[string]domain.FileCoverage{
		"old.py": {Statements: []int{1}, Covered: []int{1}},
	}))

	covDir := filepath.Join(root, "coverage")
	agg := coverage.NewAggregator(covDir, nil)
	_, err := agg.Aggregate(context.Background(), ports.AggregateRequest{
		Paths: []string{a}, RootDir: root,
	})
	require.NoError(t, err)

	// Erase before the next combine: nothing from the first pass may
	// leak into the new accumulator.
	b := filepath.Join(root, "b.json")
	writeDataset(t, b, dataset(map[string]domain.FileCoverage{
		"new.py": {Statements: []int{1}, Covered: []int{}},
	}))
	report, err := agg.Aggregate(context.Background(), ports.AggregateRequest{
		Paths: []string{b}, Erase: true, RootDir: root,
	})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	require.Equal(t, "new.py", report.Files[0].Name)
}

func TestAggregate_PersistsCombinedAccumulator(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.json")
	writeDataset(t, a, dataset(map[string]domain.FileCoverage{
		"m.py": {Statements: []int{1, 2}, Covered: []int{1}},
	}))

	covDir := filepath.Join(root, "coverage")
	agg := coverage.NewAggregator(covDir, nil)
	_, err := agg.Aggregate(context.Background(), ports.AggregateRequest{
		Paths: []string{a}, Erase: true, RootDir: root,
	})
	require.NoError(t, err)

	datasetPath, reportPath := agg.ReportPaths()
	require.FileExists(t, datasetPath)
	require.FileExists(t, reportPath)

	// A later invocation picks the accumulator back up.
	b := filepath.Join(root, "b.json")
	writeDataset(t, b, dataset(map[string]domain.FileCoverage{
		"m.py": {Statements: []int{1, 2}, Covered: []int{2}},
	}))
	fresh := coverage.NewAggregator(covDir, nil)
	report, err := fresh.Aggregate(context.Background(), ports.AggregateRequest{
		Paths: []string{b}, RootDir: root,
	})
	require.NoError(t, err)
	require.Equal(t, 0, report.Total.Missed)
}
