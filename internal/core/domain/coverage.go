package domain

import (
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// CoverageDataVersion is the dataset format version this engine writes.
const CoverageDataVersion = 1

// FileCoverage is the line coverage of a single source file. Both slices
// are sorted and duplicate-free.
type FileCoverage struct {
	Statements []int `json:"statements"`
	Covered    []int `json:"covered"`
}

// CoverageData is a coverage dataset: per-file line coverage keyed by
// source path. Paths are relative to Base, or to the directory the
// dataset was read from when Base is empty.
type CoverageData struct {
	Version int                     `json:"version"`
	Base    string                  `json:"base,omitzero"`
	Files   map[string]FileCoverage `json:"files"`
}

// NewCoverageData returns an empty dataset of the current version.
func NewCoverageData() *CoverageData {
	return &CoverageData{Version: CoverageDataVersion, Files: make(map[string]FileCoverage)}
}

// Merge folds other into d by per-file set union of statements and covered
// lines. Union is associative and commutative, so fold order never changes
// the combined result.
func (d *CoverageData) Merge(other *CoverageData) {
	for path, fc := range other.Files {
		existing, ok := d.Files[path]
		if !ok {
			d.Files[path] = FileCoverage{
				Statements: slices.Clone(fc.Statements),
				Covered:    slices.Clone(fc.Covered),
			}
			continue
		}
		d.Files[path] = FileCoverage{
			Statements: unionSorted(existing.Statements, fc.Statements),
			Covered:    unionSorted(existing.Covered, fc.Covered),
		}
	}
}

// Rebase rewrites file keys relative to root. Relative keys are first
// anchored at the dataset's Base. Paths outside root stay absolute. The
// Base field is cleared.
func (d *CoverageData) Rebase(root string) {
	rebased := make(map[string]FileCoverage, len(d.Files))
	for path, fc := range d.Files {
		rebased[NormalizeCoveragePath(root, d.Base, path)] = fc
	}
	d.Files = rebased
	d.Base = ""
}

// NormalizeCoveragePath maps a dataset file path into root-relative form
// so the same source file merges across datasets produced in different
// directories.
func NormalizeCoveragePath(root, base, path string) string {
	if !filepath.IsAbs(path) && base != "" {
		path = filepath.Join(base, path)
	}
	if !filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Clean(path)
	}
	return rel
}

// unionSorted merges two sorted unique int slices into a new sorted unique
// slice.
func unionSorted(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// FileReport is one row of a coverage report.
type FileReport struct {
	Name       string `json:"name"`
	Statements int    `json:"statements"`
	Missed     int    `json:"missed"`
}

// Percent returns the covered percentage. Files without statements count
// as fully covered.
func (f FileReport) Percent() float64 {
	if f.Statements == 0 {
		return 100
	}
	return float64(f.Statements-f.Missed) / float64(f.Statements) * 100
}

// CoverageReport is the aggregated view of a dataset: per-file rows sorted
// by name plus a total row.
type CoverageReport struct {
	Files []FileReport `json:"files"`
	Total FileReport   `json:"total"`
}

// BuildReport computes the report for a dataset. An empty dataset yields
// an empty report with a zero total.
func BuildReport(d *CoverageData) CoverageReport {
	report := CoverageReport{
		Files: make([]FileReport, 0, len(d.Files)),
		Total: FileReport{Name: "TOTAL"},
	}
	for path, fc := range d.Files {
		covered := make(map[int]struct{}, len(fc.Covered))
		for _, line := range fc.Covered {
			covered[line] = struct{}{}
		}
		missed := 0
		for _, line := range fc.Statements {
			if _, ok := covered[line]; !ok {
				missed++
			}
		}
		row := FileReport{Name: path, Statements: len(fc.Statements), Missed: missed}
		report.Files = append(report.Files, row)
		report.Total.Statements += row.Statements
		report.Total.Missed += row.Missed
	}
	sort.Slice(report.Files, func(i, j int) bool {
		return report.Files[i].Name < report.Files[j].Name
	})
	return report
}
