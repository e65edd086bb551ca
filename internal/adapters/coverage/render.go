package coverage

import (
	"fmt"
	"strings"

	"go.trai.ch/mox/internal/core/domain"
)

// RenderText renders a report as a fixed-width table in the style of
// line-coverage tools:
//
//	Name           Stmts   Miss  Cover
//	----------------------------------
//	pkg/a.py          10      2    80%
//	----------------------------------
//	TOTAL             10      2    80%
func RenderText(report domain.CoverageReport) string {
	nameWidth := len(report.Total.Name)
	for _, row := range report.Files {
		if len(row.Name) > nameWidth {
			nameWidth = len(row.Name)
		}
	}

	var b strings.Builder
	writeRow := func(name string, stmts, miss int, percent float64) {
		fmt.Fprintf(&b, "%-*s %6d %6d %5.0f%%\n", nameWidth, name, stmts, miss, percent)
	}

	header := fmt.Sprintf("%-*s %6s %6s %6s", nameWidth, "Name", "Stmts", "Miss", "Cover")
	b.WriteString(header + "\n")
	rule := strings.Repeat("-", len(header))
	b.WriteString(rule + "\n")

	for _, row := range report.Files {
		writeRow(row.Name, row.Statements, row.Missed, row.Percent())
	}

	b.WriteString(rule + "\n")
	total := report.Total
	writeRow(total.Name, total.Statements, total.Missed, total.Percent())
	return b.String()
}
