package domain

import (
	"regexp"
	"strings"
)

// conditionalTag matches a leading factor condition on a raw entry: one
// or more factors joined by the factor separator, a colon, then the
// entry body. "py27: requests" gates the dependency on factor py27;
// "py38-coverage: coverage run ..." requires both factors.
var conditionalTag = regexp.MustCompile(`^([A-Za-z0-9_.]+(?:-[A-Za-z0-9_.]+)*):\s+(\S.*)$`)

// splitConditional splits the factor condition off a raw entry. ok is
// false when the entry carries no condition.
func splitConditional(entry string) (factors []Factor, rest string, ok bool) {
	m := conditionalTag.FindStringSubmatch(entry)
	if m == nil {
		return nil, "", false
	}
	for _, p := range strings.Split(m[1], FactorSeparator) {
		factors = append(factors, Factor(p))
	}
	return factors, m[2], true
}

func hasAllFactors(name EnvName, factors []Factor) bool {
	for _, f := range factors {
		if !name.HasFactor(f) {
			return false
		}
	}
	return true
}

// filterConditionalValues keeps unconditional entries, strips the tag
// from conditional entries the name satisfies, and drops the rest.
func filterConditionalValues(name EnvName, values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		factors, rest, ok := splitConditional(v)
		if !ok {
			out = append(out, v)
			continue
		}
		if hasAllFactors(name, factors) {
			out = append(out, rest)
		}
	}
	return out
}

// filterConditionalCommands is filterConditionalValues for command
// entries. Argv-form entries carry no condition.
func filterConditionalCommands(name EnvName, entries []CommandEntry) []CommandEntry {
	out := make([]CommandEntry, 0, len(entries))
	for _, e := range entries {
		if e.Argv != nil || e.Line == "" {
			out = append(out, e)
			continue
		}
		factors, rest, ok := splitConditional(e.Line)
		if !ok {
			out = append(out, e)
			continue
		}
		if hasAllFactors(name, factors) {
			out = append(out, CommandEntry{Line: rest})
		}
	}
	return out
}
