package domain

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// FactorSeparator is the canonical delimiter between factors in an environment name.
const FactorSeparator = "-"

// Factor is a single combinable trait of an environment, such as an
// interpreter version ("py27") or an optional dependency profile ("requests").
type Factor string

// EnvName is a parsed environment name: an ordered sequence of factors
// together with the original spelling, so String always reproduces the
// exact input.
type EnvName struct {
	raw     string
	factors []Factor
}

// ParseEnvName splits a raw environment name into factors using the
// canonical separator. It returns ErrMalformedName for empty names and for
// names with empty factor tokens (leading, trailing or doubled separators).
func ParseEnvName(raw string) (EnvName, error) {
	return ParseEnvNameSep(raw, FactorSeparator)
}

// ParseEnvNameSep is ParseEnvName with an explicit separator.
func ParseEnvNameSep(raw, sep string) (EnvName, error) {
	if raw == "" {
		return EnvName{}, zerr.With(ErrMalformedName, "reason", "empty name")
	}
	parts := strings.Split(raw, sep)
	factors := make([]Factor, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			err := zerr.With(ErrMalformedName, "reason", "empty factor token")
			return EnvName{}, zerr.With(err, "name", raw)
		}
		factors = append(factors, Factor(p))
	}
	return EnvName{raw: raw, factors: factors}, nil
}

// String returns the original spelling of the name.
func (n EnvName) String() string { return n.raw }

// IsZero reports whether the name is the zero value.
func (n EnvName) IsZero() bool { return n.raw == "" }

// Factors returns the ordered factor sequence.
func (n EnvName) Factors() []Factor { return slices.Clone(n.factors) }

// HasFactor reports whether f is one of the name's factors.
func (n EnvName) HasFactor(f Factor) bool { return slices.Contains(n.factors, f) }

// FactorSet returns the factors as a set, discarding order.
func (n EnvName) FactorSet() map[Factor]struct{} {
	set := make(map[Factor]struct{}, len(n.factors))
	for _, f := range n.factors {
		set[f] = struct{}{}
	}
	return set
}

// SameShape reports whether two names carry the same factor set,
// irrespective of factor order.
func (n EnvName) SameShape(other EnvName) bool {
	if len(n.factors) != len(other.factors) {
		return false
	}
	set := n.FactorSet()
	for _, f := range other.factors {
		if _, ok := set[f]; !ok {
			return false
		}
	}
	return true
}

// interpreterRuntimes maps interpreter-shaped factor prefixes to runtime
// commands. Versioned CPython factors ("py27", "py312") are derived
// digit-wise; entries here cover the fixed spellings.
var interpreterRuntimes = map[Factor]string{
	"py":    "python",
	"py2":   "python2",
	"py3":   "python3",
	"pypy":  "pypy",
	"pypy3": "pypy3",
}

// RuntimeForFactor derives a runtime command from an interpreter-shaped
// factor: "py27" yields "python2.7", "py312" yields "python3.12", "pypy"
// and "pypy3" map to themselves. It returns "" when the factor does not
// look like an interpreter.
func RuntimeForFactor(f Factor) string {
	if rt, ok := interpreterRuntimes[f]; ok {
		return rt
	}
	s := string(f)
	if !strings.HasPrefix(s, "py") {
		return ""
	}
	digits := s[len("py"):]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return ""
		}
	}
	if len(digits) < 2 {
		return ""
	}
	return "python" + digits[:1] + "." + digits[1:]
}

// DeriveRuntime scans the name's factors in order and returns the runtime
// of the first interpreter-shaped factor, or "" when none matches.
func (n EnvName) DeriveRuntime() string {
	for _, f := range n.factors {
		if rt := RuntimeForFactor(f); rt != "" {
			return rt
		}
	}
	return ""
}
