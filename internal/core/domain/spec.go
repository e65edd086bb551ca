package domain

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Command is a fully resolved command: an argv vector with no remaining
// substitution tokens.
type Command struct {
	Args []string

	// IgnoreExit records a failure without terminating the environment.
	IgnoreExit bool
}

// EnvSpec is the complete, resolved execution profile of one environment.
// Resolution is a pure function of the document, the name and the resolve
// context, so equal inputs always produce equal specs.
type EnvSpec struct {
	Name                EnvName
	Runtime             string
	AllowMissingRuntime bool
	Deps                []string
	Commands            []Command
	Setenv              map[string]string
	Passenv             []string
	ChangeDir           string
	EnvDir              string
	TmpDir              string
	Allowlist           []string
	Artifacts           []string
	Depends             []EnvName
	Combine             bool
	Erase               bool
	Skip                bool
}

// Fingerprint returns a stable content hash of the spec. Two resolutions
// from identical inputs produce identical fingerprints. TmpDir is excluded
// because it is unique per run.
func (s *EnvSpec) Fingerprint() string {
	h := xxhash.New()
	sep := []byte{0}

	write := func(field string) {
		_, _ = h.WriteString(field)
		_, _ = h.Write(sep)
	}
	writeAll := func(fields []string) {
		write(strconv.Itoa(len(fields)))
		for _, f := range fields {
			write(f)
		}
	}

	write(s.Name.String())
	write(s.Runtime)
	write(strconv.FormatBool(s.AllowMissingRuntime))
	writeAll(s.Deps)
	write(strconv.Itoa(len(s.Commands)))
	for _, cmd := range s.Commands {
		writeAll(cmd.Args)
		write(strconv.FormatBool(cmd.IgnoreExit))
	}
	for _, k := range sortedKeys(s.Setenv) {
		write(k)
		write(s.Setenv[k])
	}
	writeAll(s.Passenv)
	write(s.ChangeDir)
	write(s.EnvDir)
	writeAll(s.Allowlist)
	writeAll(s.Artifacts)
	write(strconv.Itoa(len(s.Depends)))
	for _, d := range s.Depends {
		write(d.String())
	}
	write(strconv.FormatBool(s.Combine))
	write(strconv.FormatBool(s.Erase))
	write(strconv.FormatBool(s.Skip))

	return fmt.Sprintf("%016x", h.Sum64())
}

// DependsOn reports whether the spec declares a barrier on name.
func (s *EnvSpec) DependsOn(name string) bool {
	for _, d := range s.Depends {
		if d.String() == name {
			return true
		}
	}
	return false
}
