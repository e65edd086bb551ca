// Package domain contains the core domain model for the environment
// matrix: factor parsing, configuration documents, resolution into
// executable specifications, run results and coverage data.
package domain

import (
	"regexp"
	"slices"
	"time"

	"go.trai.ch/zerr"
)

// BaseSectionName is the name under which the base profile can be
// referenced from command lists.
const BaseSectionName = "env"

// DefaultWorkDir is the state directory used when the document does not
// declare one, relative to the project root.
const DefaultWorkDir = ".mox"

// CommandEntry is a single unresolved command: either a raw line to be
// word-split after substitution, or an explicit argv vector taken
// verbatim. Exactly one of the two forms is set.
type CommandEntry struct {
	Line string
	Argv []string
}

// Section is an execution profile before resolution. The base profile and
// the per-environment overrides share this shape; for overrides, nil
// slices mean "not declared" as opposed to "declared empty".
type Section struct {
	Runtime   string
	Deps      []string
	Commands  []CommandEntry
	Setenv    map[string]string
	Passenv   []string
	ChangeDir string
	Artifacts []string
}

// EnvOverride is an explicit per-environment section. Declared fields take
// precedence over everything factor rules derive.
type EnvOverride struct {
	Section

	// EnvDir overrides the default isolated state directory.
	EnvDir string

	// Depends lists environments that must reach a terminal state before
	// this one starts. Ordering only; failures do not gate.
	Depends []EnvName

	// Combine aggregates the coverage artifacts recorded by Depends
	// before this environment's own commands run.
	Combine bool

	// Erase clears previously combined coverage state first. Defaults to
	// true when Combine is set; the loader resolves the default.
	Erase bool

	// AllowMissingRuntime marks the environment skippable when its
	// runtime cannot be located, independent of the document policy.
	AllowMissingRuntime bool
}

// ConditionalRule is a factor-gated configuration effect. Rules apply in
// declaration order to every environment whose factor set contains Factor.
type ConditionalRule struct {
	Factor Factor

	// Deps are appended to the dependency set when absent.
	Deps []string

	// Commands extend the command list, or replace it when SetCommands.
	Commands    []CommandEntry
	SetCommands bool

	// Setenv entries merge over earlier ones.
	Setenv map[string]string

	// Artifacts globs are appended.
	Artifacts []string

	// Skip marks matching environments inert: no provisioning, zero
	// commands, trivially successful.
	Skip bool
}

// Document is a loaded configuration: document options, the base profile,
// the ordered conditional rules and the explicit environment sections.
// Documents are immutable after loading.
type Document struct {
	MinVersion          string
	EnvList             []EnvName
	SkipMissingRuntimes bool
	WorkDir             string
	Allowlist           []string
	CommandTimeout      time.Duration
	TerminationGrace    time.Duration

	Base  Section
	Rules []ConditionalRule
	Envs  map[string]EnvOverride
}

// sectionRefPattern matches a command entry that splices another section's
// command list, e.g. "{[py38]commands}".
var sectionRefPattern = regexp.MustCompile(`^\{\[([^\[\]{}]+)\]commands\}$`)

// Override returns the explicit section for name, if declared.
func (d *Document) Override(name string) (EnvOverride, bool) {
	o, ok := d.Envs[name]
	return o, ok
}

// Declares reports whether name is known to the document, either through
// the envlist or an explicit section.
func (d *Document) Declares(name string) bool {
	if _, ok := d.Envs[name]; ok {
		return true
	}
	for _, n := range d.EnvList {
		if n.String() == name {
			return true
		}
	}
	return false
}

// sectionCommands returns the raw command entries of a named section, the
// base profile included.
func (d *Document) sectionCommands(name string) ([]CommandEntry, bool) {
	if name == BaseSectionName {
		return d.Base.Commands, true
	}
	o, ok := d.Envs[name]
	if !ok {
		return nil, false
	}
	return o.Commands, true
}

// ValidateReferences checks that every section reference in a command list
// names an existing section and that references are acyclic. Rule command
// lists are checked against the base profile's reference graph entry.
func (d *Document) ValidateReferences() error {
	// 0: unvisited, 1: visiting, 2: visited
	visited := make(map[string]int, len(d.Envs)+1)
	var path []string

	var visit func(section string, cmds []CommandEntry) error
	visit = func(section string, cmds []CommandEntry) error {
		visited[section] = 1
		path = append(path, section)

		for _, entry := range cmds {
			ref, ok := commandSectionRef(entry)
			if !ok {
				continue
			}
			target, exists := d.sectionCommands(ref)
			if !exists {
				err := zerr.With(ErrUnresolvedSubstitution, "section", section)
				return zerr.With(err, "reference", ref)
			}
			switch visited[ref] {
			case 1:
				return buildReferenceCycleError(path, ref)
			case 0:
				if err := visit(ref, target); err != nil {
					return err
				}
			}
		}

		visited[section] = 2
		path = path[:len(path)-1]
		return nil
	}

	if err := visit(BaseSectionName, d.Base.Commands); err != nil {
		return err
	}
	for _, name := range sortedKeys(d.Envs) {
		if visited[name] == 0 {
			if err := visit(name, d.Envs[name].Commands); err != nil {
				return err
			}
		}
	}
	for i, rule := range d.Rules {
		for _, entry := range rule.Commands {
			ref, ok := commandSectionRef(entry)
			if !ok {
				continue
			}
			if _, exists := d.sectionCommands(ref); !exists {
				err := zerr.With(ErrUnresolvedSubstitution, "rule_factor", string(rule.Factor))
				err = zerr.With(err, "rule_index", i)
				return zerr.With(err, "reference", ref)
			}
		}
	}
	return nil
}

// commandSectionRef extracts the section name when the entry is a
// whole-entry section reference.
func commandSectionRef(entry CommandEntry) (string, bool) {
	if entry.Line == "" {
		return "", false
	}
	m := sectionRefPattern.FindStringSubmatch(entry.Line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// sortedKeys keeps validation order deterministic across runs.
func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func buildReferenceCycleError(path []string, ref string) error {
	cycle := ""
	start := 0
	for i, node := range path {
		if node == ref {
			start = i
			break
		}
	}
	for i := start; i < len(path); i++ {
		cycle += path[i] + " -> "
	}
	cycle += ref
	err := zerr.With(ErrUnresolvedSubstitution, "cycle", cycle)
	return zerr.With(err, "reason", "section reference cycle")
}
