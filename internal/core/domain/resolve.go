package domain

import (
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// DefaultRuntime is used when neither the document nor the environment
// name determines a runtime.
const DefaultRuntime = "python3"

// ResolveContext carries the per-invocation inputs of resolution. RootDir
// and WorkDir are absolute. RunID distinguishes this invocation's
// temporary directories; equal contexts resolve to equal specs.
type ResolveContext struct {
	RootDir string
	WorkDir string
	RunID   string
	Posargs []string
}

// Resolve computes the executable specification of one environment. It is
// a pure function of its inputs: layering, factor rules, runtime
// defaulting and substitution happen here, with no IO.
func Resolve(doc *Document, name EnvName, rctx ResolveContext) (*EnvSpec, error) {
	fail := func(err error) (*EnvSpec, error) {
		return nil, zerr.With(err, "env", name.String())
	}

	override, hasOverride := doc.Envs[name.String()]

	runtime := doc.Base.Runtime
	deps := slices.Clone(doc.Base.Deps)
	commands := slices.Clone(doc.Base.Commands)
	setenv := maps.Clone(doc.Base.Setenv)
	if setenv == nil {
		setenv = make(map[string]string)
	}
	passenv := slices.Clone(doc.Base.Passenv)
	changeDir := doc.Base.ChangeDir
	artifacts := slices.Clone(doc.Base.Artifacts)
	skip := false

	if hasOverride && override.Deps != nil {
		deps = slices.Clone(override.Deps)
	}

	for _, rule := range doc.Rules {
		if !name.HasFactor(rule.Factor) {
			continue
		}
		for _, dep := range rule.Deps {
			if !slices.Contains(deps, dep) {
				deps = append(deps, dep)
			}
		}
		if rule.SetCommands {
			commands = slices.Clone(rule.Commands)
		} else {
			commands = append(commands, rule.Commands...)
		}
		maps.Copy(setenv, rule.Setenv)
		artifacts = append(artifacts, rule.Artifacts...)
		skip = skip || rule.Skip
	}

	if hasOverride {
		if override.Commands != nil {
			commands = slices.Clone(override.Commands)
		}
		if override.Runtime != "" {
			runtime = override.Runtime
		}
		if override.ChangeDir != "" {
			changeDir = override.ChangeDir
		}
		maps.Copy(setenv, override.Setenv)
		for _, pe := range override.Passenv {
			if !slices.Contains(passenv, pe) {
				passenv = append(passenv, pe)
			}
		}
		artifacts = append(artifacts, override.Artifacts...)
	}

	// Per-entry factor conditions ("py27: requests") gate individual
	// deps and command lines on the environment's factor set.
	deps = filterConditionalValues(name, deps)

	if runtime == "" {
		runtime = name.DeriveRuntime()
	}
	if runtime == "" {
		runtime = DefaultRuntime
	}

	envDir := filepath.Join(rctx.WorkDir, name.String())
	if hasOverride && override.EnvDir != "" {
		envDir = override.EnvDir
		if !filepath.IsAbs(envDir) {
			envDir = filepath.Join(rctx.WorkDir, envDir)
		}
	}
	tmpDir := filepath.Join(envDir, "tmp")
	if rctx.RunID != "" {
		tmpDir = filepath.Join(tmpDir, rctx.RunID)
	}

	sctx := SubstContext{
		EnvName:   name.String(),
		EnvDir:    envDir,
		EnvTmpDir: tmpDir,
		WorkDir:   rctx.WorkDir,
		RootDir:   rctx.RootDir,
		Runtime:   runtime,
		Posargs:   rctx.Posargs,
	}

	if skip {
		commands = nil
	}
	commands = filterConditionalCommands(name, commands)
	spliced, err := spliceSectionRefs(doc, commands)
	if err != nil {
		return fail(err)
	}
	// Spliced-in section entries may carry conditions of their own.
	spliced = filterConditionalCommands(name, spliced)
	resolved, err := resolveCommands(spliced, &sctx)
	if err != nil {
		return fail(err)
	}

	resolvedDeps, err := expandAll(deps, &sctx)
	if err != nil {
		return fail(err)
	}
	resolvedArtifacts, err := expandAll(artifacts, &sctx)
	if err != nil {
		return fail(err)
	}
	resolvedSetenv := make(map[string]string, len(setenv))
	for k, v := range setenv {
		ev, err := sctx.ExpandString(v)
		if err != nil {
			return fail(zerr.With(err, "setenv", k))
		}
		resolvedSetenv[k] = ev
	}
	changeDir, err = sctx.ExpandString(changeDir)
	if err != nil {
		return fail(err)
	}
	if changeDir != "" && !filepath.IsAbs(changeDir) {
		changeDir = filepath.Join(rctx.RootDir, changeDir)
	}

	spec := &EnvSpec{
		Name:                name,
		Runtime:             runtime,
		AllowMissingRuntime: doc.SkipMissingRuntimes || (hasOverride && override.AllowMissingRuntime),
		Deps:                dedupe(resolvedDeps),
		Commands:            resolved,
		Setenv:              resolvedSetenv,
		Passenv:             passenv,
		ChangeDir:           changeDir,
		EnvDir:              envDir,
		TmpDir:              tmpDir,
		Allowlist:           slices.Clone(doc.Allowlist),
		Artifacts:           resolvedArtifacts,
		Skip:                skip,
	}
	if hasOverride {
		spec.Depends = slices.Clone(override.Depends)
		spec.Combine = override.Combine
		spec.Erase = override.Erase
	}
	return spec, nil
}

// spliceSectionRefs replaces whole-entry section references with the
// referenced section's raw entries. Load-time validation guarantees
// acyclicity; the visited guard keeps hand-built documents safe too.
func spliceSectionRefs(doc *Document, entries []CommandEntry) ([]CommandEntry, error) {
	return splice(doc, entries, make(map[string]bool))
}

func splice(doc *Document, entries []CommandEntry, visiting map[string]bool) ([]CommandEntry, error) {
	out := make([]CommandEntry, 0, len(entries))
	for _, entry := range entries {
		ref, ok := commandSectionRef(entry)
		if !ok {
			out = append(out, entry)
			continue
		}
		if visiting[ref] {
			err := zerr.With(ErrUnresolvedSubstitution, "reference", ref)
			return nil, zerr.With(err, "reason", "section reference cycle")
		}
		target, exists := doc.sectionCommands(ref)
		if !exists {
			return nil, zerr.With(ErrUnresolvedSubstitution, "reference", ref)
		}
		visiting[ref] = true
		expanded, err := splice(doc, target, visiting)
		if err != nil {
			return nil, err
		}
		visiting[ref] = false
		out = append(out, expanded...)
	}
	return out, nil
}

// resolveCommands substitutes and splits every entry into a final argv
// vector. A leading "- " on a raw line marks the command's exit status as
// ignored.
func resolveCommands(entries []CommandEntry, sctx *SubstContext) ([]Command, error) {
	commands := make([]Command, 0, len(entries))
	for i, entry := range entries {
		var cmd Command
		switch {
		case entry.Argv != nil:
			args, err := sctx.ExpandArgv(entry.Argv)
			if err != nil {
				return nil, zerr.With(err, "command_index", i)
			}
			cmd.Args = args
		default:
			line := strings.TrimSpace(entry.Line)
			if rest, ok := strings.CutPrefix(line, "- "); ok {
				cmd.IgnoreExit = true
				line = rest
			}
			args, err := sctx.ExpandCommandLine(line)
			if err != nil {
				return nil, zerr.With(err, "command_index", i)
			}
			cmd.Args = args
		}
		if len(cmd.Args) == 0 {
			err := zerr.With(ErrUnresolvedSubstitution, "command_index", i)
			return nil, zerr.With(err, "reason", "command expands to no words")
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

func expandAll(values []string, sctx *SubstContext) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		ev, err := sctx.ExpandString(v)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
