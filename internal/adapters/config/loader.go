// Package config provides the YAML configuration loader for mox.
package config

import (
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/mox/internal/build"
	"go.trai.ch/mox/internal/core/domain"
	"go.trai.ch/mox/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// DefaultFilename is the configuration file mox looks for.
const DefaultFilename = "mox.yaml"

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Filename string

	logger ports.Logger
}

// NewLoader creates a Loader for the default filename.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Filename: DefaultFilename, logger: logger}
}

// Load reads and validates the configuration document from cwd.
func (l *Loader) Load(cwd string) (*domain.Document, error) {
	filename := l.Filename
	if filename == "" {
		filename = DefaultFilename
	}
	return LoadFile(filepath.Join(cwd, filename))
}

// LoadFile reads and validates the configuration document at path.
// Validation covers everything that must hold before any environment
// starts: environment names parse, section references resolve without
// cycles, depends targets are declared and the engine satisfies the
// document's minimum version.
func LoadFile(path string) (*domain.Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.Wrap(err, "reading config file")
	}

	var file Moxfile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.Wrap(err, "parsing config file")
	}

	doc, err := convert(&file)
	if err != nil {
		return nil, zerr.With(err, "config", path)
	}
	return doc, nil
}

func convert(file *Moxfile) (*domain.Document, error) {
	if err := checkEngineVersion(file.MinVersion); err != nil {
		return nil, err
	}

	envList, err := domain.ExpandEnvList(file.EnvList)
	if err != nil {
		return nil, zerr.Wrap(err, "expanding envlist")
	}

	commandTimeout, err := parseDuration(file.CommandTimeout, 0)
	if err != nil {
		return nil, zerr.With(err, "option", "commandTimeout")
	}
	terminationGrace, err := parseDuration(file.TerminationGrace, 10*time.Second)
	if err != nil {
		return nil, zerr.With(err, "option", "terminationGrace")
	}

	workDir := file.WorkDir
	if workDir == "" {
		workDir = domain.DefaultWorkDir
	}

	doc := &domain.Document{
		MinVersion:          file.MinVersion,
		EnvList:             envList,
		SkipMissingRuntimes: file.SkipMissingRuntimes,
		WorkDir:             workDir,
		Allowlist:           file.Allowlist,
		CommandTimeout:      commandTimeout,
		TerminationGrace:    terminationGrace,
		Base:                convertSection(file.Env),
		Envs:                make(map[string]domain.EnvOverride, len(file.Envs)),
	}

	for _, rule := range file.When {
		if rule.Factor == "" {
			return nil, zerr.New("conditional rule without a factor")
		}
		doc.Rules = append(doc.Rules, domain.ConditionalRule{
			Factor:      domain.Factor(rule.Factor),
			Deps:        rule.Deps,
			Commands:    convertCommands(rule.Commands),
			SetCommands: rule.SetCommands,
			Setenv:      rule.Setenv,
			Artifacts:   rule.Artifacts,
			Skip:        rule.Skip,
		})
	}

	for name, dto := range file.Envs {
		override, err := convertEnv(name, dto)
		if err != nil {
			return nil, err
		}
		doc.Envs[name] = override
	}

	// Every section reference must resolve acyclically before anything
	// executes; a bad config never starts a partial matrix.
	if err := doc.ValidateReferences(); err != nil {
		return nil, err
	}
	if err := validateDepends(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func convertEnv(name string, dto EnvDTO) (domain.EnvOverride, error) {
	if _, err := domain.ParseEnvName(name); err != nil {
		return domain.EnvOverride{}, zerr.With(err, "section", name)
	}

	override := domain.EnvOverride{
		Section:             convertSection(dto.SectionDTO),
		EnvDir:              dto.EnvDir,
		Combine:             dto.Combine,
		AllowMissingRuntime: dto.AllowMissingRuntime,
	}

	// Erase defaults to true for combining environments: a fresh
	// invocation starts its accumulator clean unless told otherwise.
	override.Erase = dto.Combine
	if dto.Erase != nil {
		override.Erase = *dto.Erase
	}

	for _, dep := range dto.Depends {
		depName, err := domain.ParseEnvName(dep)
		if err != nil {
			err = zerr.With(err, "section", name)
			return domain.EnvOverride{}, zerr.With(err, "depends", dep)
		}
		override.Depends = append(override.Depends, depName)
	}
	return override, nil
}

func convertSection(dto SectionDTO) domain.Section {
	return domain.Section{
		Runtime:   dto.Runtime,
		Deps:      dto.Deps,
		Commands:  convertCommands(dto.Commands),
		Setenv:    dto.Setenv,
		Passenv:   dto.Passenv,
		ChangeDir: dto.ChangeDir,
		Artifacts: dto.Artifacts,
	}
}

func convertCommands(dtos []CommandDTO) []domain.CommandEntry {
	if dtos == nil {
		return nil
	}
	entries := make([]domain.CommandEntry, len(dtos))
	for i, dto := range dtos {
		entries[i] = domain.CommandEntry{Line: dto.Line, Argv: dto.Argv}
	}
	return entries
}

// validateDepends checks that every depends target is declared by the
// document. Cycle detection over the full matrix happens at resolution;
// here a dangling name is already a configuration error.
func validateDepends(doc *domain.Document) error {
	for name, override := range doc.Envs {
		for _, dep := range override.Depends {
			if !doc.Declares(dep.String()) {
				err := zerr.With(domain.ErrUnknownEnvironment, "section", name)
				return zerr.With(err, "depends", dep.String())
			}
		}
	}
	return nil
}

func checkEngineVersion(minVersion string) error {
	if minVersion == "" || build.Version == "dev" {
		return nil
	}
	want := canonicalSemver(minVersion)
	have := canonicalSemver(build.Version)
	if !semver.IsValid(want) {
		return zerr.With(domain.ErrEngineVersion, "minVersion", minVersion)
	}
	if !semver.IsValid(have) || semver.Compare(have, want) < 0 {
		err := zerr.With(domain.ErrEngineVersion, "minVersion", minVersion)
		return zerr.With(err, "engine", build.Version)
	}
	return nil
}

func canonicalSemver(v string) string {
	if v == "" {
		return v
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	return v
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, zerr.Wrap(err, "parsing duration")
	}
	if d < 0 {
		return 0, zerr.With(zerr.New("negative duration"), "duration", raw)
	}
	return d, nil
}

var _ ports.ConfigLoader = (*Loader)(nil)
