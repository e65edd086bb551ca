package config

import (
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Moxfile is the YAML shape of a mox.yaml configuration document.
type Moxfile struct {
	MinVersion          string            `yaml:"minVersion"`
	EnvList             []string          `yaml:"envlist"`
	SkipMissingRuntimes bool              `yaml:"skipMissingRuntimes"`
	WorkDir             string            `yaml:"workdir"`
	Allowlist           []string          `yaml:"allowlist"`
	CommandTimeout      string            `yaml:"commandTimeout"`
	TerminationGrace    string            `yaml:"terminationGrace"`
	Env                 SectionDTO        `yaml:"env"`
	When                []RuleDTO         `yaml:"when"`
	Envs                map[string]EnvDTO `yaml:"envs"`
}

// SectionDTO is the YAML shape of an execution profile.
type SectionDTO struct {
	Runtime   string            `yaml:"runtime"`
	Deps      []string          `yaml:"deps"`
	Commands  []CommandDTO      `yaml:"commands"`
	Setenv    map[string]string `yaml:"setenv"`
	Passenv   []string          `yaml:"passenv"`
	ChangeDir string            `yaml:"changedir"`
	Artifacts []string          `yaml:"artifacts"`
}

// RuleDTO is the YAML shape of a factor-conditional rule.
type RuleDTO struct {
	Factor      string            `yaml:"factor"`
	Deps        []string          `yaml:"deps"`
	Commands    []CommandDTO      `yaml:"commands"`
	SetCommands bool              `yaml:"setCommands"`
	Setenv      map[string]string `yaml:"setenv"`
	Artifacts   []string          `yaml:"artifacts"`
	Skip        bool              `yaml:"skip"`
}

// EnvDTO is the YAML shape of an explicit per-environment section.
type EnvDTO struct {
	SectionDTO `yaml:",inline"`

	EnvDir              string   `yaml:"envdir"`
	Depends             []string `yaml:"depends"`
	Combine             bool     `yaml:"combine"`
	Erase               *bool    `yaml:"erase"`
	AllowMissingRuntime bool     `yaml:"allowMissingRuntime"`
}

// CommandDTO is one command entry: either a scalar line that is
// word-split after substitution, or an explicit argv sequence taken
// verbatim.
type CommandDTO struct {
	Line string
	Argv []string
}

// UnmarshalYAML accepts both the scalar and the sequence form.
func (c *CommandDTO) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&c.Line)
	case yaml.SequenceNode:
		return node.Decode(&c.Argv)
	default:
		return zerr.With(zerr.New("command must be a string or a list of arguments"), "line", node.Line)
	}
}
