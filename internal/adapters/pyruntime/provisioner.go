package pyruntime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/mox/internal/core/domain"
	"go.trai.ch/mox/internal/core/ports"
	"go.trai.ch/zerr"
)

// fingerprintFile marks a provisioned environment directory with the spec
// fingerprint it was built from. A matching fingerprint skips the rebuild.
const fingerprintFile = ".mox-fingerprint"

// defaultPassenv is always passed through to isolated environments, on
// top of the spec's own passenv list.
var defaultPassenv = []string{"PATH", "HOME", "LANG", "LC_ALL", "TMPDIR", "TERM"}

// Provisioner implements ports.Provisioner with virtualenv-style isolated
// state. The interpreter's own venv and pip are invoked as opaque
// commands through the executor; only their exit status matters here.
type Provisioner struct {
	executor ports.Executor
	logger   ports.Logger
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(executor ports.Executor, logger ports.Logger) *Provisioner {
	return &Provisioner{executor: executor, logger: logger}
}

// Provision builds the isolated state for spec and returns the complete
// child environment for its commands. The temporary directory is created
// fresh every run; the virtualenv is reused when the spec fingerprint is
// unchanged.
func (p *Provisioner) Provision(ctx context.Context, spec *domain.EnvSpec, runtimePath string) ([]string, error) {
	if err := os.MkdirAll(spec.EnvDir, 0o750); err != nil {
		return nil, zerr.Wrap(err, "creating environment directory")
	}
	if err := os.RemoveAll(spec.TmpDir); err != nil {
		return nil, zerr.Wrap(err, "clearing temporary directory")
	}
	if err := os.MkdirAll(spec.TmpDir, 0o750); err != nil {
		return nil, zerr.Wrap(err, "creating temporary directory")
	}

	venvDir := filepath.Join(spec.EnvDir, "venv")
	env := p.childEnv(spec, venvDir)

	fingerprint := spec.Fingerprint()
	if p.upToDate(spec.EnvDir, venvDir, fingerprint) {
		return env, nil
	}

	if err := p.runStep(ctx, spec, env, runtimePath, "-m", "venv", "--clear", venvDir); err != nil {
		return nil, err
	}
	if len(spec.Deps) > 0 {
		python := filepath.Join(venvDir, "bin", "python")
		args := append([]string{python, "-m", "pip", "install"}, spec.Deps...)
		if err := p.runStep(ctx, spec, env, args...); err != nil {
			return nil, err
		}
	}

	path := filepath.Join(spec.EnvDir, fingerprintFile)
	if err := os.WriteFile(path, []byte(fingerprint), 0o644); err != nil { //nolint:gosec // marker file
		return nil, zerr.Wrap(err, "writing fingerprint marker")
	}
	return env, nil
}

func (p *Provisioner) upToDate(envDir, venvDir, fingerprint string) bool {
	if _, err := os.Stat(venvDir); err != nil {
		return false
	}
	recorded, err := os.ReadFile(filepath.Join(envDir, fingerprintFile)) //nolint:gosec // marker file
	return err == nil && string(recorded) == fingerprint
}

// runStep executes one provisioning command, failing with its output tail
// when it exits non-zero.
func (p *Provisioner) runStep(ctx context.Context, spec *domain.EnvSpec, env []string, args ...string) error {
	if p.logger != nil {
		p.logger.Info("provisioning " + spec.Name.String() + ": " + strings.Join(args, " "))
	}

	var output bytes.Buffer
	result, err := p.executor.Execute(ctx, ports.ExecRequest{
		Args:   args,
		Dir:    spec.EnvDir,
		Env:    env,
		Stdout: &output,
		Stderr: &output,
	})
	if err != nil {
		return zerr.Wrap(err, "provisioning command could not run")
	}
	if result.ExitCode != 0 {
		failure := zerr.With(zerr.New("provisioning command failed"), "exit_code", result.ExitCode)
		failure = zerr.With(failure, "command", strings.Join(args, " "))
		return zerr.With(failure, "output", tail(output.String(), 20))
	}
	return nil
}

// childEnv assembles the complete child environment: passenv passthrough
// from the parent, then the spec's setenv, then the isolation overrides.
func (p *Provisioner) childEnv(spec *domain.EnvSpec, venvDir string) []string {
	passenv := append(slices.Clone(defaultPassenv), spec.Passenv...)

	envMap := make(map[string]string)
	for _, entry := range os.Environ() {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if slices.Contains(passenv, k) {
			envMap[k] = v
		}
	}
	for k, v := range spec.Setenv {
		envMap[k] = v
	}

	// The environment's own binaries shadow everything else.
	venvBin := filepath.Join(venvDir, "bin")
	if parent, ok := envMap["PATH"]; ok && parent != "" {
		envMap["PATH"] = venvBin + string(os.PathListSeparator) + parent
	} else {
		envMap["PATH"] = venvBin
	}
	envMap["VIRTUAL_ENV"] = venvDir
	envMap["TMPDIR"] = spec.TmpDir
	envMap["MOX_ENV_NAME"] = spec.Name.String()
	envMap["MOX_ENV_DIR"] = spec.EnvDir

	env := make([]string, 0, len(envMap))
	for k, v := range envMap {
		env = append(env, k+"="+v)
	}
	slices.Sort(env)
	return env
}

func tail(s string, lines int) string {
	all := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(all) > lines {
		all = all[len(all)-lines:]
	}
	return strings.Join(all, "\n")
}

var _ ports.Provisioner = (*Provisioner)(nil)
