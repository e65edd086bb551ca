// Package shell provides the command executor adapter.
package shell

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.trai.ch/mox/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultTerminationGrace is how long a canceled or timed-out command gets
// between SIGTERM and SIGKILL when the request does not say otherwise.
const DefaultTerminationGrace = 10 * time.Second

// Executor implements ports.Executor using os/exec.
type Executor struct {
	logger ports.Logger
}

// NewExecutor creates a new Executor.
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{logger: logger}
}

// Execute runs one command to completion.
//
// The executable is looked up against the PATH of the request environment,
// not the parent process, so an isolated environment's own binaries win.
// A non-zero exit is reported through the result, not as an error; errors
// mean the command could not run at all.
func (e *Executor) Execute(ctx context.Context, req ports.ExecRequest) (ports.ExecResult, error) {
	if len(req.Args) == 0 {
		return ports.ExecResult{}, zerr.New("empty command")
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	name := req.Args[0]
	executable := name
	if !filepath.IsAbs(name) {
		if lp, err := lookPath(name, req.Env); err == nil {
			executable = lp
		}
	}

	cmd := exec.CommandContext(runCtx, executable, req.Args[1:]...) //nolint:gosec // user provided command
	// exec.CommandContext puts the resolved path into Args[0]; keep the
	// spelling the environment declared.
	cmd.Args[0] = name
	cmd.Dir = req.Dir
	cmd.Env = req.Env
	cmd.Stdout = orDiscard(req.Stdout)
	cmd.Stderr = orDiscard(req.Stderr)

	grace := req.TerminationGrace
	if grace <= 0 {
		grace = DefaultTerminationGrace
	}
	// Polite stop on cancellation or timeout; WaitDelay hard-kills after
	// the grace period.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = grace

	start := time.Now()
	err := cmd.Run()
	result := ports.ExecResult{
		ExitCode: 0,
		Duration: time.Since(start),
	}
	if err == nil {
		return result, nil
	}

	result.TimedOut = req.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if result.TimedOut || runCtx.Err() != nil {
		// Killed before producing an exit status.
		result.ExitCode = -1
		return result, nil
	}

	result.ExitCode = -1
	failure := zerr.Wrap(err, "command could not run")
	return result, zerr.With(failure, "command", strings.Join(req.Args, " "))
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// lookPath searches for an executable in the directories named by the
// PATH entry of env, falling back to exec's not-found error.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, entry := range env {
		if v, ok := strings.CutPrefix(entry, "PATH="); ok {
			path = v
			break
		}
	}
	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: empty path element means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	mode := info.Mode()
	return !mode.IsDir() && mode&0o111 != 0
}

var _ ports.Executor = (*Executor)(nil)

