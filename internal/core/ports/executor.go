// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"
	"time"
)

// ExecRequest describes one command invocation.
type ExecRequest struct {
	// Args is the argv vector; Args[0] is the executable.
	Args []string

	// Dir is the working directory.
	Dir string

	// Env contains the complete child environment in "KEY=VALUE" format,
	// typically assembled by a Provisioner for isolated execution.
	Env []string

	// Timeout bounds the command's runtime. Zero means no bound.
	Timeout time.Duration

	// TerminationGrace is how long the command gets between the
	// interrupt signal and a hard kill when it is canceled or times out.
	TerminationGrace time.Duration

	// Stdout and Stderr receive the command's output streams.
	Stdout io.Writer
	Stderr io.Writer
}

// ExecResult reports how a command finished.
type ExecResult struct {
	// ExitCode is the process exit code; -1 when the process never ran
	// or was killed by a signal.
	ExitCode int

	// TimedOut is set when the Timeout elapsed before the command finished.
	TimedOut bool

	Duration time.Duration
}

// Executor defines the interface for running environment commands.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs one command to completion.
	//
	// A non-zero exit status is not an error: it is reported through
	// ExecResult so callers can apply their own failure policy. The
	// returned error covers failures to run at all, a missing
	// executable for instance.
	Execute(ctx context.Context, req ExecRequest) (ExecResult, error)
}
