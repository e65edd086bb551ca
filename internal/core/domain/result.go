package domain

import "time"

// RunStatus is the lifecycle state of an environment run.
type RunStatus string

const (
	// StatusPending indicates the environment is waiting for its barrier or a worker slot.
	StatusPending RunStatus = "pending"
	// StatusProvisioning indicates runtime discovery and isolated state setup are in progress.
	StatusProvisioning RunStatus = "provisioning"
	// StatusRunning indicates the command sequence is executing.
	StatusRunning RunStatus = "running"
	// StatusSucceeded indicates every command exited zero (or was ignored).
	StatusSucceeded RunStatus = "succeeded"
	// StatusFailed indicates provisioning, aggregation or a command failed.
	StatusFailed RunStatus = "failed"
	// StatusSkipped indicates the environment did not run: missing runtime
	// under a skip policy, or a canceled run.
	StatusSkipped RunStatus = "skipped"
)

// IsTerminal reports whether the status is final. Terminal states absorb;
// transitions out of them are programming errors.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the state machine permits moving to next.
func (s RunStatus) CanTransition(next RunStatus) bool {
	switch s {
	case StatusPending:
		// Inert environments go straight to succeeded; skip policies and
		// cancellation bypass provisioning entirely.
		return next == StatusProvisioning || next == StatusSucceeded ||
			next == StatusFailed || next == StatusSkipped
	case StatusProvisioning:
		return next == StatusRunning || next == StatusFailed || next == StatusSkipped
	case StatusRunning:
		return next == StatusSucceeded || next == StatusFailed
	default:
		return false
	}
}

// CommandResult records one executed command.
type CommandResult struct {
	Args     []string      `json:"args"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration,omitzero"`
	TimedOut bool          `json:"timed_out,omitzero"`

	// Ignored marks a non-zero exit that did not terminate the run.
	Ignored bool `json:"ignored,omitzero"`
}

// RunResult is the terminal record of one environment run.
type RunResult struct {
	Env         string          `json:"env"`
	Status      RunStatus       `json:"status"`
	FailedIndex int             `json:"failed_index"`
	Commands    []CommandResult `json:"commands,omitempty"`
	Artifacts   []string        `json:"artifacts,omitempty"`
	Fingerprint string          `json:"fingerprint,omitzero"`
	Reason      string          `json:"reason,omitzero"`
	StartedAt   time.Time       `json:"started_at,omitzero"`
	Duration    time.Duration   `json:"duration,omitzero"`
}

// NoFailedCommand is the FailedIndex value when no command failed.
const NoFailedCommand = -1

// Failed reports whether the run counts against the invocation's exit status.
func (r *RunResult) Failed() bool { return r.Status == StatusFailed }
