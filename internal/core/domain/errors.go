package domain

import "go.trai.ch/zerr"

var (
	// ErrMalformedName is returned when an environment name cannot be split into factors.
	ErrMalformedName = zerr.New("malformed environment name")

	// ErrUnknownEnvironment is returned when a requested environment is not declared in the document.
	ErrUnknownEnvironment = zerr.New("unknown environment")

	// ErrUnresolvedSubstitution is returned when a substitution token cannot be resolved,
	// including references to missing or cyclically dependent sections.
	ErrUnresolvedSubstitution = zerr.New("unresolved substitution")

	// ErrDependencyCycle is returned when environment depends declarations form a cycle.
	ErrDependencyCycle = zerr.New("dependency cycle")

	// ErrEngineVersion is returned when the document requires a newer engine than this build.
	ErrEngineVersion = zerr.New("engine version too old for document")

	// ErrRuntimeUnavailable is returned when an environment's runtime cannot be located.
	ErrRuntimeUnavailable = zerr.New("runtime unavailable")

	// ErrCommandFailed is returned when an environment command exits non-zero.
	ErrCommandFailed = zerr.New("command failed")

	// ErrTimeout is returned when a command exceeds the configured timeout.
	ErrTimeout = zerr.New("command timed out")

	// ErrArtifactUnreadable is returned when a coverage artifact cannot be read or decoded.
	ErrArtifactUnreadable = zerr.New("artifact unreadable")

	// ErrRunFailed is returned by the application layer when at least one
	// selected environment failed.
	ErrRunFailed = zerr.New("environment run failed")
)
