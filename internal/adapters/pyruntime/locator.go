// Package pyruntime locates interpreter runtimes and provisions isolated
// per-environment state. Interpreter and installer mechanics stay opaque
// commands; this package only composes and invokes them.
package pyruntime

import (
	"os/exec"

	"go.trai.ch/mox/internal/core/domain"
	"go.trai.ch/mox/internal/core/ports"
	"go.trai.ch/zerr"
)

// Locator implements ports.RuntimeLocator against the parent PATH.
type Locator struct{}

// NewLocator creates a Locator.
func NewLocator() *Locator {
	return &Locator{}
}

// Locate resolves a runtime command to an absolute executable path.
func (l *Locator) Locate(runtime string) (string, error) {
	path, err := exec.LookPath(runtime)
	if err != nil {
		return "", zerr.With(domain.ErrRuntimeUnavailable, "runtime", runtime)
	}
	return path, nil
}

var _ ports.RuntimeLocator = (*Locator)(nil)
