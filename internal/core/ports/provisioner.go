package ports

import (
	"context"

	"go.trai.ch/mox/internal/core/domain"
)

// Provisioner prepares the isolated execution state of an environment.
//
// Implementations are responsible for:
//   - Creating the environment's state directory from the located runtime
//   - Installing the spec's dependency set into it
//   - Constructing the complete child environment variables (PATH with
//     the environment's binaries first, passenv passthrough, setenv)
//
//go:generate go run go.uber.org/mock/mockgen -source=provisioner.go -destination=mocks/mock_provisioner.go -package=mocks
type Provisioner interface {
	// Provision sets up the isolated state for the spec using the
	// runtime located at runtimePath.
	//
	// Returns environment variables as "KEY=VALUE" strings suitable for
	// process execution. Provisioning the same spec twice reuses the
	// existing state when the spec fingerprint is unchanged.
	Provision(ctx context.Context, spec *domain.EnvSpec, runtimePath string) ([]string, error)
}
