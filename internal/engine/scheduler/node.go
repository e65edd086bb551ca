package scheduler

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/mox/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/mox/internal/adapters/pyruntime" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/mox/internal/adapters/shell"     //nolint:depguard // Wired in engine wiring
	"go.trai.ch/mox/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/mox/internal/core/ports"
)

// NodeID is the unique identifier for the scheduler Graft node.
const NodeID graft.ID = "engine.scheduler"

func init() {
	graft.Register(graft.Node[*Scheduler]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			shell.NodeID,
			pyruntime.LocatorNodeID,
			pyruntime.ProvisionerNodeID,
			telemetry.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Scheduler, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			locator, err := graft.Dep[ports.RuntimeLocator](ctx)
			if err != nil {
				return nil, err
			}
			provisioner, err := graft.Dep[ports.Provisioner](ctx)
			if err != nil {
				return nil, err
			}
			tel, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(executor, locator, provisioner, tel, log), nil
		},
	})
}
