package pyruntime

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/mox/internal/adapters/logger"
	"go.trai.ch/mox/internal/adapters/shell"
	"go.trai.ch/mox/internal/core/ports"
)

const (
	// LocatorNodeID is the unique identifier for the runtime locator Graft node.
	LocatorNodeID graft.ID = "adapter.pyruntime.locator"
	// ProvisionerNodeID is the unique identifier for the provisioner Graft node.
	ProvisionerNodeID graft.ID = "adapter.pyruntime.provisioner"
)

func init() {
	graft.Register(graft.Node[ports.RuntimeLocator]{
		ID:        LocatorNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.RuntimeLocator, error) {
			return NewLocator(), nil
		},
	})

	graft.Register(graft.Node[ports.Provisioner]{
		ID:        ProvisionerNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{shell.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.Provisioner, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewProvisioner(executor, log), nil
		},
	})
}
