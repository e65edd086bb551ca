package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/mox/internal/adapters/config"   //nolint:depguard // Wired in app layer
	"go.trai.ch/mox/internal/adapters/coverage" //nolint:depguard // Wired in app layer
	"go.trai.ch/mox/internal/adapters/logger"   //nolint:depguard // Wired in app layer
	"go.trai.ch/mox/internal/adapters/results"  //nolint:depguard // Wired in app layer
	"go.trai.ch/mox/internal/core/ports"
	"go.trai.ch/mox/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			scheduler.NodeID,
			results.NodeID,
			coverage.NodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
			loader, err := graft.Dep[ports.ConfigLoader](ctx)
			if err != nil {
				return nil, err
			}

			sched, err := graft.Dep[*scheduler.Scheduler](ctx)
			if err != nil {
				return nil, err
			}

			telemetry, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			openResults, err := graft.Dep[results.Opener](ctx)
			if err != nil {
				return nil, err
			}

			openCoverage, err := graft.Dep[coverage.Opener](ctx)
			if err != nil {
				return nil, err
			}

			return New(
				loader,
				sched,
				telemetry,
				log,
				ResultStoreOpener(openResults),
				AggregatorOpener(openCoverage),
			), nil
		},
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			config.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	application, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}
	concrete, ok := loader.(*config.Loader)
	if !ok {
		return nil, zerr.New("config loader is not the file loader")
	}

	return &Components{
		App:          application,
		Logger:       log,
		ConfigLoader: concrete,
	}, nil
}
