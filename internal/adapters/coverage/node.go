package coverage

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/mox/internal/adapters/logger"
	"go.trai.ch/mox/internal/core/ports"
)

// Opener creates an aggregator persisting under a coverage directory.
// The directory lives under the document's work directory, so the
// application opens it per invocation.
type Opener func(dir string) ports.CoverageAggregator

// NodeID is the unique identifier for the coverage aggregator Graft node.
const NodeID graft.ID = "adapter.coverage"

func init() {
	graft.Register(graft.Node[Opener]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (Opener, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return func(dir string) ports.CoverageAggregator {
				return NewAggregator(dir, log)
			}, nil
		},
	})
}
