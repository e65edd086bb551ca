package results

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/mox/internal/core/ports"
)

// Opener creates a result store at a path. The store lives under the
// document's work directory, which is only known once the configuration
// is loaded, so the application opens it per invocation.
type Opener func(path string) (ports.ResultStore, error)

// NodeID is the unique identifier for the result store Graft node.
const NodeID graft.ID = "adapter.result_store"

func init() {
	graft.Register(graft.Node[Opener]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (Opener, error) {
			return func(path string) (ports.ResultStore, error) {
				return NewStore(path)
			}, nil
		},
	})
}
