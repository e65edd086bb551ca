package telemetry

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/mox/internal/adapters/telemetry/progrock"
	"go.trai.ch/mox/internal/core/ports"
)

// NodeID is the unique identifier for the telemetry Graft node.
const NodeID graft.ID = "adapter.telemetry"

func init() {
	graft.Register(graft.Node[ports.Telemetry]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Telemetry, error) {
			// Recording still happens per environment either way; the
			// progrock tape is opt-in since the summary already covers
			// non-interactive use.
			if os.Getenv("MOX_PROGRESS") != "" {
				return progrock.New(), nil
			}
			return NewNoOp(), nil
		},
	})
}
