package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/mox/internal/adapters/telemetry"
	"go.trai.ch/mox/internal/core/ports"
)

func TestNoOp_RecordAttachesVertexToContext(t *testing.T) {
	noop := telemetry.NewNoOp()

	ctx, v := noop.Record(context.Background(), "py27")
	require.NotNil(t, v)

	got, ok := ports.VertexFromContext(ctx)
	require.True(t, ok)
	require.Same(t, v, got)
}

func TestNoOp_VertexWritersDiscard(t *testing.T) {
	noop := telemetry.NewNoOp()
	_, v := noop.Record(context.Background(), "py27")

	n, err := v.Stdout().Write([]byte("output"))
	require.NoError(t, err)
	require.Equal(t, 6, n)

	v.Complete(nil)
	v.Skipped()
	require.NoError(t, noop.Close())
}
