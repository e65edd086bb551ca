package progrock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	progrocklib "github.com/vito/progrock"
	"go.trai.ch/mox/internal/adapters/telemetry/progrock"
	"go.trai.ch/mox/internal/core/ports"
)

func TestRecorder_RecordAndComplete(t *testing.T) {
	tape := progrocklib.NewTape()
	rec := progrock.NewRecorder(tape)

	ctx, v := rec.Record(context.Background(), "py27-requests")
	require.NotNil(t, v)

	got, ok := ports.VertexFromContext(ctx)
	require.True(t, ok)
	require.Same(t, v, got)

	_, err := v.Stdout().Write([]byte("collected 12 items\n"))
	require.NoError(t, err)
	v.Complete(nil)

	require.NoError(t, rec.Close())
}

func TestRecorder_EmitPlanAndSkip(t *testing.T) {
	rec := progrock.New()

	rec.EmitPlan(context.Background(), []string{"py27", "py38", "coverage"})

	_, v := rec.Record(context.Background(), "py27")
	v.Skipped()

	require.NoError(t, rec.Close())
}
