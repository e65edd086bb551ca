// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/mox/internal/adapters/config"
	_ "go.trai.ch/mox/internal/adapters/coverage"
	_ "go.trai.ch/mox/internal/adapters/logger"
	_ "go.trai.ch/mox/internal/adapters/pyruntime"
	_ "go.trai.ch/mox/internal/adapters/results"
	_ "go.trai.ch/mox/internal/adapters/shell"
	_ "go.trai.ch/mox/internal/adapters/telemetry"
	// Register app and engine nodes.
	_ "go.trai.ch/mox/internal/app"
	_ "go.trai.ch/mox/internal/engine/scheduler"
)
