package app

import (
	"go.trai.ch/mox/internal/adapters/config"
	"go.trai.ch/mox/internal/core/ports"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger

	// ConfigLoader is held concretely so the CLI can point it at an
	// alternate configuration file before the first Load.
	ConfigLoader *config.Loader
}
