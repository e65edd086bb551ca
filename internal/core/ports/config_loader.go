package ports

import "go.trai.ch/mox/internal/core/domain"

// ConfigLoader defines the interface for loading the matrix configuration.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the configuration document from the given project
	// directory. The document is validated: names parse, section
	// references resolve acyclically and the engine version satisfies
	// the document's minimum.
	Load(cwd string) (*domain.Document, error)
}
