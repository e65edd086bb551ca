package ports

// RuntimeLocator resolves runtime commands to absolute executable paths.
//
//go:generate go run go.uber.org/mock/mockgen -source=runtime.go -destination=mocks/mock_runtime.go -package=mocks
type RuntimeLocator interface {
	// Locate returns the absolute path of the runtime executable.
	// Returns domain.ErrRuntimeUnavailable when it cannot be found.
	Locate(runtime string) (string, error)
}
