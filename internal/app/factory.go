package app

import (
	"fmt"

	"layerlens/internal/runtime"
	pkgruntime "layerlens/pkg/runtime"
)

// RuntimeFactory creates container runtime implementations from string
// identifiers, decoupling the orchestrator from concrete engine clients.
type RuntimeFactory struct{}

// NewRuntimeFactory creates a new instance of RuntimeFactory.
func NewRuntimeFactory() *RuntimeFactory {
	return &RuntimeFactory{}
}

// GetRuntime returns the container runtime implementation for the given
// engine name.
func (f *RuntimeFactory) GetRuntime(engineName string) (pkgruntime.ContainerRuntime, error) {
	switch engineName {
	case "docker":
		dockerRuntime, err := runtime.NewDockerRuntime()
		if err != nil {
			return nil, fmt.Errorf("failed to create Docker runtime: %w", err)
		}
		return dockerRuntime, nil
	default:
		return nil, fmt.Errorf("unsupported container engine: %s", engineName)
	}
}
