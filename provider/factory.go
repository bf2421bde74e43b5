package provider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/cloudbox/config"
)

// New creates the sandbox provider for the configured backend
func New(logger *zap.Logger, cfg *config.Config) (Provider, error) {
	switch cfg.Compute.Backend {
	case "cloud":
		return NewCloudProvider(logger, &cfg.Compute), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Compute.Backend)
	}
}
