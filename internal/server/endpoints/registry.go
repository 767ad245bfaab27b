package endpoints

import (
	"github.com/billscan/billscan/internal/api"
	"github.com/billscan/billscan/internal/config"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	Pipeline config.PipelineCfg
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		&HealthEndpoint{},
		&StatusEndpoint{},
		&MetricsEndpoint{},
		NewExtractEndpoint(cfg.Pipeline),
	}
}
