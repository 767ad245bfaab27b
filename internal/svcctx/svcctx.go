// Package svcctx provides context enrichment for core services.
// Services are attached to the request context by server middleware and
// extracted by endpoint handlers.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/billscan/billscan/internal/config"
	"github.com/billscan/billscan/internal/metrics"
	"github.com/billscan/billscan/internal/providers"
)

// Services holds the core services handlers pull from the request context.
type Services struct {
	Registry      *providers.Registry
	ConfigManager *config.Manager
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

type servicesKey struct{}

// WithServices attaches services to the context.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts services from the context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// RegistryFrom extracts the provider registry from the context.
// Returns nil if not present.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// ConfigManagerFrom extracts the config manager from the context.
// Returns nil if not present.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}

// MetricsFrom extracts the metrics set from the context.
// Returns nil if not present.
func MetricsFrom(ctx context.Context) *metrics.Metrics {
	if s := ServicesFrom(ctx); s != nil {
		return s.Metrics
	}
	return nil
}

// LoggerFrom extracts the logger from the context.
// Returns slog.Default() if not present.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
