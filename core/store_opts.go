package core

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
)

// Option configures a Store.
type Option func(*Store)

// WithBackend sets the persistent tier. A nil backend (the default) keeps the
// store memory-only: nothing survives a restart.
func WithBackend(b Backend) Option {
	return func(s *Store) {
		s.backend = b
	}
}

// WithLogger sets the logger used to report storage failures.
// If nil, a discard logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for store metrics.
// Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Store) {
		s.meterProvider = mp
	}
}

// WithMemoryShards sets the number of lock stripes in the memory tier.
// Values <= 0 use the default of 32.
func WithMemoryShards(n int) Option {
	return func(s *Store) {
		s.memoryShards = n
	}
}
