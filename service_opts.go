package shortblob

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/meigma/shortblob/core"
)

// Option configures a Service.
type Option func(*Service) error

// WithLogger sets the logger for the store, backend and request log.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithMeterProvider sets the meter provider for store and HTTP metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) error {
		s.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the tracer provider for HTTP spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) error {
		s.tracerProvider = tp
		return nil
	}
}

// WithBackend supplies the persistent tier instead of opening one from
// Config.Backend. The Service takes ownership and closes it on Close.
func WithBackend(b core.Backend) Option {
	return func(s *Service) error {
		if b == nil {
			return errors.New("shortblob: WithBackend requires a non-nil backend")
		}
		s.backend = b
		return nil
	}
}
