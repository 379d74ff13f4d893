package shortblob

import (
	"context"
	"fmt"
	"log/slog"
	nethttp "net/http"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/meigma/shortblob/core"
	"github.com/meigma/shortblob/core/backend"
	shorthttp "github.com/meigma/shortblob/http"
)

// Service wires a hasher, persistent tier, store and HTTP handler.
type Service struct {
	cfg            Config
	store          *core.Store
	backend        core.Backend
	handler        nethttp.Handler
	logger         *slog.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// Open validates cfg and builds a ready-to-serve Service.
//
// Configuration errors match ErrConfiguration. Errors opening the persistent
// tier are returned as-is. A backend supplied with WithBackend is closed when
// Open fails.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Service, error) {
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			s.closeBackend()
			return nil, err
		}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	if err := cfg.Validate(); err != nil {
		s.closeBackend()
		return nil, err
	}
	hasher, err := core.NewHasher(cfg.Hash.Algorithm, cfg.Hash.Length)
	if err != nil {
		s.closeBackend()
		return nil, err
	}

	if s.backend == nil {
		b, err := backend.Open(ctx, cfg.Backend, s.logger)
		if err != nil {
			return nil, fmt.Errorf("shortblob: open backend: %w", err)
		}
		s.backend = b
	}

	storeOpts := []core.Option{core.WithLogger(s.logger)}
	if s.backend != nil {
		storeOpts = append(storeOpts, core.WithBackend(s.backend))
	}
	if s.meterProvider != nil {
		storeOpts = append(storeOpts, core.WithMeterProvider(s.meterProvider))
	}
	s.store, err = core.NewStore(hasher, storeOpts...)
	if err != nil {
		s.closeBackend()
		return nil, err
	}

	handlerOpts := []shorthttp.Option{
		shorthttp.WithScheme(cfg.HTTP.Scheme),
		shorthttp.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		shorthttp.WithLogger(s.logger),
		shorthttp.WithRateLimit(cfg.HTTP.RateLimit.RPS, cfg.HTTP.RateLimit.Burst),
	}
	if s.tracerProvider != nil {
		handlerOpts = append(handlerOpts, shorthttp.WithTracerProvider(s.tracerProvider))
	}
	if s.meterProvider != nil {
		handlerOpts = append(handlerOpts, shorthttp.WithMeterProvider(s.meterProvider))
	}
	s.handler = shorthttp.NewHandler(s.store, handlerOpts...)

	s.logger.InfoContext(ctx, "service ready",
		"algorithm", hasher.Algorithm(),
		"length", hasher.Length(),
		"persistent", s.store.Persistent())
	return s, nil
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Service) Handler() nethttp.Handler { return s.handler }

// Store returns the underlying store.
func (s *Service) Store() *core.Store { return s.store }

// Config returns the configuration the Service was opened with.
func (s *Service) Config() Config { return s.cfg }

// Close releases the persistent tier.
func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) closeBackend() {
	if s.backend != nil {
		_ = s.backend.Close()
	}
}
