package http //nolint:revive // package name matches the protocol it serves

import (
	"errors"
	"io"
	"log/slog"
	nethttp "net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/meigma/shortblob/core"
)

// DefaultMaxBodyBytes bounds POST bodies unless overridden.
const DefaultMaxBodyBytes int64 = 1 << 20

// HealthPath answers liveness probes. It can never collide with an
// identifier because it is not hexadecimal.
const HealthPath = "/healthz"

// Handler serves the shorten and redirect endpoints.
type Handler struct {
	adapter        *Adapter
	scheme         string
	maxBodyBytes   int64
	logger         *slog.Logger
	limiter        *rateLimiter
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Handler.
type Option func(*Handler)

// WithScheme sets the scheme of short URLs for plain-HTTP requests.
// Requests that arrive over TLS always get https.
func WithScheme(scheme string) Option {
	return func(h *Handler) {
		h.scheme = scheme
	}
}

// WithMaxBodyBytes bounds POST bodies. Zero disables the bound.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		h.maxBodyBytes = n
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithRateLimit enables per-client-IP token buckets refilling at rps with
// the given burst. Rejected requests get 429.
func WithRateLimit(rps float64, burst int) Option {
	return func(h *Handler) {
		if rps <= 0 {
			h.limiter = nil
			return
		}
		h.limiter = newRateLimiter(rps, burst)
	}
}

// WithTracerProvider sets the tracer provider for HTTP spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Handler) {
		h.tracerProvider = tp
	}
}

// WithMeterProvider sets the meter provider for HTTP metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(h *Handler) {
		h.meterProvider = mp
	}
}

// NewHandler returns the full middleware chain over store: telemetry,
// request logging, rate limiting and the endpoints themselves.
func NewHandler(store *core.Store, opts ...Option) nethttp.Handler {
	h := &Handler{
		scheme:       DefaultScheme,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	h.adapter = NewAdapter(store, h.scheme)

	var next nethttp.Handler = h
	if h.limiter != nil {
		next = h.limiter.middleware(next)
	}
	next = logRequests(h.logger, next)

	var otelOpts []otelhttp.Option
	if h.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(h.tracerProvider))
	}
	if h.meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(h.meterProvider))
	}
	return otelhttp.NewHandler(next, "shortblob", otelOpts...)
}

// ServeHTTP implements net/http.Handler without middleware.
func (h *Handler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	switch r.Method {
	case nethttp.MethodPost:
		h.serveShorten(w, r)
	case nethttp.MethodGet, nethttp.MethodHead:
		if r.URL.Path == HealthPath {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(nethttp.StatusOK)
			if r.Method == nethttp.MethodGet {
				_, _ = io.WriteString(w, "ok\n")
			}
			return
		}
		h.serveRedirect(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		nethttp.Error(w, nethttp.StatusText(nethttp.StatusMethodNotAllowed), nethttp.StatusMethodNotAllowed)
	}
}

func (h *Handler) serveShorten(w nethttp.ResponseWriter, r *nethttp.Request) {
	body := r.Body
	if h.maxBodyBytes > 0 {
		body = nethttp.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	content, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *nethttp.MaxBytesError
		if errors.As(err, &tooLarge) {
			nethttp.Error(w, nethttp.StatusText(nethttp.StatusRequestEntityTooLarge), nethttp.StatusRequestEntityTooLarge)
			return
		}
		nethttp.Error(w, "read request body", nethttp.StatusBadRequest)
		return
	}

	scheme := h.scheme
	if r.TLS != nil {
		scheme = "https"
	}
	shortURL, err := h.adapter.shorten(r.Context(), scheme, r.Host, content)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "shorten failed", "error", err)
		nethttp.Error(w, nethttp.StatusText(nethttp.StatusInternalServerError), nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(nethttp.StatusOK)
	_, _ = io.WriteString(w, shortURL)
}

func (h *Handler) serveRedirect(w nethttp.ResponseWriter, r *nethttp.Request) {
	target, err := h.adapter.Resolve(r.Context(), r.URL.Path)
	switch {
	case err == nil:
		w.Header().Set("Location", target)
		w.WriteHeader(nethttp.StatusFound)
	case errors.Is(err, core.ErrNotFound):
		w.WriteHeader(nethttp.StatusNotFound)
	default:
		h.logger.ErrorContext(r.Context(), "resolve failed", "path", r.URL.Path, "error", err)
		w.WriteHeader(nethttp.StatusInternalServerError)
	}
}
