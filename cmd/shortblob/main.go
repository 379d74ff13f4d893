// shortblob serves a content-addressed blob store over HTTP.
//
// POST a body to any path to store it and receive a short URL; GET or HEAD
// the short URL to be redirected to the stored content:
//
//	shortblob --port 8080 --hash-algorithm sha256 --hash-length 5 --state-dir goto_state
//
// See --help for every flag. Settings can also come from a YAML file
// (--config) and SHORTBLOB_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/shortblob"
	"github.com/meigma/shortblob/internal/config"
	"github.com/meigma/shortblob/internal/telemetry"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			config.Usage(os.Stdout)
			return
		}
		fmt.Fprintf(os.Stderr, "shortblob: %v\n", err)
		if errors.Is(err, shortblob.ErrConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args, os.LookupEnv)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	svc, err := shortblob.Open(ctx, cfg.Config,
		shortblob.WithLogger(logger),
		shortblob.WithMeterProvider(tel.MeterProvider),
		shortblob.WithTracerProvider(tel.TracerProvider),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	servers := []*http.Server{{
		Addr:              cfg.Listen,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}}
	if cfg.DebugListen != "" {
		servers = append(servers, &http.Server{
			Addr:              cfg.DebugListen,
			Handler:           debugMux(),
			ReadHeaderTimeout: readHeaderTimeout,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

func debugMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}
