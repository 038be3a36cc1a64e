// Command invite-gate serves protected invite links behind the two-phase
// capability exchange.
//
// Configuration is read from the environment; see loadConfig for the full list.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"

	gate "github.com/giantswarm/invite-gate"
	"github.com/giantswarm/invite-gate/capability"
	"github.com/giantswarm/invite-gate/instrumentation"
	"github.com/giantswarm/invite-gate/resource"
	"github.com/giantswarm/invite-gate/security"
	"github.com/giantswarm/invite-gate/storage"
	"github.com/giantswarm/invite-gate/storage/memory"
	redisstore "github.com/giantswarm/invite-gate/storage/redis"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	logger := setupLogger()
	if err := run(logger); err != nil {
		logger.Error("invite-gate exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}

	registry, err := resource.LoadFile(cfg.resourcesFile)
	if err != nil {
		return err
	}
	resolver, err := resource.NewResolver(registry, resource.Templates{Mobile: cfg.mobileTemplate, Web: cfg.webTemplate})
	if err != nil {
		return err
	}

	signer, err := capability.NewSigner(cfg.gate.Capability.Key, cfg.gate.Capability.Algorithm)
	if err != nil {
		return err
	}
	protocol := capability.NewProtocol(signer, cfg.gate.Capability.IssuanceSkew, cfg.gate.Capability.RedemptionSkew)

	inst, metricsHandler, err := setupInstrumentation(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := inst.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Instrumentation shutdown failed", "error", err)
		}
	}()

	store, closeStore, err := setupStore(ctx, cfg, inst, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	limiter := security.NewRateLimiter(store, cfg.gate.RateLimit.Window, cfg.gate.RateLimit.Limit, logger)
	if mem, ok := store.(*memory.Store); ok {
		mem.StartJanitor(ctx, cfg.janitorInterval, limiter.Window())
	}

	srv, err := gate.NewServer(resolver, protocol, limiter, &cfg.gate, logger)
	if err != nil {
		return err
	}
	srv.SetInstrumentation(inst)

	handler, err := gate.NewHandler(srv, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	servers := []*http.Server{httpServer}
	if metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		servers = append(servers, &http.Server{
			Addr:              cfg.metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	logger.Info("Starting invite-gate",
		"version", version,
		"addr", cfg.listenAddr,
		"resources", registry.Len(),
		"mac_algorithm", signer.Algorithm(),
		"rate_window", cfg.gate.RateLimit.Window,
		"rate_limit", cfg.gate.RateLimit.Limit,
		"rate_store", cfg.storeName(),
		"audit_logging", cfg.gate.Security.EnableAuditLogging,
		"metrics_addr", cfg.metricsAddr,
	)

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *http.Server) {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listen on %s: %w", s.Addr, err)
			}
		}(s)
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown failed", "addr", s.Addr, "error", err)
		}
	}
	return nil
}

// setupInstrumentation returns disabled instrumentation unless OTEL_ENABLED
// is set, in which case metrics are exported in Prometheus format.
func setupInstrumentation(cfg *appConfig, logger *slog.Logger) (*instrumentation.Instrumentation, http.Handler, error) {
	if !cfg.otelEnabled {
		inst, err := instrumentation.New(instrumentation.Config{Enabled: false})
		return inst, nil, err
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	inst, err := instrumentation.New(instrumentation.Config{
		Enabled:        true,
		ServiceName:    instrumentation.DefaultServiceName,
		ServiceVersion: version,
		LogClientIPs:   cfg.logClientIPs,
		MetricReader:   exporter,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("OpenTelemetry enabled", "metrics_addr", cfg.metricsAddr, "log_client_ips", cfg.logClientIPs)
	return inst, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// setupStore picks the redis window store when RATE_REDIS_ADDR is set and
// the sharded in-memory store otherwise. The memory store's janitor is started
// by the caller once the limiter has settled on its window.
func setupStore(ctx context.Context, cfg *appConfig, inst *instrumentation.Instrumentation, logger *slog.Logger) (storage.WindowStore, func(), error) {
	if cfg.redisAddr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		store := redisstore.New(client, redisstore.WithLogger(logger))
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis window store unreachable: %w", err)
		}
		store.SetInstrumentation(inst)
		return store, func() { _ = client.Close() }, nil
	}

	store := memory.New(
		memory.WithEvictionThreshold(cfg.evictionThreshold),
		memory.WithLogger(logger),
	)
	store.SetInstrumentation(inst)
	return store, func() {}, nil
}
