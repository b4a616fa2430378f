package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/stratowatch/internal/adapters/http/api"
	"github.com/okian/stratowatch/internal/adapters/http/swagger"
	app "github.com/okian/stratowatch/internal/app"
	"github.com/okian/stratowatch/internal/config"
	"github.com/okian/stratowatch/internal/domain/atmosphere"
	"github.com/okian/stratowatch/internal/domain/scoring"
	"github.com/okian/stratowatch/pkg/logger"
	"github.com/okian/stratowatch/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env). The log format
	// comes from config, so failures here go straight to stderr.
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.InitWithFormat(strings.ToLower(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := newService(cfg)
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	go every(ctx, systemMetricsInterval, updateSystemMetrics)
	go every(ctx, serviceMetricsInterval, func() { updateServiceMetrics(ctx, svc) })

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newService maps configuration onto service options.
func newService(cfg *config.Config) (*app.Service, error) {
	mode, err := scoring.ParseDistanceMode(strings.ToLower(cfg.DistanceMode))
	if err != nil {
		return nil, err
	}

	return app.New(
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithParallelThreshold(cfg.ParallelThreshold),
		app.WithScoringOptions(
			scoring.WithThreshold(cfg.DeviationThresholdPct),
			scoring.WithKmPerDegree(cfg.KmPerDegree),
			scoring.WithDistanceMode(mode),
			scoring.WithRapidDescentRate(cfg.RapidDescentMps),
			scoring.WithLowBatteryPercent(cfg.LowBatteryPct),
		),
		app.WithProfileOptions(atmosphere.WithDeviationThreshold(cfg.ProfileDeviationThresholdC)),
	), nil
}

// newHandler builds the full HTTP handler: docs, business API, recovery and CORS.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service) http.Handler {
	r := mux.NewRouter()

	swagger.Register(ctx, r)

	// Validate already rejected unparsable entries.
	proxies, _ := cfg.TrustedProxyPrefixes()

	api.NewServer(svc, svc,
		api.WithMaxBatchSize(cfg.MaxBatchSize),
		api.WithMaxAnomalyLimit(cfg.MaxAnomalyLimit),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithTrustedProxies(proxies...),
	).Register(ctx, r)

	return api.Handler(r)
}

// every calls fn on each tick of interval until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		metrics.RecordSystemGCPauseTime(float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond)
	}
}

// updateServiceMetrics pushes service stats and board health into gauges.
// GetStats already refreshes the queue gauge.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	stats := svc.GetStats()
	if stats["started"] != true {
		return
	}

	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerActiveCount(workerCount)
	}
	if entries, ok := stats["boardEntries"].(int); ok {
		metrics.UpdateBoardEntries(entries)
	}
	if health, err := svc.FleetHealth(ctx); err == nil {
		metrics.UpdateBoardAnomalous(health.Anomalous)
	}
}
