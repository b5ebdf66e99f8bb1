package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/toolrank/internal/adapters/http/api"
	"github.com/okian/toolrank/internal/adapters/http/swagger"
	"github.com/okian/toolrank/internal/adapters/snapshot"
	service "github.com/okian/toolrank/internal/app"
	"github.com/okian/toolrank/internal/config"
	"github.com/okian/toolrank/internal/domain/algorithm"
	"github.com/okian/toolrank/internal/domain/decay"
	"github.com/okian/toolrank/internal/scheduler"
	"github.com/okian/toolrank/pkg/logger"
	"github.com/okian/toolrank/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := newService(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		return
	}
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	sched, err := scheduler.New(cfg.Timezone, svc, scheduler.WithLogger(log))
	if err != nil {
		log.Error(ctx, "failed to create scheduler", logger.Error(err))
		return
	}
	if err := sched.Schedule(cfg.PeriodCloseCron); err != nil {
		log.Error(ctx, "failed to schedule period close", logger.Error(err))
		return
	}
	sched.Start()
	log.Info(ctx, "period close scheduled",
		logger.String("cron", cfg.PeriodCloseCron),
		logger.String("next", sched.Next().Format(time.RFC3339)))

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, svc, cfg.MaxLeaderboardLimit,
		api.WithRateLimit(cfg.IngestRatePerSec, cfg.IngestBurst))
	apiServer.Register(mux)
	swagger.Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	sched.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// newRegistry returns the built-in algorithm versions plus any configured ones.
func newRegistry(cfg *config.Config) (*algorithm.Registry, error) {
	reg, err := algorithm.NewDefaultRegistry()
	if err != nil {
		return nil, err
	}
	for _, v := range cfg.Algorithms {
		if err := reg.Register(v); err != nil {
			return nil, fmt.Errorf("register algorithm %q: %w", v.ID, err)
		}
	}
	return reg, nil
}

// newService maps the configuration onto service options.
func newService(cfg *config.Config, log logger.Logger) (*service.Service, error) {
	reg, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}
	return service.New(
		service.WithLogger(log),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithScoringWorkers(cfg.ScoringWorkers),
		service.WithDBPath(cfg.DBPath),
		service.WithSnapshotSource(snapshot.FileSource{Path: cfg.SnapshotPath}),
		service.WithRegistry(reg),
		service.WithActiveAlgorithm(cfg.ActiveAlgorithm),
		service.WithGranularity(cfg.PeriodGranularity),
		service.WithDecay(decay.Config{
			HorizonDays:      cfg.DecayHorizonDays,
			Exponent:         cfg.DecayExponent,
			MaxEventsPerType: cfg.DecayMaxEventsPerType,
			Diminishing:      cfg.DecayDiminishingFactor,
		}),
		service.WithDeltaCap(cfg.DeltaCap),
		service.WithEpsilon(cfg.TieEpsilon),
		service.WithTierPolicy(cfg.Tiers),
		service.WithTopCacheSize(cfg.MaxLeaderboardLimit),
		service.WithShutdownTimeout(cfg.ShutdownTimeout),
	), nil
}

// startSystemMetricsUpdater updates runtime gauges until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater mirrors service stats into gauges until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	queueLen, okLen := stats["queueLength"].(int)
	queueSize, okSize := stats["queueSize"].(int)
	if okLen && okSize {
		metrics.UpdateQueueSize(queueLen, queueSize)
	}
	if tools, ok := stats["trackedTools"].(int); ok {
		metrics.UpdateStandingsTools(tools)
	}
}
