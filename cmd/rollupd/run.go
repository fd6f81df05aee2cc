package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"net/http"

	"github.com/jeffpierce/aggrollup/internal/agentrollup"
	"github.com/jeffpierce/aggrollup/internal/cassandra"
	"github.com/jeffpierce/aggrollup/internal/config"
	"github.com/jeffpierce/aggrollup/internal/logging"
	"github.com/jeffpierce/aggrollup/internal/rollup"
	"github.com/jeffpierce/aggrollup/internal/schema"
	"github.com/jeffpierce/aggrollup/internal/sharedquery"
	"github.com/jeffpierce/aggrollup/internal/store"
	"github.com/jeffpierce/aggrollup/internal/telemetry"
	"github.com/jeffpierce/aggrollup/internal/workqueue"
	"github.com/jeffpierce/aggrollup/internal/writer"
)

func run(confFile string) error {
	cfg, err := loadConfig(confFile)
	if err != nil {
		return err
	}

	level, levelErr := logging.TextToLevel(cfg.Log.Level)
	logDir := ""
	if cfg.Log.Dir != "" {
		if abs, err := filepath.Abs(cfg.Log.Dir); err == nil {
			logDir = abs
		}
	}
	loggers := logging.New(logDir, level)
	defer loggers.Close()

	loggers.System.LogInfo("rollupd starting up")
	if levelErr != nil {
		loggers.System.LogWarn("bad log level %q, defaulting to info: %v", cfg.Log.Level, levelErr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver := cassandra.NewResolver(cfg.Cassandra.DNSCacheTTL)
	defer resolver.Close()

	session, err := cassandra.NewSession(cfg.Cassandra, resolver)
	if err != nil {
		return fmt.Errorf("connect to cassandra: %w", err)
	}
	defer session.Close()
	loggers.System.LogInfo("connected to cassandra keyspace %q", cfg.Cassandra.Keyspace)

	catalog := schema.New()
	numLevels := len(cfg.Rollup.Levels)

	levelTTLSeconds := make([]int, numLevels)
	workQueueTTLSeconds := make([]int, numLevels)
	for i, lvl := range cfg.Rollup.Levels {
		dataTTL := store.DataTTL(lvl.Retention, 0)
		levelTTLSeconds[i] = int(dataTTL / time.Second)
		if i == 0 {
			workQueueTTLSeconds[i] = levelTTLSeconds[i]
			continue
		}
		wqTTL := store.WorkQueueTTL(dataTTL, cfg.Rollup.MaxRollupInterval())
		workQueueTTLSeconds[i] = int(wqTTL / time.Second)
	}

	if err := schema.EnsureSchema(session, catalog, cfg.Cassandra.Keyspace, cfg.Cassandra.Strategy, cfg.Cassandra.CreateOpts, numLevels, levelTTLSeconds, workQueueTTLSeconds); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	loggers.System.LogInfo("schema ensured for %d rollup levels", numLevels)

	var metrics *telemetry.Metrics
	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		reg.MustRegister(collectors.NewGoCollector())
		metrics = telemetry.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		loggers.System.LogInfo("prometheus metrics enabled")
	}

	var tracingShutdown func(context.Context) error
	if cfg.Telemetry.Tracing.Enabled {
		endpoint := cfg.Telemetry.Tracing.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		sampleRate := cfg.Telemetry.Tracing.SampleRate
		if sampleRate == 0 {
			sampleRate = 0.1
		}
		shutdown, err := telemetry.SetupTracing(ctx, endpoint, sampleRate)
		if err != nil {
			loggers.System.LogWarn("tracing setup failed, continuing without tracing: %v", err)
		} else {
			tracingShutdown = shutdown
			loggers.System.LogInfo("opentelemetry tracing enabled at %s", endpoint)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer redisClient.Close()
		loggers.System.LogInfo("shared query text cross-instance cache enabled at %s", cfg.Redis.Addr)
	}

	sharedStore, err := sharedquery.New(session, cfg.Cassandra.Keyspace, cfg.SharedText.TruncationThreshold, cfg.SharedText.TTLRefreshWindow, cfg.SharedText.LocalCacheSize, redisClient, metrics, loggers.Store)
	if err != nil {
		return fmt.Errorf("build shared query text store: %w", err)
	}

	st := store.New(session, cfg.Cassandra.Keyspace, catalog, numLevels, metrics, loggers.Store)
	queue := workqueue.New(session, cfg.Cassandra.Keyspace)
	chain := agentrollup.NewStaticResolver(cfg.ParentMap())

	w := writer.New(st, catalog, queue, sharedStore, chain, cfg.Rollup, metrics, loggers.Store)
	_ = w // exercised by the gRPC ingestion surface, out of scope for this daemon; constructed here so schema/session wiring is validated at startup.

	engine := rollup.New(st, catalog, queue, cfg.Rollup, metrics, loggers.Rollup)
	smallestInterval := cfg.Rollup.Levels[0].Interval
	for _, lvl := range cfg.Rollup.Levels[1:] {
		if lvl.Interval < smallestInterval {
			smallestInterval = lvl.Interval
		}
	}
	scheduler := rollup.NewScheduler(engine, chain, smallestInterval, loggers.Rollup)

	schedulerDone := make(chan error, 1)
	go func() { schedulerDone <- scheduler.Run(ctx) }()
	loggers.System.LogInfo("rollup scheduler running with tick interval %s", smallestInterval)

	var metricsSrv *http.Server
	if metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		metricsSrv = &http.Server{Addr: ":9090", Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				loggers.System.LogError("metrics server: %v", err)
			}
		}()
	}

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, syscall.SIGINT, syscall.SIGTERM)

	loggers.System.LogInfo("rollupd ready")
runLoop:
	for {
		select {
		case <-sighup:
			loggers.System.LogInfo("received SIGHUP, reopening logs")
			loggers.Reopen()
		case sig := <-sigterm:
			loggers.System.LogInfo("received %v, shutting down", sig)
			break runLoop
		case err := <-schedulerDone:
			cancel()
			return fmt.Errorf("rollup scheduler exited: %w", err)
		}
	}

	cancel()
	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsSrv.Shutdown(shutdownCtx)
	}
	<-schedulerDone

	if tracingShutdown != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracingShutdown(shutdownCtx); err != nil {
			loggers.System.LogError("tracing shutdown: %v", err)
		}
	}

	loggers.System.LogInfo("rollupd stopped")
	return nil
}

func loadConfig(confFile string) (*config.Config, error) {
	if confFile == "" {
		return config.Default(), nil
	}
	return config.Load(confFile)
}
