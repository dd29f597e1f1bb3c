package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quorum/internal/adapters/config"
	"quorum/internal/adapters/errors/noop"
	"quorum/internal/adapters/errors/sentry"
	"quorum/internal/adapters/postgres"
	redisadapter "quorum/internal/adapters/redis"
	"quorum/internal/agents"
	"quorum/internal/analysis"
	"quorum/internal/api/analyses"
	"quorum/internal/api/health"
	"quorum/internal/metrics"
	"quorum/internal/workers"
	"quorum/internal/workflow"
	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := initLogger(cfg); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Register()

	// Initialize database connections
	db := initDatabases(cfg, log)
	defer db.Close()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the agent pool
	registry := initRegistry(ctx, db, log)

	// Initialize dispatch and workflow
	dispatcher := initDispatcher(cfg, db, registry)
	engine := workflow.NewEngine(dispatcher)
	service := analysis.NewService(engine, redisadapter.NewAnalysisStore(db.Redis), cfg.Analysis)

	// Initialize workers
	scheduler, monitor := initWorkers(cfg, registry, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	// Start HTTP server (analyses + health + metrics)
	server := startHTTPServer(cfg, db, registry, monitor, service, log)

	log.Info("System initialized successfully")

	// Wait for shutdown signal
	waitForShutdown(ctx, cancel, scheduler, server, errorTracker, log)
}

// Database bundles the storage connections.
type Database struct {
	Postgres *postgres.Client
	Redis    *redisadapter.Client
}

// Close closes all storage connections.
func (d *Database) Close() {
	if d.Postgres != nil {
		d.Postgres.Close()
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
}

// loadConfig loads application configuration from environment
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// initLogger initializes structured logging
func initLogger(cfg *config.Config) error {
	return logger.Init(cfg.App.LogLevel, cfg.App.Env)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// initDatabases initializes database connections (PostgreSQL, Redis)
func initDatabases(cfg *config.Config, log *logger.Logger) *Database {
	log.Info("Initializing databases...")

	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	redisClient, err := redisadapter.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	log.Info("Databases initialized")
	return &Database{
		Postgres: pgClient,
		Redis:    redisClient,
	}
}

// initRegistry builds the agent registry and registers the default pool.
func initRegistry(ctx context.Context, db *Database, log *logger.Logger) *agents.Registry {
	log.Info("Initializing agent registry...")

	registry := agents.NewRegistry(
		redisadapter.NewDirectory(db.Redis),
		postgres.NewAgentStore(db.Postgres.DB()),
	)

	// TODO: replace baseline workers with provider-backed implementations.
	if err := agents.RegisterDefaults(ctx, registry, baselineWorker); err != nil {
		log.Fatalf("Failed to register default agents: %v", err)
	}

	log.Infof("Agent registry initialized (%d agents)", registry.Count())
	return registry
}

// baselineWorker produces a worker emitting structured placeholder reports.
func baselineWorker(agentType agents.AgentType) (agents.Worker, error) {
	task := agents.TaskTypeFor(agentType)
	return &agents.FuncWorker{
		Tasks: []agents.TaskType{task},
		Handle: func(ctx context.Context, taskCtx *agents.TaskContext) (map[string]interface{}, error) {
			return map[string]interface{}{
				"report": fmt.Sprintf("%s baseline output for %s (%s)", agentType, taskCtx.Symbol, taskCtx.AnalysisDate),
			}, nil
		},
	}, nil
}

// initDispatcher builds the load balancer and dispatcher.
func initDispatcher(cfg *config.Config, db *Database, registry *agents.Registry) *agents.Dispatcher {
	balancer := agents.NewLoadBalancer(agents.ParseStrategy(cfg.Dispatch.Strategy))
	return agents.NewDispatcher(registry, balancer, postgres.NewAgentStore(db.Postgres.DB()))
}

// initWorkers initializes background workers
func initWorkers(cfg *config.Config, registry *agents.Registry, log *logger.Logger) (*workers.Scheduler, *workers.HealthMonitorWorker) {
	log.Info("Initializing workers...")

	monitor := workers.NewHealthMonitorWorker(registry, cfg.Monitor.HealthCheckInterval)

	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(monitor)
	scheduler.RegisterWorker(workers.NewDirectoryRefreshWorker(
		registry,
		cfg.Monitor.DirectoryRefreshInterval,
		cfg.Monitor.HeartbeatTTL,
	))

	log.Info("Workers initialized")
	return scheduler, monitor
}

// startHTTPServer serves the health and metrics endpoints.
func startHTTPServer(
	cfg *config.Config,
	db *Database,
	registry *agents.Registry,
	monitor *workers.HealthMonitorWorker,
	service *analysis.Service,
	log *logger.Logger,
) *http.Server {
	healthHandler := health.New(
		log,
		db.Postgres.DB(),
		db.Redis.Client(),
		registry,
		monitor,
		cfg.App.Name,
		version,
	)

	mux := http.NewServeMux()
	analyses.New(service, log).Register(mux)
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/health/live", healthHandler.HandleLiveness)
	mux.HandleFunc("/health/ready", healthHandler.HandleReadiness)
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:    cfg.App.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Infof("HTTP server listening on %s", cfg.App.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("HTTP server error: %v", err)
		}
	}()

	return server
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	scheduler *workers.Scheduler,
	server *http.Server,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	// Graceful shutdown
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP server shutdown: %v", err)
	}

	if err := scheduler.Stop(); err != nil {
		log.Warnf("Scheduler stop: %v", err)
	}

	// Flush error tracker
	if errorTracker != nil {
		if err := errorTracker.Flush(ctx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
