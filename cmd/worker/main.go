package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/nextlogic/remix-api/internal/config"
	"github.com/nextlogic/remix-api/internal/email"
	"github.com/nextlogic/remix-api/internal/repository/postgres"
	"github.com/nextlogic/remix-api/internal/worker"
	"github.com/nextlogic/remix-api/pkg/logger"
	"github.com/nextlogic/remix-api/pkg/metrics"
)

func setupHealthCheck(port int, db *sqlx.DB, registry *prometheus.Registry, logger *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err, "Health check server failed")
		}
	}()
	return srv
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	baseLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	})
	log.Logger = baseLogger.Zerolog()
	workerID := fmt.Sprintf("worker-%s", generateWorkerID())
	appLogger := baseLogger.WithFields(map[string]interface{}{"worker_id": workerID})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(cfg.Metrics.Namespace, "worker", registry)

	mailer, err := email.NewMailer(ctx, cfg.Mail, appLogger)
	if err != nil {
		appLogger.Fatal(err, "Failed to initialize mailer")
	}

	// Initialize repositories
	baseRepo := postgres.NewBaseRepository(db)
	contactRepo := postgres.NewContactRepository(baseRepo)

	dispatcher := worker.NewMailDispatcher(contactRepo, mailer, worker.MailDispatcherConfig{
		BatchSize:    cfg.Mail.BatchSize,
		PollInterval: cfg.Mail.PollInterval,
		MaxAttempts:  cfg.Mail.MaxAttempts,
		From:         cfg.Mail.From,
		To:           cfg.Mail.To,
	}, appLogger, appMetrics)
	cleanup := worker.NewMailCleanupWorker(contactRepo, cfg.Mail.Retention, cfg.Mail.CleanupInterval, appLogger)

	// Setup health check endpoints
	health := setupHealthCheck(cfg.Worker.HealthPort, db, registry, appLogger)

	appLogger.Info("Worker started", "driver", cfg.Mail.Driver)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcher.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down...")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "Health check server forced to shutdown")
	}
}

func generateWorkerID() string {
	// Generate a unique worker ID using hostname and timestamp
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, time.Now().UnixNano())
}
