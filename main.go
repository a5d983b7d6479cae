package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retryq/api"
	"retryq/common"
	"retryq/configs"
	"retryq/handlers"
	"retryq/jobs/cleanup"
	jobsmetrics "retryq/jobs/metrics"
	"retryq/jobs/worker"
	"retryq/metrics"
	"retryq/services"
	"retryq/store"
	"retryq/ui"
	"retryq/utils"

	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/go-chi/chi/v5"
	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog/log"
)

const (
	webhookKind = "webhook"
)

func main() {
	authSecret := getAuthSecret()
	if authSecret == "" {
		log.Fatal().Msg("auth secret is not provided: either set RETRYQ_AUTH_SECRET environment variable or pass it as a command line argument --auth-secret")
		panic("auth secret is not provided: either set RETRYQ_AUTH_SECRET environment variable or pass it as a command line argument --auth-secret")
	}

	appConfigs := configs.NewAppConfig()
	metricsService := metrics.NewMetricsService(true)

	queueStore, err := newQueueStore()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create queue store")
		panic(err)
	}
	defer queueStore.Close()

	// messages left in processing by a previous run would otherwise be lost
	reclaimed, err := queueStore.ReclaimProcessing(time.Now().UnixMilli(), context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to reclaim processing messages")
		panic(err)
	}
	if reclaimed > 0 {
		log.Info().Int64("reclaimed", reclaimed).Msg("reclaimed messages stuck in processing")
	}

	queueService := services.NewQueueService(queueStore, appConfigs, metricsService)
	queueService.RegisterHandler(webhookKind, handlers.NewWebhookHandler(appConfigs.WebhookTimeout))

	monitoringService := services.NewMonitoringService(queueStore)
	sessionsService := services.NewSessionsService()
	defer sessionsService.Close()

	queueWorker := worker.NewWorker(queueService, appConfigs.WorkerIntervalMs)
	queueWorker.Start()
	defer queueWorker.Stop()

	queueDepthMetricsJob := jobsmetrics.NewQueueDepthMetricsJob(metricsService, queueService, appConfigs.JobsIntervals.QueueDepthMetricsMs)
	defer queueDepthMetricsJob.Close()
	expiredDlqCleanupJob := cleanup.NewExpiredDlqMessagesCleanupJob(queueStore, metricsService, appConfigs.DlqTtlMs, appConfigs.JobsIntervals.ExpiredDlqCleanupMs)
	defer expiredDlqCleanupJob.Close()

	apiRouter := api.NewRouter(queueService, monitoringService, authSecret)
	uiRouter := ui.NewRouter(queueService, sessionsService, authSecret)

	rootRouter := chi.NewRouter()
	rootRouter.Mount("/", apiRouter.NewRouter())
	rootRouter.Mount("/ui", uiRouter.NewRouter())

	retryqServer := &http.Server{
		Addr:              getServerAddr(),
		Handler:           http.TimeoutHandler(rootRouter, appConfigs.ServerConfig.Timeouts.Handle, "timeout"),
		WriteTimeout:      appConfigs.ServerConfig.Timeouts.Write,
		ReadTimeout:       appConfigs.ServerConfig.Timeouts.Read,
		ReadHeaderTimeout: appConfigs.ServerConfig.Timeouts.ReadHeader,
		IdleTimeout:       appConfigs.ServerConfig.Timeouts.Idle,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		err := retryqServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			shutdownCh <- syscall.SIGTERM
		}
	}()
	log.Info().Str("addr", retryqServer.Addr).Msg("retryq server started")

	<-shutdownCh
	log.Info().Msg("server shutdown requested")

	shutdownCtx, cancelFunc := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFunc()
	if err := retryqServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("failed to shut down server gracefully")
		if err := retryqServer.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close server")
		}
	}
}

func getAuthSecret() string {
	authSecret := os.Getenv("RETRYQ_AUTH_SECRET")
	if authSecret != "" {
		return authSecret
	}

	var flagAuthSecret string
	flag.StringVar(&flagAuthSecret, "auth-secret", "", "Authentication secret")
	flag.Parse()

	return flagAuthSecret
}

func getServerAddr() string {
	if addr := os.Getenv("RETRYQ_ADDR"); addr != "" {
		return addr
	}
	return "localhost:8080"
}

// newQueueStore picks the storage backend: in-memory by default, sqlite when
// RETRYQ_STORAGE=sqlite for messages that must survive restarts.
func newQueueStore() (store.Store, error) {
	storage := os.Getenv("RETRYQ_STORAGE")
	if storage == "" {
		storage = common.MemoryStorage
	}
	if !common.SupportedStorages[storage] {
		return nil, fmt.Errorf("unsupported storage backend: %s", storage)
	}

	if storage == common.MemoryStorage {
		return store.NewMemoryStore(), nil
	}

	dbPath, err := utils.GetOrCreateDefaultDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get or create default database path: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		return nil, err
	}

	return store.NewSQLiteStore(dbPath)
}

func runMigrations(dbPath string) error {
	// x-no-tx-wrap=true to disable transaction wrapping for PRAGMA statements, as otherwise it fails:
	// https://github.com/golang-migrate/migrate/issues/346
	dbURL := fmt.Sprintf("sqlite3://file:%s?cache=shared&mode=rwc&x-no-tx-wrap=true", dbPath)

	m, err := migrate.New("file://db/migrations", dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	err = m.Up()
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("no migrations to run")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Msg("migrations applied successfully")
	return nil
}
