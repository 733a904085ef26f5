package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"lbx/config"
	"lbx/events"
	"lbx/infrastructure"
	"lbx/infrastructure/observability"
	"lbx/server"
	"lbx/storage"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging applies the configured level and picks JSON output in production
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	log.WithFields(log.Fields{
		"environment": cfg.Environment,
		"storage":     cfg.StorageDriver,
		"sink":        cfg.EventSink,
	}).Info("Starting lbx...")

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	eventBus := events.NewBus()

	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		log.WithError(err).Warn("Failed to initialize metrics, continuing without them")
	} else {
		observability.GetMetrics().Subscribe(eventBus)
	}

	subjectMapper := infrastructure.NewEventSubjectMapper()
	publisher, err := infrastructure.NewMessagePublisher(ctx, cfg, subjectMapper)
	if err != nil {
		_ = store.Close(context.Background())
		return fmt.Errorf("failed to initialize event sink: %w", err)
	}
	infrastructure.NewEventForwarder(publisher, subjectMapper, observability.GetMetrics()).Subscribe(eventBus)

	srv := server.New(cfg, store, server.NewServices(cfg, store, eventBus))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	log.WithFields(log.Fields{
		"addr":        cfg.Addr(),
		"storageMode": store.Mode,
		"durable":     store.Durable(),
	}).Info("lbx is running")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}

	log.Info("Shutting down lbx...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error stopping HTTP server")
	}
	if err := publisher.Close(); err != nil {
		log.WithError(err).Error("Error closing event sink")
	}
	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics")
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.WithError(err).Error("Error closing storage")
	}

	log.Info("Shutdown completed")
	return runErr
}
