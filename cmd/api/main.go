package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sentinel/config"
	"sentinel/internals/app"
	"sentinel/internals/server"
	"sentinel/pkg/db"
	"sentinel/pkg/logger"
)

func configPath() string {
	if p := os.Getenv("SENTINEL_CONFIG"); p != "" {
		return p
	}
	return "env.yaml"
}

func main() {
	// Load envs
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// Done is closed on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Base/global logger
	log := logger.Init(cfg)
	log.Info().Msg("logger initialized")

	// Initialize DB Pool
	dbPool, err := db.ConnectToDB(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize db pool")
	}
	if err := db.Migrate(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}
	log.Info().Msg("database pool initialized")

	// Inject Dependencies
	container, err := app.NewContainer(ctx, dbPool, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dependencies")
	}
	log.Info().Msg("dependencies initialized")

	// notification workers outlive the signal so queued alerts still go out while draining
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	// start our heroes
	app.StartTransport(workerCtx, container)
	go container.RetryWorker.Run(ctx)
	go container.Reclaimer.Run(ctx)

	n, err := container.MonitorSvc.ScheduleAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule monitors")
	}
	container.Scheduler.Start()
	log.Info().Int("monitors", n).Msg("all heroes initialized")

	// Register Routes
	router := app.RegisterRoutes(container)
	log.Info().Msg("routes registered")

	// Runs in a separate goroutine in background and receives requests
	srv := server.New(fmt.Sprintf(":%d", cfg.Port), router, log)
	srv.Start()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	// 1. Stop HTTP server (stop accepting requests)
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	// 2. Shutdown background workers & infra, with buffer time to drain
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := container.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("dependencies shutdown failed")
	}

	// Shutdown done
	log.Info().Msg("graceful shutdown complete")
}
