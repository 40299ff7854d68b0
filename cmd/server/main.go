// Package main is the entry point for the market-data ingestion and
// analysis-task dispatch platform described in spec.md. It loads
// configuration, wires every dependency through internal/di, starts the
// HTTP server, the cron-driven ingestion/quote/sweep jobs and the
// background zombie sweeper, then blocks until it receives a shutdown
// signal.
//
// Grounded on the teacher's cmd/server/main.go startup sequence: load
// config, build the logger, wire the DI container, start the server in
// a goroutine, start background monitors, wait for SIGINT/SIGTERM, tear
// everything down in reverse order.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketpulse/ingestor/internal/config"
	"github.com/marketpulse/ingestor/internal/di"
	"github.com/marketpulse/ingestor/internal/scheduler"
	"github.com/marketpulse/ingestor/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Msg("starting market-data ingestion platform")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire dependencies")
	}
	defer container.Close(context.Background())

	registerJobs(container, cfg, log)
	container.Scheduler.Start()
	log.Info().Msg("scheduler started")

	container.Sweeper.Start()
	log.Info().Msg("zombie sweeper started")

	container.Orchestrator.Start()
	log.Info().Msg("analysis worker pool started")

	go func() {
		if err := container.Server.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	container.Sweeper.Stop()
	container.Orchestrator.Stop()
	container.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := container.Server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// registerJobs attaches the periodic ingestion/quote/sweep jobs to the
// scheduler on the cadences spec.md implies: the quote pipeline on its
// configured tick interval, basics/financial sync once daily after the
// close, zombie sweeping as a clock-aligned companion to the
// sweeper's own ticker.
func registerJobs(c *di.Container, cfg *config.Config, log zerolog.Logger) {
	quoteInterval := time.Duration(cfg.QuotesIngestIntervalSeconds) * time.Second
	quoteSchedule := "@every " + quoteInterval.String()
	if err := c.Scheduler.AddJob(quoteSchedule, scheduler.NewQuotePipelineJob(c.QuotePipeline)); err != nil {
		log.Error().Err(err).Msg("failed to register quote pipeline job")
	}
	if err := c.Scheduler.AddJob("0 0 18 * * MON-FRI", scheduler.NewMultiSourceBasicsSyncJob(c.MultiSourceBasicsSync)); err != nil {
		log.Error().Err(err).Msg("failed to register basics sync job")
	}
	if err := c.Scheduler.AddJob("0 30 18 * * MON-FRI", scheduler.NewFinancialSyncJob(c.FinancialSync)); err != nil {
		log.Error().Err(err).Msg("failed to register financial sync job")
	}
	if err := c.Scheduler.AddJob("0 0 19 * * MON-FRI", scheduler.NewZombieSweepJob(c.Queue)); err != nil {
		log.Error().Err(err).Msg("failed to register zombie sweep job")
	}
}
