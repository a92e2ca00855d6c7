package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mwangaza7/message-scheduler-backend/internal/config"
	"github.com/mwangaza7/message-scheduler-backend/internal/db"
	"github.com/mwangaza7/message-scheduler-backend/internal/dispatch"
	"github.com/mwangaza7/message-scheduler-backend/internal/monitor"
	"github.com/mwangaza7/message-scheduler-backend/internal/queue"
	"github.com/mwangaza7/message-scheduler-backend/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting dispatcher")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	database, err := db.New(db.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	logger.Info("connected to database")

	queueClient, err := queue.NewRedisClient(queue.RedisConfig{
		URL:       cfg.Queue.RedisURL,
		QueueName: cfg.Queue.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer queueClient.Close()

	scheduleRepo := repository.NewScheduleRepository(database.DB)

	poller := dispatch.NewPoller(scheduleRepo, queueClient, logger)
	sweeper := dispatch.NewSweeper(scheduleRepo, queueClient, cfg.Dispatch.StaleThreshold, logger)
	timingMonitor := monitor.New(scheduleRepo, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cron.New()

	pollSpec := fmt.Sprintf("@every %s", cfg.Dispatch.PollInterval)
	if _, err := c.AddFunc(pollSpec, func() {
		tickCtx, tickCancel := context.WithTimeout(ctx, cfg.Dispatch.PollInterval)
		defer tickCancel()

		if err := poller.Tick(tickCtx); err != nil {
			logger.Error("poll tick failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		logger.Error("failed to register poll job", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sweepSpec := fmt.Sprintf("@every %s", cfg.Dispatch.SweepInterval)
	if _, err := c.AddFunc(sweepSpec, func() {
		sweepCtx, sweepCancel := context.WithTimeout(ctx, cfg.Dispatch.SweepInterval)
		defer sweepCancel()

		if err := sweeper.Sweep(sweepCtx); err != nil {
			logger.Error("recovery sweep failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		logger.Error("failed to register sweep job", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if _, err := c.AddFunc("@hourly", func() {
		reportCtx, reportCancel := context.WithTimeout(ctx, time.Minute)
		defer reportCancel()

		if _, err := timingMonitor.Analyze(reportCtx, time.Hour); err != nil {
			logger.Error("timing report failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		logger.Error("failed to register timing report", slog.String("error", err.Error()))
		os.Exit(1)
	}

	c.Start()
	logger.Info("dispatcher running",
		slog.Duration("poll_interval", cfg.Dispatch.PollInterval),
		slog.Duration("sweep_interval", cfg.Dispatch.SweepInterval),
		slog.Duration("stale_threshold", cfg.Dispatch.StaleThreshold),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutting down dispatcher", slog.String("signal", sig.String()))

	cancel()
	stopCtx := c.Stop()

	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("dispatcher jobs did not finish before shutdown timeout")
	}

	logger.Info("dispatcher stopped gracefully")
}
