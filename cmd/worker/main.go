package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mwangaza7/message-scheduler-backend/internal/config"
	"github.com/mwangaza7/message-scheduler-backend/internal/db"
	"github.com/mwangaza7/message-scheduler-backend/internal/gateway"
	"github.com/mwangaza7/message-scheduler-backend/internal/models"
	"github.com/mwangaza7/message-scheduler-backend/internal/queue"
	"github.com/mwangaza7/message-scheduler-backend/internal/repository"
	"github.com/mwangaza7/message-scheduler-backend/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting delivery worker")

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
		URL:          cfg.Queue.RedisURL,
		QueueName:    cfg.Queue.QueueName,
		JobTimeLimit: cfg.Worker.JobTimeLimit,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer queueClient.Close()

	scheduleRepo := repository.NewScheduleRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	groupRepo := repository.NewGroupRepository(database.DB)

	var sender gateway.Sender
	if cfg.Gateway.UseMock {
		logger.Warn("using mock delivery gateway")
		sender = gateway.NewMockSender(cfg.Gateway.MockSuccessRate)
	} else {
		sender = gateway.NewWhatsAppClient(gateway.WhatsAppConfig{
			AccessToken:   cfg.Gateway.AccessToken,
			PhoneNumberID: cfg.Gateway.PhoneNumberID,
			APIVersion:    cfg.Gateway.APIVersion,
			SendTimeout:   cfg.Gateway.SendTimeout,
		})
	}

	processor := worker.NewProcessor(
		scheduleRepo,
		messageRepo,
		groupRepo,
		sender,
		cfg.Gateway.SendTimeout,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumerErrors := make(chan error, 1)
	go func() {
		logger.Info("starting queue consumer",
			slog.Int("concurrency", cfg.Worker.Concurrency),
		)

		handler := func(ctx context.Context, job *models.DispatchJob) error {
			return processor.Process(ctx, job)
		}

		consumerErrors <- queueClient.Consume(ctx, handler, cfg.Worker.Concurrency)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-consumerErrors:
		if err != nil && err != context.Canceled {
			logger.Error("consumer error", slog.String("error", err.Error()))
			os.Exit(1)
		}

	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))

		cancel()

		// Give in-flight jobs time to finish their final commit
		time.Sleep(5 * time.Second)

		logger.Info("worker stopped gracefully")
	}
}
