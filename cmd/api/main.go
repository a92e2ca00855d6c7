package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mwangaza7/message-scheduler-backend/internal/config"
	"github.com/mwangaza7/message-scheduler-backend/internal/db"
	"github.com/mwangaza7/message-scheduler-backend/internal/handler"
	"github.com/mwangaza7/message-scheduler-backend/internal/queue"
	"github.com/mwangaza7/message-scheduler-backend/internal/repository"
	"github.com/mwangaza7/message-scheduler-backend/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting scheduler API server")

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

	if err := database.Migrate(context.Background()); err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

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

	// Initialize repositories
	scheduleRepo := repository.NewScheduleRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	recipientRepo := repository.NewRecipientRepository(database.DB)
	groupRepo := repository.NewGroupRepository(database.DB)

	// Initialize services
	scheduleSvc := service.NewScheduleService(
		scheduleRepo,
		messageRepo,
		groupRepo,
		queueClient,
		cfg.Dispatch.CreateGrace,
		logger,
	)
	messageSvc := service.NewMessageService(messageRepo, logger)
	recipientSvc := service.NewRecipientService(recipientRepo, groupRepo, logger)

	// Initialize handlers
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, logger)
	messageHandler := handler.NewMessageHandler(messageSvc, logger)
	recipientHandler := handler.NewRecipientHandler(recipientSvc, logger)
	healthHandler := handler.NewHealthHandler(database.DB, queueClient, logger)

	r := chi.NewRouter()

	r.Use(handler.RecoveryMiddleware(logger))
	r.Use(handler.LoggingMiddleware(logger))
	r.Use(handler.CORSMiddleware)

	r.Get("/health", healthHandler.Health)
	r.Route("/schedules", scheduleHandler.Routes)
	r.Route("/messages", messageHandler.Routes)
	r.Route("/recipients", recipientHandler.Routes)

	addr := fmt.Sprintf(":%d", cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", slog.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)

	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown failed", slog.String("error", err.Error()))
			os.Exit(1)
		}

		logger.Info("server stopped gracefully")
	}
}
