package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Queue    QueueConfig
	API      APIConfig
	Worker   WorkerConfig
	Dispatch DispatchConfig
	Gateway  GatewayConfig
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// QueueConfig holds queue configuration (Redis)
type QueueConfig struct {
	RedisURL  string
	QueueName string
}

// APIConfig holds API server configuration
type APIConfig struct {
	Port int
}

// WorkerConfig holds delivery worker configuration
type WorkerConfig struct {
	Concurrency  int
	JobTimeLimit time.Duration
}

// DispatchConfig holds poller and recovery sweep configuration
type DispatchConfig struct {
	PollInterval   time.Duration
	SweepInterval  time.Duration
	StaleThreshold time.Duration
	// CreateGrace is how far in the past a scheduled_time may be at
	// creation and still be accepted as immediately due.
	CreateGrace time.Duration
}

// GatewayConfig holds delivery gateway (WhatsApp Cloud API) configuration
type GatewayConfig struct {
	AccessToken   string
	PhoneNumberID string
	APIVersion    string
	SendTimeout   time.Duration
	// UseMock substitutes the fake sender for local development
	UseMock         bool
	MockSuccessRate float64
}

// Load reads configuration from environment variables. A .env file in
// the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	apiPort, err := strconv.Atoi(getEnv("API_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_PORT: %w", err)
	}

	workerConcurrency, err := strconv.Atoi(getEnv("WORKER_CONCURRENCY", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	jobTimeLimit, err := getEnvDuration("JOB_TIME_LIMIT", 300*time.Second)
	if err != nil {
		return nil, err
	}

	pollInterval, err := getEnvDuration("POLL_INTERVAL", 10*time.Second)
	if err != nil {
		return nil, err
	}

	sweepInterval, err := getEnvDuration("SWEEP_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, err
	}

	staleThreshold, err := getEnvDuration("STALE_THRESHOLD", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	createGrace, err := getEnvDuration("CREATE_GRACE", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	sendTimeout, err := getEnvDuration("GATEWAY_SEND_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	mockRate, err := strconv.ParseFloat(getEnv("GATEWAY_MOCK_SUCCESS_RATE", "0.92"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_MOCK_SUCCESS_RATE: %w", err)
	}

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "scheduler"),
			Password: getEnv("DB_PASSWORD", "scheduler"),
			DBName:   getEnv("DB_NAME", "scheduler"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Queue: QueueConfig{
			RedisURL:  getEnv("REDIS_URL", "redis://localhost:6379/0"),
			QueueName: getEnv("QUEUE_NAME", "scheduled_sends"),
		},
		API: APIConfig{
			Port: apiPort,
		},
		Worker: WorkerConfig{
			Concurrency:  workerConcurrency,
			JobTimeLimit: jobTimeLimit,
		},
		Dispatch: DispatchConfig{
			PollInterval:   pollInterval,
			SweepInterval:  sweepInterval,
			StaleThreshold: staleThreshold,
			CreateGrace:    createGrace,
		},
		Gateway: GatewayConfig{
			AccessToken:     os.Getenv("WHATSAPP_ACCESS_TOKEN"),
			PhoneNumberID:   os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			APIVersion:      getEnv("WHATSAPP_API_VERSION", "v18.0"),
			SendTimeout:     sendTimeout,
			UseMock:         getEnv("GATEWAY_USE_MOCK", "false") == "true",
			MockSuccessRate: mockRate,
		},
	}, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration parses a duration environment variable ("10s", "5m")
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
