package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mwangaza7/message-scheduler-backend/internal/models"
)

// redisClient implements Client using a Redis list
type redisClient struct {
	client       *redis.Client
	queueName    string
	jobTimeLimit time.Duration
	logger       *slog.Logger
}

// RedisConfig holds Redis queue configuration
type RedisConfig struct {
	URL       string
	QueueName string
	// JobTimeLimit bounds the runtime of a single dispatch job so a
	// runaway worker cannot hold a job slot indefinitely.
	JobTimeLimit time.Duration
}

// NewRedisClient creates a new Redis queue client
func NewRedisClient(cfg RedisConfig, logger *slog.Logger) (Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis",
		slog.String("addr", opts.Addr),
		slog.String("queue", cfg.QueueName),
	)

	return &redisClient{
		client:       client,
		queueName:    cfg.QueueName,
		jobTimeLimit: cfg.JobTimeLimit,
		logger:       logger,
	}, nil
}

// Enqueue publishes a dispatch job and returns its handle
func (c *redisClient) Enqueue(ctx context.Context, scheduleID int64) (string, error) {
	job := &models.DispatchJob{
		ScheduleID: scheduleID,
		Handle:     uuid.NewString(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	// LPUSH paired with BRPOP on the consumer side gives FIFO order
	if err := c.client.LPush(ctx, c.queueName, data).Err(); err != nil {
		return "", fmt.Errorf("failed to push job to queue: %w", err)
	}

	c.logger.Debug("job enqueued",
		slog.Int64("schedule_id", job.ScheduleID),
		slog.String("handle", job.Handle),
	)

	return job.Handle, nil
}

// Consume receives dispatch jobs from the queue and processes them with
// the handler. concurrency is clamped to [1, 10].
func (c *redisClient) Consume(ctx context.Context, handler JobHandler, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 10 {
		concurrency = 10
	}

	c.logger.Info("starting queue consumer",
		slog.String("queue", c.queueName),
		slog.Int("concurrency", concurrency),
	)

	// Semaphore to limit concurrent processing
	semaphore := make(chan struct{}, concurrency)

	drain := func() {
		for i := 0; i < concurrency; i++ {
			semaphore <- struct{}{}
		}
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped by context, waiting for in-flight jobs")
			drain()
			return ctx.Err()

		default:
			result, err := c.client.BRPop(ctx, 1*time.Second, c.queueName).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					c.logger.Info("consumer stopped by context")
					drain()
					return err
				}
				c.logger.Error("failed to pop from queue", slog.String("error", err.Error()))
				time.Sleep(1 * time.Second)
				continue
			}

			// BRPOP returns [queueName, value]
			if len(result) < 2 {
				c.logger.Error("unexpected BRPOP result format")
				continue
			}

			var job models.DispatchJob
			if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
				c.logger.Error("failed to unmarshal job",
					slog.String("error", err.Error()),
					slog.String("data", result[1]),
				)
				continue
			}

			semaphore <- struct{}{}

			go func(job models.DispatchJob) {
				defer func() { <-semaphore }()

				jobCtx := ctx
				if c.jobTimeLimit > 0 {
					var cancel context.CancelFunc
					jobCtx, cancel = context.WithTimeout(ctx, c.jobTimeLimit)
					defer cancel()
				}

				if err := handler(jobCtx, &job); err != nil {
					c.logger.Error("handler failed to process job",
						slog.Int64("schedule_id", job.ScheduleID),
						slog.String("handle", job.Handle),
						slog.String("error", err.Error()),
					)
					// The job is already popped; the recovery sweep
					// re-enqueues sends that never reached a terminal
					// status.
				}
			}(job)
		}
	}
}

// Close closes the Redis connection
func (c *redisClient) Close() error {
	c.logger.Info("closing Redis connection")
	return c.client.Close()
}

// Health checks if Redis is healthy
func (c *redisClient) Health(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Length returns the number of jobs waiting in the queue
func (c *redisClient) Length(ctx context.Context) (int64, error) {
	length, err := c.client.LLen(ctx, c.queueName).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return length, nil
}
