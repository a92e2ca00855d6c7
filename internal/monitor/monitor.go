package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwangaza7/message-scheduler-backend/internal/repository"
)

// Delay buckets for the timing-accuracy report
const (
	onTimeLimit      = 10 * time.Second
	slightLimit      = 30 * time.Second
	moderateLimit    = 60 * time.Second
	significantLimit = 3 * time.Minute
)

// Report summarizes how far behind their scheduled time completed
// sends actually went out.
type Report struct {
	Analyzed    int           `json:"analyzed"`
	AvgDelay    time.Duration `json:"avg_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	MinDelay    time.Duration `json:"min_delay"`
	OnTime      int           `json:"on_time"`      // <= 10s
	Slight      int           `json:"slight"`       // 10-30s
	Moderate    int           `json:"moderate"`     // 30-60s
	Significant int           `json:"significant"`  // 1-3m
	Severe      int           `json:"severe"`       // > 3m
}

// Monitor produces timing-accuracy reports over completed sends.
// Delivery latency is bounded by the poll interval by design; the
// report makes that bound observable.
type Monitor struct {
	scheduleRepo repository.ScheduleRepository
	logger       *slog.Logger
	now          func() time.Time
}

// New creates a new timing monitor
func New(scheduleRepo repository.ScheduleRepository, logger *slog.Logger) *Monitor {
	return &Monitor{
		scheduleRepo: scheduleRepo,
		logger:       logger,
		now:          time.Now,
	}
}

// Analyze builds a timing report over sends completed within lookback
func (m *Monitor) Analyze(ctx context.Context, lookback time.Duration) (*Report, error) {
	since := m.now().UTC().Add(-lookback)

	completed, err := m.scheduleRepo.ListCompletedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed sends: %w", err)
	}

	report := &Report{}
	var total time.Duration

	for _, schedule := range completed {
		if schedule.SentAt == nil {
			continue
		}

		delay := schedule.SentAt.Sub(schedule.ScheduledTime)
		if report.Analyzed == 0 || delay < report.MinDelay {
			report.MinDelay = delay
		}
		if delay > report.MaxDelay {
			report.MaxDelay = delay
		}
		total += delay
		report.Analyzed++

		switch {
		case delay <= onTimeLimit:
			report.OnTime++
		case delay <= slightLimit:
			report.Slight++
		case delay <= moderateLimit:
			report.Moderate++
		case delay <= significantLimit:
			report.Significant++
		default:
			report.Severe++
			m.logger.Warn("severe delivery delay",
				slog.Int64("schedule_id", schedule.ID),
				slog.Duration("delay", delay),
			)
		}
	}

	if report.Analyzed > 0 {
		report.AvgDelay = total / time.Duration(report.Analyzed)
	}

	m.logger.Info("timing accuracy report",
		slog.Int("analyzed", report.Analyzed),
		slog.Duration("avg_delay", report.AvgDelay),
		slog.Duration("max_delay", report.MaxDelay),
		slog.Int("on_time", report.OnTime),
		slog.Int("severe", report.Severe),
	)

	return report, nil
}
