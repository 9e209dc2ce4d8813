// Package scheduler runs the background alert poller.
//
// The poller periodically reads the weather for every user holding a push
// subscription. Reading the weather for a user evaluates their alert
// preferences and, when something triggers, pushes the alert, so a cycle is
// just a bounded fan-out of per-user reads.
//
// Key behaviors:
//   - One cycle runs immediately on start, then once per interval.
//   - Per-user reads run concurrently, at most Concurrency at a time.
//   - A failing user is logged and counted; it never aborts the cycle.
//   - Users without a stored location are skipped.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"meteoalert/internal/types"
)

const (
	DefaultInterval    = 30 * time.Minute
	DefaultConcurrency = 4
	DefaultUserTimeout = 30 * time.Second
)

// SubscriberRepo lists the users the poller covers.
type SubscriberRepo interface {
	ListWithPushSubscription(ctx context.Context) ([]*types.User, error)
}

// WeatherReader evaluates, and notifies on, one user's current weather.
type WeatherReader interface {
	GetCurrentWeatherForUser(ctx context.Context, userID string) (*types.WeatherSnapshot, error)
}

// Metrics records cycle-level telemetry.
type Metrics interface {
	RecordPollCycle(users, failed int, d time.Duration)
}

// PollResult summarizes one cycle.
type PollResult struct {
	Users   int // users read, successfully or not
	Alerts  int // reads whose snapshot carried an alert
	Failed  int
	Skipped int // users without a location
}

// AlertPoller drives the scheduled alert cycle.
type AlertPoller struct {
	users   SubscriberRepo
	weather WeatherReader
	metrics Metrics
	clock   clockwork.Clock
	logger  *slog.Logger

	interval    time.Duration
	concurrency int
	userTimeout time.Duration
}

// AlertPollerConfig holds the configuration for creating an AlertPoller.
// Zero durations and concurrency fall back to the package defaults.
type AlertPollerConfig struct {
	Users       SubscriberRepo
	Weather     WeatherReader
	Metrics     Metrics
	Clock       clockwork.Clock
	Logger      *slog.Logger
	Interval    time.Duration
	Concurrency int
	UserTimeout time.Duration
}

// NewAlertPoller creates an AlertPoller.
func NewAlertPoller(cfg AlertPollerConfig) *AlertPoller {
	p := &AlertPoller{
		users:       cfg.Users,
		weather:     cfg.Weather,
		metrics:     cfg.Metrics,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		interval:    cfg.Interval,
		concurrency: cfg.Concurrency,
		userTimeout: cfg.UserTimeout,
	}
	if p.clock == nil {
		p.clock = clockwork.NewRealClock()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.concurrency <= 0 {
		p.concurrency = DefaultConcurrency
	}
	if p.userTimeout <= 0 {
		p.userTimeout = DefaultUserTimeout
	}
	return p
}

// Run polls once immediately and then on every tick until ctx is done. A
// cycle that cannot list users is logged and retried on the next tick.
func (p *AlertPoller) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.InfoContext(ctx, "alert poller started",
		"interval", p.interval.String(),
		"concurrency", p.concurrency,
	)

	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.ErrorContext(ctx, "poll cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.InfoContext(context.WithoutCancel(ctx), "alert poller stopped")
			return nil
		case <-ticker.Chan():
		}
	}
}

// Poll runs one cycle. It returns an error only when the user list cannot
// be read.
func (p *AlertPoller) Poll(ctx context.Context) (PollResult, error) {
	start := p.clock.Now()

	users, err := p.users.ListWithPushSubscription(ctx)
	if err != nil {
		return PollResult{}, fmt.Errorf("listing subscribed users: %w", err)
	}

	var (
		alerts atomic.Int32
		failed atomic.Int32
		result PollResult
		g      errgroup.Group
	)
	g.SetLimit(p.concurrency)

	for _, u := range users {
		if strings.TrimSpace(u.Location) == "" {
			result.Skipped++
			continue
		}
		if ctx.Err() != nil {
			break
		}
		result.Users++

		g.Go(func() error {
			triggered, err := p.pollUser(ctx, u.ID)
			switch {
			case err != nil:
				failed.Add(1)
				p.logger.WarnContext(ctx, "alert poll failed for user",
					"user_id", u.ID,
					"error", err,
				)
			case triggered:
				alerts.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Alerts = int(alerts.Load())
	result.Failed = int(failed.Load())
	elapsed := p.clock.Since(start)

	if p.metrics != nil {
		p.metrics.RecordPollCycle(result.Users, result.Failed, elapsed)
	}
	p.logger.InfoContext(ctx, "poll cycle complete",
		"users", result.Users,
		"alerts", result.Alerts,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

func (p *AlertPoller) pollUser(ctx context.Context, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.userTimeout)
	defer cancel()

	snap, err := p.weather.GetCurrentWeatherForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, fmt.Errorf("user read exceeded %s: %w", p.userTimeout, err)
		}
		return false, err
	}
	return snap != nil && snap.HasAlert, nil
}
