// Package app assembles the dependency graph shared by the API server and the
// alert poller from a loaded Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meteoalert/internal/cache"
	"meteoalert/internal/config"
	"meteoalert/internal/core"
	"meteoalert/internal/db"
	"meteoalert/internal/external"
	"meteoalert/internal/notifications/push"
	"meteoalert/internal/observability"
	"meteoalert/internal/security"
	"meteoalert/internal/weather"
)

// cloudWatchFlushInterval is how often buffered CloudWatch data is published.
const cloudWatchFlushInterval = time.Minute

// Components is the wired service graph. Close releases everything it owns.
type Components struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  clockwork.Clock

	Pool       *pgxpool.Pool
	Users      *db.UserRepository
	Redis      *redis.Client // nil when caching is disabled
	Provider   weather.Provider
	Notifier   *external.WebPushNotifier
	Dispatcher *push.Dispatcher
	Weather    *weather.Service

	Metrics observability.Recorder
	// MetricsHandler serves the Prometheus registry; nil for other backends.
	MetricsHandler http.Handler

	closers []func()
}

// New connects to the database (and Redis when configured) and builds the
// weather read path on top.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Components{Config: cfg, Logger: logger, Clock: clockwork.NewRealClock()}

	metrics, handler, stop, err := NewMetrics(ctx, cfg.Observability, c.Clock, logger)
	if err != nil {
		return nil, err
	}
	c.Metrics, c.MetricsHandler = metrics, handler
	c.closers = append(c.closers, stop)

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Pool = pool
	c.closers = append(c.closers, pool.Close)
	c.Users = db.NewUserRepository(pool)

	owm := external.NewOpenWeatherClient(
		external.NewBaseClient(
			&http.Client{Timeout: cfg.Weather.Timeout},
			"openweather",
			external.RetryPolicy{
				MaxRetries: cfg.Weather.MaxRetries,
				MinWait:    external.DefaultRetryPolicy().MinWait,
				MaxWait:    external.DefaultRetryPolicy().MaxWait,
			},
			userAgent(cfg),
		),
		cfg.Weather.BaseURL,
		cfg.Weather.APIKey,
		cfg.Weather.Language,
	)
	c.Provider = owm

	if url := cfg.Cache.RedisURL.Unmask(); url != "" {
		rdb, err := cache.NewRedisClient(url)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		c.Redis = rdb
		c.closers = append(c.closers, func() { _ = rdb.Close() })
		c.Provider = cache.NewCachedProvider(owm, rdb, cfg.Cache.TTL, metrics, logger)
		logger.InfoContext(ctx, "weather cache enabled", "ttl", cfg.Cache.TTL.String())
	}

	// Push delivery is not retried; a failed send is reported, not repeated.
	// Endpoints come from browsers, so connections go through the SSRF guard
	// and each push host trips its own breaker.
	c.Notifier = external.NewWebPushNotifier(
		external.NewBaseClient(
			security.NewGuardedHTTPClient(cfg.Push.Timeout, nil),
			"webpush",
			external.RetryPolicy{},
			userAgent(cfg),
			external.WithHostBreakers(),
		),
		external.VAPIDConfig{
			PublicKey:  cfg.Push.VAPIDPublicKey,
			PrivateKey: cfg.Push.VAPIDPrivateKey,
			Subject:    cfg.Push.VAPIDSubject,
			TTL:        cfg.Push.TTL,
		},
	)
	c.Dispatcher = push.NewDispatcher(c.Notifier, c.Users, metrics, logger)

	c.Weather = weather.NewService(c.Provider, c.Users, c.Dispatcher, logger,
		weather.WithClock(c.Clock),
		weather.WithMetrics(metrics),
		weather.WithDispatchTimeout(cfg.Push.DispatchTimeout),
	)
	// Runs first on Close, so pending deliveries still have a database.
	c.closers = append(c.closers, c.Weather.Wait)
	return c, nil
}

// HealthProbes returns the dependency checks for GET /health.
func (c *Components) HealthProbes() []core.HealthProbe {
	probes := []core.HealthProbe{
		core.ProbeFunc{ProbeName: "database", Fn: c.Pool.Ping},
	}
	if c.Redis != nil {
		rdb := c.Redis
		probes = append(probes, core.ProbeFunc{ProbeName: "cache", Fn: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return probes
}

// Close releases resources in reverse order of acquisition.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// NewMetrics selects the metrics backend. The returned stop func flushes and
// stops any background publisher; it is never nil.
func NewMetrics(ctx context.Context, cfg config.ObservabilityConfig, clock clockwork.Clock, logger *slog.Logger) (observability.Recorder, http.Handler, func(), error) {
	switch cfg.MetricsBackend {
	case "prometheus", "":
		m := observability.NewPrometheusMetrics(cfg.MetricNamespace, prometheus.DefaultRegisterer)
		return m, promhttp.Handler(), func() {}, nil

	case "cloudwatch":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		m := observability.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.MetricNamespace, clock, logger)

		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		done := make(chan struct{})
		go func() {
			defer close(done)
			m.Run(runCtx, cloudWatchFlushInterval)
		}()
		return m, nil, func() {
			cancel()
			<-done
		}, nil

	case "none":
		return observability.Nop{}, nil, func() {}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown metrics backend %q", cfg.MetricsBackend)
}

// NewLogger creates a JSON slog.Logger at the named level. Unknown levels
// log at info.
func NewLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func userAgent(cfg *config.Config) string {
	return cfg.Service + "/" + cfg.Build.Version
}
