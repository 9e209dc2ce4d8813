// Package cache keeps raw weather provider payloads in Redis so repeated
// reads for the same location within the TTL skip the provider. Alert
// evaluation never reads from here; only provider data is cached.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"meteoalert/internal/external"
)

const keyPrefix = "meteoalert:weather:"

// DefaultTTL matches the provider's own refresh cadence.
const DefaultTTL = 10 * time.Minute

// Lookup results, as recorded in metrics.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

// Provider is the upstream the cache fronts.
type Provider interface {
	GetCurrent(ctx context.Context, location string) (*external.CurrentWeatherResponse, error)
	GetForecast(ctx context.Context, location string) (*external.ForecastResponse, error)
}

// Client is the subset of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Metrics records cache lookups.
type Metrics interface {
	RecordCacheLookup(result string)
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// CachedProvider decorates a Provider with a Redis read-through cache.
// Redis failures are logged and bypassed.
type CachedProvider struct {
	next    Provider
	client  Client
	ttl     time.Duration
	metrics Metrics
	logger  *slog.Logger
}

// NewCachedProvider wraps next. A non-positive ttl uses DefaultTTL.
func NewCachedProvider(next Provider, client Client, ttl time.Duration, metrics Metrics, logger *slog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{next: next, client: client, ttl: ttl, metrics: metrics, logger: logger}
}

// GetCurrent returns the cached observation for location or fetches it.
func (c *CachedProvider) GetCurrent(ctx context.Context, location string) (*external.CurrentWeatherResponse, error) {
	var out external.CurrentWeatherResponse
	key := Key("current", location)
	if c.load(ctx, key, &out) {
		return &out, nil
	}
	resp, err := c.next.GetCurrent(ctx, location)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, resp)
	return resp, nil
}

// GetForecast returns the cached forecast for location or fetches it.
func (c *CachedProvider) GetForecast(ctx context.Context, location string) (*external.ForecastResponse, error) {
	var out external.ForecastResponse
	key := Key("forecast", location)
	if c.load(ctx, key, &out) {
		return &out, nil
	}
	resp, err := c.next.GetForecast(ctx, location)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, resp)
	return resp, nil
}

// Ping reports whether Redis is reachable. Used by the health check.
func (c *CachedProvider) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Key builds the cache key for a payload kind and location. Locations are
// matched case-insensitively with whitespace collapsed.
func Key(kind, location string) string {
	return keyPrefix + kind + ":" + strings.ToLower(strings.Join(strings.Fields(location), " "))
}

func (c *CachedProvider) load(ctx context.Context, key string, dst any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.record(LookupMiss)
		return false
	case err != nil:
		c.record(LookupError)
		c.logger.WarnContext(ctx, "weather cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.record(LookupError)
		c.logger.WarnContext(ctx, "weather cache entry undecodable", "key", key, "error", err)
		return false
	}
	c.record(LookupHit)
	return true
}

func (c *CachedProvider) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.WarnContext(ctx, "weather cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "weather cache write failed", "key", key, "error", err)
	}
}

func (c *CachedProvider) record(result string) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(result)
	}
}
