// Package config loads the service configuration once at startup.
//
// Resolution order, highest first:
//
//	OS environment -> .env file -> AWS SSM Parameter Store (via *_SSM_PARAM pointers)
//
// Missing or malformed values fail the process before it serves traffic.
package config

import (
	"time"

	"meteoalert/internal/types"
)

// SecretString is the redacted secret type used for credentials.
type SecretString = types.SecretString

// Config is the immutable process configuration. Components receive only the
// sub-config they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"meteoalert"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Weather       WeatherConfig
	Push          PushConfig
	Auth          AuthConfig
	Cache         CacheConfig
	Observability ObservabilityConfig
	Poller        PollerConfig

	Build BuildInfo
}

// ServerConfig holds HTTP listener and browser-facing settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	DashboardURL       string        `envconfig:"DASHBOARD_URL" default:"http://localhost:3000" validate:"required,url"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
}

// DatabaseConfig holds the Postgres DSN and pool tuning.
type DatabaseConfig struct {
	URL               SecretString  `envconfig:"DATABASE_URL" validate:"required"`
	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10" validate:"gte=1"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"1" validate:"gte=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// WeatherConfig configures the OpenWeather provider.
type WeatherConfig struct {
	APIKey     SecretString  `envconfig:"OPENWEATHER_API_KEY" validate:"required"`
	BaseURL    string        `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org/data/2.5" validate:"required,url"`
	Language   string        `envconfig:"OPENWEATHER_LANG" default:"it"`
	Timeout    time.Duration `envconfig:"OPENWEATHER_TIMEOUT" default:"10s"`
	MaxRetries int           `envconfig:"OPENWEATHER_MAX_RETRIES" default:"2" validate:"gte=0,lte=5"`
}

// PushConfig configures Web Push (VAPID) delivery.
type PushConfig struct {
	VAPIDPublicKey  string        `envconfig:"VAPID_PUBLIC_KEY" validate:"required"`
	VAPIDPrivateKey SecretString  `envconfig:"VAPID_PRIVATE_KEY" validate:"required"`
	VAPIDSubject    string        `envconfig:"VAPID_SUBJECT" default:"mailto:admin@weatherapp.com" validate:"required"`
	TTL             time.Duration `envconfig:"PUSH_TTL" default:"24h"`
	Timeout         time.Duration `envconfig:"PUSH_TIMEOUT" default:"10s"`
	// DispatchTimeout bounds a background delivery, including clearing a
	// gone subscription.
	DispatchTimeout time.Duration `envconfig:"PUSH_DISPATCH_TIMEOUT" default:"15s"`
}

// AuthConfig configures password hashing and token issuance.
type AuthConfig struct {
	JWTSecret  SecretString  `envconfig:"JWT_SECRET" validate:"required,min=32"`
	TokenTTL   time.Duration `envconfig:"JWT_TTL" default:"24h"`
	BcryptCost int           `envconfig:"BCRYPT_COST" default:"12" validate:"gte=4,lte=31"`
}

// CacheConfig configures the optional Redis cache of provider responses.
// An empty URL disables caching.
type CacheConfig struct {
	RedisURL SecretString  `envconfig:"REDIS_URL"`
	TTL      time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"10m"`
}

// ObservabilityConfig selects the metrics backend.
type ObservabilityConfig struct {
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=prometheus cloudwatch none"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"meteoalert"`
	AWSRegion       string `envconfig:"AWS_REGION" default:"eu-south-1"`
}

// PollerConfig configures the scheduled alert poller.
type PollerConfig struct {
	Interval    time.Duration `envconfig:"POLLER_INTERVAL" default:"30m"`
	Concurrency int           `envconfig:"POLLER_CONCURRENCY" default:"4" validate:"gte=1,lte=64"`
	UserTimeout time.Duration `envconfig:"POLLER_USER_TIMEOUT" default:"30s"`
}

// BuildInfo is injected at link time, not read from the environment.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
