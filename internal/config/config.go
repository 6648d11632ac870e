// Package config defines the global configuration structure for the umbrella
// daemon. Configuration is loaded once at process startup and is immutable
// thereafter, following 12-Factor principles: values come from the OS
// environment (highest priority) with an optional .env file underneath.
//
// Any missing required value or invalid format aborts startup (fail fast).
package config

import (
	"time"

	"umbrella/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the umbrella daemon.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"umbrellad"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Timezone is the reference timezone for all wall-clock decisions:
	// notification times, calendar-day keys, the probability-check window.
	Timezone string `envconfig:"APP_TIMEZONE" default:"Asia/Seoul" validate:"required"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Weather  WeatherConfig
	Alarm    AlarmConfig
	Recheck  RecheckConfig
	Notify   NotifyConfig
	Location LocationConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds the HTTP status/control API settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"5"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// WeatherConfig holds the forecast provider endpoint and cache policy.
type WeatherConfig struct {
	BaseURL      string        `envconfig:"WEATHER_BASE_URL" default:"https://api.open-meteo.com" validate:"required,url"`
	Timeout      time.Duration `envconfig:"WEATHER_TIMEOUT" default:"15s"`
	CacheTTL     time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"6h"`
	ForecastDays int           `envconfig:"WEATHER_FORECAST_DAYS" default:"2" validate:"min=1,max=16"`
}

// AlarmConfig holds the scheduling safety margins.
type AlarmConfig struct {
	// BufferMinutes is subtracted from the target time when only inexact
	// scheduling is available, so an early-or-late delivery still lands
	// before the user leaves.
	BufferMinutes int `envconfig:"ALARM_BUFFER_MINUTES" default:"10" validate:"min=0"`

	// PreCheckOffsetMinutes is how long before the notification time the
	// forecast refresh fires.
	PreCheckOffsetMinutes int `envconfig:"ALARM_PRECHECK_OFFSET_MINUTES" default:"60" validate:"min=1"`

	// ExactWake disables exact scheduling when false, forcing the
	// buffered inexact path. Useful on hosts that suspend aggressively.
	ExactWake bool `envconfig:"ALARM_EXACT_WAKE" default:"true"`
}

// RecheckConfig holds the periodic re-evaluation schedule.
type RecheckConfig struct {
	// Times is a comma-separated list of "HH:MM" wall-clock times in the
	// reference timezone at which the daemon re-runs the decision pipeline.
	Times       string `envconfig:"RECHECK_TIMES" default:"21:00,04:00" validate:"required"`
	MaxAttempts int    `envconfig:"RECHECK_MAX_ATTEMPTS" default:"3" validate:"min=1"`
}

// NotifyConfig holds notification delivery settings.
type NotifyConfig struct {
	// Mode selects the delivery backend: "webhook" posts to WebhookURL,
	// "log" writes structured log entries only.
	Mode       string        `envconfig:"NOTIFY_MODE" default:"log" validate:"oneof=log webhook"`
	WebhookURL string        `envconfig:"NOTIFY_WEBHOOK_URL" validate:"omitempty,url"`
	AuthToken  SecretString  `envconfig:"NOTIFY_AUTH_TOKEN"`
	Timeout    time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`

	// SuppressDuplicates skips the precipitation notification when one was
	// already delivered for the same calendar day.
	SuppressDuplicates bool `envconfig:"NOTIFY_SUPPRESS_DUPLICATES" default:"true"`

	// FailureThreshold is the number of consecutive same-day scheduling
	// failures before a persistent failure notification is raised.
	FailureThreshold int `envconfig:"NOTIFY_FAILURE_THRESHOLD" default:"3" validate:"min=1"`
}

// LocationConfig holds location resolution settings.
type LocationConfig struct {
	// Timeout bounds a single fresh position request before the chain
	// falls back to the cached position.
	Timeout time.Duration `envconfig:"LOCATION_TIMEOUT" default:"60s"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
