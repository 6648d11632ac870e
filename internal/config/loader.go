// loader.go implements the configuration loading lifecycle for the umbrella
// daemon.
//
// The loading sequence is:
//  1. Load .env file via godotenv (non-fatal if absent, never overrides
//     existing environment variables).
//  2. Use envconfig to process struct tags and populate the Config struct.
//  3. Populate BuildInfo from linker-injected variables.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"umbrella/internal/types"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the umbrella daemon configuration.
//
// It performs the following steps in order:
//  1. Loads a .env file if present (non-fatal if missing).
//  2. Processes envconfig tags to populate the Config struct.
//  3. Populates Config.Build from linker-injected variables.
//  4. Validates the Config struct, including cross-field checks that
//     struct tags cannot express.
func LoadConfig() (*Config, error) {
	// godotenv.Load silently succeeds if no .env file exists in the working
	// directory. It does NOT override existing environment variables.
	_ = godotenv.Load()

	// The empty prefix means envconfig uses the exact tag values
	// (e.g., envconfig:"APP_ENV" reads APP_ENV directly).
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if err := cfg.validateDerived(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateDerived checks the fields whose formats struct tags cannot express:
// the timezone name, the recheck time list, and the webhook mode pairing.
func (c *Config) validateDerived() error {
	if _, err := c.LoadLocation(); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("unknown timezone %q", c.Timezone),
			Err:     err,
		}
	}
	if _, err := c.Recheck.ParsedTimes(); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("invalid RECHECK_TIMES %q", c.Recheck.Times),
			Err:     err,
		}
	}
	if c.Notify.Mode == "webhook" && c.Notify.WebhookURL == "" {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "NOTIFY_WEBHOOK_URL is required when NOTIFY_MODE=webhook",
		}
	}
	return nil
}

// LoadLocation resolves the configured reference timezone.
func (c *Config) LoadLocation() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// ParsedTimes parses the comma-separated recheck time list into wall-clock
// times. Duplicates are preserved in order; cron registration deduplicates.
func (r RecheckConfig) ParsedTimes() ([]types.TimeOfDay, error) {
	parts := strings.Split(r.Times, ",")
	times := make([]types.TimeOfDay, 0, len(parts))
	for _, p := range parts {
		tod, err := types.ParseTimeOfDay(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		times = append(times, tod)
	}
	return times, nil
}
