package telemetry

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// DefaultMaxMetrics is the default history capacity.
	DefaultMaxMetrics = 1000

	// DefaultSlowThreshold is the duration above which a finished operation
	// is logged as slow.
	DefaultSlowThreshold = time.Second
)

// Config holds recorder settings loaded from the environment.
type Config struct {
	// MaxMetrics bounds the finished-operation history (default: 1000)
	MaxMetrics int

	// SlowThreshold triggers a warning for operations that take longer (default: 1s)
	SlowThreshold time.Duration
}

// DefaultConfig returns a Config populated from TELEMETRY_MAX_METRICS and
// TELEMETRY_SLOW_THRESHOLD.
func DefaultConfig() Config {
	return Config{
		MaxMetrics:    getEnvIntOrDefault("TELEMETRY_MAX_METRICS", DefaultMaxMetrics),
		SlowThreshold: getEnvDurationOrDefault("TELEMETRY_SLOW_THRESHOLD", DefaultSlowThreshold),
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.MaxMetrics <= 0 {
		return fmt.Errorf("max metrics must be positive, got %d", c.MaxMetrics)
	}
	if c.SlowThreshold < 0 {
		return fmt.Errorf("slow threshold must not be negative, got %s", c.SlowThreshold)
	}
	return nil
}

// Options converts the configuration into recorder options.
func (c Config) Options() []Option {
	return []Option{
		WithMaxMetrics(c.MaxMetrics),
		WithSlowThreshold(c.SlowThreshold),
	}
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}
