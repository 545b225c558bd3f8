package piperun

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"
)

// Default values for Config.
const (
	DefaultBaseURL = "https://api.pipe.run/v1"
	DefaultTimeout = 30 * time.Second
)

// ErrMissingToken is returned by Config.Validate when no API token is set.
var ErrMissingToken = errors.New("piperun API token is required (set PIPERUN_API_TOKEN)")

// Config holds the connection settings for the Piperun API.
type Config struct {
	// BaseURL is the API root, e.g. https://api.pipe.run/v1
	BaseURL string

	// Token is the account API token sent as api_token.
	Token string

	// Timeout bounds each HTTP request. Zero disables the client timeout.
	Timeout time.Duration
}

// DefaultConfig returns a Config populated from PIPERUN_API_URL,
// PIPERUN_API_TOKEN and PIPERUN_TIMEOUT.
func DefaultConfig() Config {
	return Config{
		BaseURL: getEnvOrDefault("PIPERUN_API_URL", DefaultBaseURL),
		Token:   os.Getenv("PIPERUN_API_TOKEN"),
		Timeout: getEnvDurationOrDefault("PIPERUN_TIMEOUT", DefaultTimeout),
	}
}

// Validate checks that the base URL is absolute and a token is present.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid piperun base URL %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid piperun base URL %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid piperun base URL %q: host is required", c.BaseURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("piperun timeout must not be negative, got %s", c.Timeout)
	}
	if c.Token == "" {
		return ErrMissingToken
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
