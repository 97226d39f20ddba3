// Package remote fetches per-problem solve status from the problem site.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StatusAccepted is the status the problem site reports for a solved problem.
const StatusAccepted = "ac"

// ErrUnavailable wraps every failure to obtain a status map.
var ErrUnavailable = errors.New("remote status unavailable")

// Statuses maps canonical slugs (and the site's own slugs) to status.
type Statuses map[string]string

// Accepted returns the slugs whose status is accepted.
func (s Statuses) Accepted() []string {
	var out []string
	for slug, st := range s {
		if st == StatusAccepted {
			out = append(out, slug)
		}
	}
	return out
}

// StatusSource returns the status of every problem the user has touched.
type StatusSource interface {
	Statuses(ctx context.Context) (Statuses, error)
}

// Config configures the remote client stack.
type Config struct {
	BaseURL   string        `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	Session   string        `yaml:"session" envconfig:"SESSION"`
	CSRFToken string        `yaml:"csrf_token" envconfig:"CSRF_TOKEN"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`

	// Requests per minute allowed against the full status endpoint.
	RatePerMinute int `yaml:"rate_per_minute" envconfig:"RATE_PER_MINUTE" validate:"gte=1"`

	Retry RetryConfig `yaml:"retry" envconfig:"RETRY"`

	// RedisURL enables the status cache when set.
	RedisURL string        `yaml:"redis_url" envconfig:"REDIS_URL"`
	CacheTTL time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" validate:"gte=1"`
	InitialWait time.Duration `yaml:"initial_wait" envconfig:"INITIAL_WAIT"`
	MaxWait     time.Duration `yaml:"max_wait" envconfig:"MAX_WAIT"`
	Multiplier  float64       `yaml:"multiplier" envconfig:"MULTIPLIER"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://leetcode.com",
		Timeout:       15 * time.Second,
		RatePerMinute: 6,
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		CacheTTL: 5 * time.Minute,
	}
}

// ErrRateLimited indicates the site returned 429.
type ErrRateLimited struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimited) Unwrap() error { return e.Err }

// ErrStatus indicates a non-2xx response other than 429.
type ErrStatus struct {
	StatusCode int
	URL        string
}

func (e *ErrStatus) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// Transient reports whether retrying could help.
func (e *ErrStatus) Transient() bool {
	return e.StatusCode >= 500
}

// ErrInvalidResponse indicates a body that could not be decoded.
type ErrInvalidResponse struct {
	Err error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid status response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }
