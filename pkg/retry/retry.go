package retry

import (
	"context"
	"time"
)

type Retry interface {
	Execute(ctx context.Context, fn func() error) error
}

type Config struct {
	MaxRetries  uint64
	Interval    time.Duration
	MaxInterval time.Duration
	Jitter      time.Duration
	RetryableFn func(err error) bool
}

type Option func(*Config)

func WithMaxRetries(n uint64) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

func WithInterval(d time.Duration) Option {
	return func(c *Config) {
		c.Interval = d
	}
}

// WithMaxInterval caps the exponential backoff.
func WithMaxInterval(d time.Duration) Option {
	return func(c *Config) {
		c.MaxInterval = d
	}
}

func WithJitter(d time.Duration) Option {
	return func(c *Config) {
		c.Jitter = d
	}
}

// WithRetryable decides which errors are retried. Without it every error is.
func WithRetryable(fn func(err error) bool) Option {
	return func(c *Config) {
		c.RetryableFn = fn
	}
}

func ApplyOptions(opts ...Option) *Config {
	c := &Config{
		MaxRetries: 3,
		Interval:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
