package circuitbreaker

import "time"

type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case HalfOpen:
		return "half-open"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

type CircuitBreaker interface {
	Execute(fn func() (any, error)) (any, error)
	State() State
}

type Config struct {
	MaxConsecutiveFailures uint32
	MaxHalfOpenRequests    uint32
	OpenTimeout            time.Duration
	Interval               time.Duration
	IsSuccessful           func(err error) bool
	OnStateChange          func(name string, from, to State)
}

type Option func(*Config)

func WithMaxConsecutiveFailures(n uint32) Option {
	return func(c *Config) {
		c.MaxConsecutiveFailures = n
	}
}

func WithMaxHalfOpenRequests(n uint32) Option {
	return func(c *Config) {
		c.MaxHalfOpenRequests = n
	}
}

// WithOpenTimeout is how long the breaker stays open before probing again.
func WithOpenTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.OpenTimeout = d
	}
}

// WithInterval is the cyclic period of the closed state after which counts reset.
func WithInterval(d time.Duration) Option {
	return func(c *Config) {
		c.Interval = d
	}
}

// WithIsSuccessful lets errors such as "not found" count as successes.
func WithIsSuccessful(fn func(err error) bool) Option {
	return func(c *Config) {
		c.IsSuccessful = fn
	}
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) {
		c.OnStateChange = fn
	}
}

func ApplyOptions(opts ...Option) *Config {
	c := &Config{
		MaxConsecutiveFailures: 5,
		MaxHalfOpenRequests:    1,
		OpenTimeout:            60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
