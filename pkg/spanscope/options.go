package spanscope

import "github.com/jt828/go-span-tracing/pkg/observability"

type Config struct {
	Span       observability.Span
	Parent     observability.Span
	Customizer func(span observability.Span)
	Log        string
	Logger     observability.Logger
}

type Option func(*Config)

// WithSpan continues an existing span. A continued span is never ended by the
// operator.
func WithSpan(span observability.Span) Option {
	return func(c *Config) {
		c.Span = span
	}
}

// WithParent makes a newly started span a child of parent instead of the span
// current at subscription time.
func WithParent(parent observability.Span) Option {
	return func(c *Config) {
		c.Parent = parent
	}
}

// WithCustomizer is invoked once, right before a new span is started.
func WithCustomizer(fn func(span observability.Span)) Option {
	return func(c *Config) {
		c.Customizer = fn
	}
}

// WithLog annotates the span with "<marker>.before", "<marker>.after" and
// "<marker>.afterFailure" events.
func WithLog(marker string) Option {
	return func(c *Config) {
		c.Log = marker
	}
}

func WithLogger(log observability.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func ApplyOptions(opts ...Option) *Config {
	c := &Config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger()
	}
	return c
}
