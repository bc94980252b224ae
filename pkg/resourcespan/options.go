package resourcespan

import "github.com/jt828/go-span-tracing/pkg/observability"

type TraceType string

const (
	TraceTypeConnection TraceType = "connection"
	TraceTypeQuery      TraceType = "query"
	TraceTypeFetch      TraceType = "fetch"
)

func ParseTraceType(s string) (TraceType, bool) {
	switch TraceType(s) {
	case TraceTypeConnection, TraceTypeQuery, TraceTypeFetch:
		return TraceType(s), true
	default:
		return "", false
	}
}

// SpanCustomizer adjusts the connection span for data sources it applies to.
type SpanCustomizer interface {
	IsApplicable(dataSource any) bool
	CustomizeConnectionSpan(dataSource any, span observability.Span)
}

type Config struct {
	TraceTypes      map[TraceType]bool
	Customizers     []SpanCustomizer
	Logger          observability.Logger
	Meter           observability.Meter
	RollbackAsError bool
}

type Option func(*Config)

func WithTraceTypes(types ...TraceType) Option {
	return func(c *Config) {
		c.TraceTypes = make(map[TraceType]bool, len(types))
		for _, t := range types {
			c.TraceTypes[t] = true
		}
	}
}

func WithCustomizers(customizers ...SpanCustomizer) Option {
	return func(c *Config) {
		c.Customizers = append(c.Customizers, customizers...)
	}
}

func WithLogger(log observability.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithMeter(meter observability.Meter) Option {
	return func(c *Config) {
		c.Meter = meter
	}
}

// WithRollbackAsError controls whether a rollback without an explicit error
// still marks the connection span as failed. Enabled by default.
func WithRollbackAsError(enabled bool) Option {
	return func(c *Config) {
		c.RollbackAsError = enabled
	}
}

func ApplyOptions(opts ...Option) *Config {
	c := &Config{
		TraceTypes: map[TraceType]bool{
			TraceTypeConnection: true,
			TraceTypeQuery:      true,
			TraceTypeFetch:      true,
		},
		RollbackAsError: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger()
	}
	if c.Meter == nil {
		c.Meter = observability.NopMeter()
	}
	return c
}
