package observability

import "context"

type SpanKind int

const (
	SpanKindUnset SpanKind = iota
	SpanKindClient
	SpanKindServer
	SpanKindProducer
	SpanKindConsumer
)

func (k SpanKind) String() string {
	switch k {
	case SpanKindClient:
		return "client"
	case SpanKindServer:
		return "server"
	case SpanKindProducer:
		return "producer"
	case SpanKindConsumer:
		return "consumer"
	default:
		return "unset"
	}
}

const ErrorTag = "error"

// Tracer is the tracing capability consumed by the instrumentation. The current
// span travels in the context; WithSpan returns a derived context in which the
// given span is current, plus a Scope that must be closed by the caller.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
	CurrentSpan(ctx context.Context) Span
	NextSpan(ctx context.Context) Span
	ChildSpan(parent Span) Span
	WithSpan(ctx context.Context, span Span) (context.Context, Scope)
	Inject(ctx context.Context, carrier Carrier)
	Extract(ctx context.Context, carrier Carrier) context.Context
}

// Span mutators return the span so calls can be chained before Start.
type Span interface {
	Name(name string) Span
	Kind(kind SpanKind) Span
	Tag(key, value string) Span
	Event(name string) Span
	Error(err error) Span
	RemoteServiceName(name string) Span
	RemoteIPAndPort(ip string, port int) Span
	Start() Span
	End()
	RecordError(err error)
	IsNoop() bool
}

type Scope interface {
	Close()
}

type Carrier interface {
	Get(key string) string
	Set(key string, value string)
	Keys() []string
}

type MapCarrier map[string]string

func (c MapCarrier) Get(key string) string { return c[key] }

func (c MapCarrier) Set(key, value string) { c[key] = value }

func (c MapCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
