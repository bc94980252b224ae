package implementation

import (
	"context"
	"sync"
	"time"

	"github.com/jt828/go-span-tracing/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	peerServiceKey   = "peer.service"
	serverAddressKey = "server.address"
	serverPortKey    = "server.port"
)

type currentSpanKey struct{}

type otelTracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// otelSpan buffers name, kind and attributes until Start because OpenTelemetry
// fixes the kind at creation time.
type otelSpan struct {
	tracer trace.Tracer
	parent context.Context

	mu      sync.Mutex
	name    string
	kind    observability.SpanKind
	attrs   []attribute.KeyValue
	events  []string
	errs    []error
	span    trace.Span
	started bool
	ended   bool
}

type noopScope struct{}

func (noopScope) Close() {}

func NewOtelTracerFromProvider(tp trace.TracerProvider, name string) observability.Tracer {
	return otelTracer{
		tracer: tp.Tracer(name),
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}
}

func NewOtelTracer(
	ctx context.Context,
	cfg Config,
	log observability.Logger,
) (observability.Tracer, func(ctx context.Context) error, error) {
	if cfg.TraceEndpoint == "" {
		log.Info("trace endpoint not configured, spans are not exported")
		return NewOtelTracerFromProvider(noop.NewTracerProvider(), cfg.ServiceName),
			func(context.Context) error { return nil },
			nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.TraceEndpoint)}
	if cfg.TraceInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(NewResilientExporter(exp, log)),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return NewOtelTracerFromProvider(tp, cfg.ServiceName),
		func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return tp.Shutdown(ctx)
		},
		nil
}

func (t otelTracer) Start(ctx context.Context, name string) (context.Context, observability.Span) {
	span := t.NextSpan(ctx).Name(name).Start()
	ctx, _ = t.WithSpan(ctx, span)
	return ctx, span
}

func (t otelTracer) CurrentSpan(ctx context.Context) observability.Span {
	fromOtel := trace.SpanFromContext(ctx)
	if s, ok := ctx.Value(currentSpanKey{}).(observability.Span); ok && s != nil {
		os, isOtel := s.(*otelSpan)
		if !isOtel || !fromOtel.SpanContext().IsValid() || os.spanContext().Equal(fromOtel.SpanContext()) {
			return s
		}
	}
	if !fromOtel.SpanContext().IsValid() {
		return nil
	}
	return &otelSpan{tracer: t.tracer, span: fromOtel, started: true}
}

func (t otelTracer) NextSpan(ctx context.Context) observability.Span {
	if ctx == nil {
		ctx = context.Background()
	}
	return &otelSpan{tracer: t.tracer, parent: ctx}
}

func (t otelTracer) ChildSpan(parent observability.Span) observability.Span {
	ctx := context.Background()
	if p, ok := parent.(*otelSpan); ok {
		if sc := p.spanContext(); sc.IsValid() {
			ctx = trace.ContextWithSpanContext(ctx, sc)
		}
	}
	return &otelSpan{tracer: t.tracer, parent: ctx}
}

func (t otelTracer) WithSpan(ctx context.Context, span observability.Span) (context.Context, observability.Scope) {
	if span == nil {
		return ctx, noopScope{}
	}
	ctx = context.WithValue(ctx, currentSpanKey{}, span)
	if os, ok := span.(*otelSpan); ok {
		if s := os.otel(); s != nil {
			ctx = trace.ContextWithSpan(ctx, s)
		}
	}
	return ctx, noopScope{}
}

func (t otelTracer) Inject(ctx context.Context, carrier observability.Carrier) {
	t.propagator.Inject(ctx, carrier)
}

func (t otelTracer) Extract(ctx context.Context, carrier observability.Carrier) context.Context {
	return t.propagator.Extract(ctx, carrier)
}

func (s *otelSpan) otel() trace.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.span
}

func (s *otelSpan) spanContext() trace.SpanContext {
	if sp := s.otel(); sp != nil {
		return sp.SpanContext()
	}
	return trace.SpanContext{}
}

func (s *otelSpan) Name(name string) observability.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	if s.span != nil {
		s.span.SetName(name)
	}
	return s
}

func (s *otelSpan) Kind(kind observability.SpanKind) observability.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = kind
	return s
}

func (s *otelSpan) Tag(key, value string) observability.Span {
	s.setAttributes(attribute.String(key, value))
	return s
}

func (s *otelSpan) RemoteServiceName(name string) observability.Span {
	if name != "" {
		s.setAttributes(attribute.String(peerServiceKey, name))
	}
	return s
}

func (s *otelSpan) RemoteIPAndPort(ip string, port int) observability.Span {
	if ip != "" {
		s.setAttributes(attribute.String(serverAddressKey, ip))
	}
	if port > 0 {
		s.setAttributes(attribute.Int(serverPortKey, port))
	}
	return s
}

func (s *otelSpan) setAttributes(kv ...attribute.KeyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.span != nil {
		s.span.SetAttributes(kv...)
		return
	}
	s.attrs = append(s.attrs, kv...)
}

func (s *otelSpan) Event(name string) observability.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.span != nil {
		s.span.AddEvent(name)
		return s
	}
	s.events = append(s.events, name)
	return s
}

func (s *otelSpan) Error(err error) observability.Span {
	if err == nil {
		return s
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.span != nil {
		recordOtelError(s.span, err)
		return s
	}
	s.errs = append(s.errs, err)
	return s
}

func (s *otelSpan) RecordError(err error) { s.Error(err) }

func (s *otelSpan) Start() observability.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return s
	}
	s.started = true
	parent := s.parent
	if parent == nil {
		parent = context.Background()
	}
	_, s.span = s.tracer.Start(
		parent,
		s.name,
		trace.WithSpanKind(toOtelKind(s.kind)),
		trace.WithAttributes(s.attrs...),
	)
	for _, e := range s.events {
		s.span.AddEvent(e)
	}
	for _, err := range s.errs {
		recordOtelError(s.span, err)
	}
	s.attrs, s.events, s.errs = nil, nil, nil
	return s
}

func (s *otelSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.span == nil || s.ended {
		return
	}
	s.ended = true
	s.span.End()
}

func (s *otelSpan) IsNoop() bool {
	sp := s.otel()
	return sp != nil && !sp.IsRecording()
}

func recordOtelError(span trace.Span, err error) {
	msg := observability.ErrorMessage(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	span.SetAttributes(attribute.String(observability.ErrorTag, msg))
}

func toOtelKind(kind observability.SpanKind) trace.SpanKind {
	switch kind {
	case observability.SpanKindClient:
		return trace.SpanKindClient
	case observability.SpanKindServer:
		return trace.SpanKindServer
	case observability.SpanKindProducer:
		return trace.SpanKindProducer
	case observability.SpanKindConsumer:
		return trace.SpanKindConsumer
	default:
		return trace.SpanKindInternal
	}
}
