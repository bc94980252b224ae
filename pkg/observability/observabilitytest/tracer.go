// Package observabilitytest provides an in-memory Tracer that records every
// span operation so tests can assert start/end counts, tags, events and scope
// balance.
package observabilitytest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jt828/go-span-tracing/pkg/observability"
)

const TraceIDHeader = "x-test-trace-id"

type currentKey struct{}

type Tracer struct {
	mu         sync.Mutex
	spans      []*Span
	openScopes atomic.Int64
	scopes     atomic.Int64

	// PanicOnScope makes WithSpan panic; used to check that instrumentation
	// failures never suppress data signals.
	PanicOnScope atomic.Bool
}

func NewTracer() *Tracer {
	return &Tracer{}
}

type Span struct {
	tracer *Tracer

	ID      string
	TraceID string
	Parent  *Span

	mu            sync.Mutex
	name          string
	kind          observability.SpanKind
	tags          map[string]string
	events        []string
	errs          []error
	remoteService string
	remoteIP      string
	remotePort    int
	starts        int
	ends          int
}

type scope struct {
	tracer *Tracer
	once   sync.Once
}

func (s *scope) Close() {
	s.once.Do(func() { s.tracer.openScopes.Add(-1) })
}

func (t *Tracer) newSpan(parent *Span) *Span {
	s := &Span{tracer: t, ID: uuid.NewString(), Parent: parent, tags: map[string]string{}}
	if parent != nil {
		s.TraceID = parent.TraceID
	} else {
		s.TraceID = uuid.NewString()
	}
	t.mu.Lock()
	t.spans = append(t.spans, s)
	t.mu.Unlock()
	return s
}

func (t *Tracer) Start(ctx context.Context, name string) (context.Context, observability.Span) {
	span := t.NextSpan(ctx).Name(name).Start()
	ctx, _ = t.WithSpan(ctx, span)
	return ctx, span
}

func (t *Tracer) CurrentSpan(ctx context.Context) observability.Span {
	if s, ok := ctx.Value(currentKey{}).(*Span); ok && s != nil {
		return s
	}
	return nil
}

func (t *Tracer) NextSpan(ctx context.Context) observability.Span {
	parent, _ := ctx.Value(currentKey{}).(*Span)
	return t.newSpan(parent)
}

func (t *Tracer) ChildSpan(parent observability.Span) observability.Span {
	p, _ := parent.(*Span)
	return t.newSpan(p)
}

func (t *Tracer) WithSpan(ctx context.Context, span observability.Span) (context.Context, observability.Scope) {
	if t.PanicOnScope.Load() {
		panic("scope install failed")
	}
	t.scopes.Add(1)
	t.openScopes.Add(1)
	s, _ := span.(*Span)
	return context.WithValue(ctx, currentKey{}, s), &scope{tracer: t}
}

func (t *Tracer) Inject(ctx context.Context, carrier observability.Carrier) {
	if s, ok := t.CurrentSpan(ctx).(*Span); ok {
		carrier.Set(TraceIDHeader, s.TraceID)
	}
}

func (t *Tracer) Extract(ctx context.Context, carrier observability.Carrier) context.Context {
	id := carrier.Get(TraceIDHeader)
	if id == "" {
		return ctx
	}
	remote := &Span{tracer: t, ID: uuid.NewString(), TraceID: id, tags: map[string]string{}, starts: 1}
	return context.WithValue(ctx, currentKey{}, remote)
}

// Spans returns every span created so far, in creation order.
func (t *Tracer) Spans() []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Span, len(t.spans))
	copy(out, t.spans)
	return out
}

func (t *Tracer) StartedSpans() []*Span {
	var out []*Span
	for _, s := range t.Spans() {
		if s.Starts() > 0 {
			out = append(out, s)
		}
	}
	return out
}

func (t *Tracer) EndedSpans() []*Span {
	var out []*Span
	for _, s := range t.Spans() {
		if s.Ends() > 0 {
			out = append(out, s)
		}
	}
	return out
}

func (t *Tracer) SpansNamed(name string) []*Span {
	var out []*Span
	for _, s := range t.Spans() {
		if s.SpanName() == name {
			out = append(out, s)
		}
	}
	return out
}

// OpenScopes is the number of scopes installed but not yet closed.
func (t *Tracer) OpenScopes() int64 { return t.openScopes.Load() }

// ScopeCount is the total number of scopes ever installed.
func (t *Tracer) ScopeCount() int64 { return t.scopes.Load() }

func (s *Span) Name(name string) observability.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	return s
}

func (s *Span) Kind(kind observability.SpanKind) observability.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = kind
	return s
}

func (s *Span) Tag(key, value string) observability.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[key] = value
	return s
}

func (s *Span) Event(name string) observability.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
	return s
}

func (s *Span) Error(err error) observability.Span {
	if err == nil {
		return s
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
	s.tags[observability.ErrorTag] = observability.ErrorMessage(err)
	return s
}

func (s *Span) RecordError(err error) { s.Error(err) }

func (s *Span) RemoteServiceName(name string) observability.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteService = name
	return s
}

func (s *Span) RemoteIPAndPort(ip string, port int) observability.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteIP, s.remotePort = ip, port
	return s
}

func (s *Span) Start() observability.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	return s
}

func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ends++
}

func (s *Span) IsNoop() bool { return false }

func (s *Span) SpanName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Span) SpanKind() observability.SpanKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

func (s *Span) Tags() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		out[k] = v
	}
	return out
}

func (s *Span) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *Span) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func (s *Span) RemoteService() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteService
}

func (s *Span) RemoteEndpoint() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteIP, s.remotePort
}

func (s *Span) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func (s *Span) Ends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ends
}
