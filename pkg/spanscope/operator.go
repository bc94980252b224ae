// Package spanscope wraps reactive publishers so that a span surrounds their
// execution.
//
// Every signal crossing the wrapper, in either direction, is delivered with a
// context in which the span is current; the scope is released as soon as that
// single call returns. A span started by the wrapper is ended exactly once, by
// whichever of completion, error or cancellation happens first.
package spanscope

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jt828/go-span-tracing/pkg/observability"
	"github.com/jt828/go-span-tracing/pkg/reactive"
)

type state int32

const (
	stateActive state = iota
	stateCompleting
	stateFailing
	stateCancelling
	stateEnded
)

type spanPublisher[T any] struct {
	source reactive.Publisher[T]
	tracer observability.Tracer
	cfg    *Config
}

func Wrap[T any](source reactive.Publisher[T], tracer observability.Tracer, opts ...Option) reactive.Publisher[T] {
	return &spanPublisher[T]{
		source: source,
		tracer: tracer,
		cfg:    ApplyOptions(opts...),
	}
}

// Subscribe resolves the span for this subscription. Each subscription gets its
// own span and state, so one wrapped publisher can be subscribed many times.
func (p *spanPublisher[T]) Subscribe(ctx context.Context, actual reactive.Subscriber[T]) {
	span := p.cfg.Span
	owned := false
	if span == nil {
		if p.cfg.Parent != nil {
			span = p.tracer.ChildSpan(p.cfg.Parent)
		} else {
			span = p.tracer.NextSpan(ctx)
		}
		if p.cfg.Customizer != nil {
			p.cfg.Customizer(span)
		}
		span.Start()
		owned = true
	}

	s := &spanSubscriber[T]{
		actual: actual,
		tracer: p.tracer,
		span:   span,
		owned:  owned,
		log:    p.cfg.Log,
		logger: p.cfg.Logger,
	}
	s.annotate(".before")

	scoped, exit := s.enter(ctx)
	defer exit()
	p.source.Subscribe(scoped, s)
}

type spanSubscriber[T any] struct {
	actual   reactive.Subscriber[T]
	upstream reactive.Subscription
	tracer   observability.Tracer
	span     observability.Span
	owned    bool
	log      string
	logger   observability.Logger
	state    atomic.Int32
}

// enter installs the span for one call. A failing tracer never prevents the
// data signal from being delivered; the caller's context is used instead.
func (s *spanSubscriber[T]) enter(ctx context.Context) (scoped context.Context, exit func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("failed to install span scope", observability.String("panic", fmt.Sprint(r)))
			scoped, exit = ctx, func() {}
		}
	}()
	c, scope := s.tracer.WithSpan(ctx, s.span)
	return c, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Warn("failed to release span scope", observability.String("panic", fmt.Sprint(r)))
			}
		}()
		scope.Close()
	}
}

func (s *spanSubscriber[T]) transition(to state) bool {
	return s.state.CompareAndSwap(int32(stateActive), int32(to))
}

func (s *spanSubscriber[T]) annotate(suffix string) {
	if s.log != "" {
		s.span.Event(s.log + suffix)
	}
}

// finish ends an owned span. It is only reached by the single signal that won
// the terminal transition.
func (s *spanSubscriber[T]) finish() {
	defer s.state.Store(int32(stateEnded))
	if s.owned {
		s.span.End()
	}
}

func (s *spanSubscriber[T]) OnSubscribe(ctx context.Context, sub reactive.Subscription) {
	s.upstream = sub
	scoped, exit := s.enter(ctx)
	defer exit()
	s.actual.OnSubscribe(scoped, s)
}

func (s *spanSubscriber[T]) OnNext(ctx context.Context, v T) {
	scoped, exit := s.enter(ctx)
	defer exit()
	s.actual.OnNext(scoped, v)
}

func (s *spanSubscriber[T]) OnError(ctx context.Context, err error) {
	won := s.transition(stateFailing)
	if won {
		defer s.finish()
	}
	scoped, exit := s.enter(ctx)
	defer exit()
	if won {
		s.annotate(".afterFailure")
		s.span.Tag(observability.ErrorTag, observability.ErrorMessage(err))
		s.span.Error(err)
	}
	s.actual.OnError(scoped, err)
}

func (s *spanSubscriber[T]) OnComplete(ctx context.Context) {
	won := s.transition(stateCompleting)
	if won {
		defer s.finish()
	}
	scoped, exit := s.enter(ctx)
	defer exit()
	if won {
		s.annotate(".after")
	}
	s.actual.OnComplete(scoped)
}

func (s *spanSubscriber[T]) Request(ctx context.Context, n int64) {
	scoped, exit := s.enter(ctx)
	defer exit()
	s.upstream.Request(scoped, n)
}

func (s *spanSubscriber[T]) Cancel(ctx context.Context) {
	won := s.transition(stateCancelling)
	if won {
		defer s.finish()
	}
	scoped, exit := s.enter(ctx)
	defer exit()
	if won {
		s.annotate(".after")
	}
	s.upstream.Cancel(scoped)
}
