package reactive

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

func Just[T any](items ...T) Publisher[T] {
	return FromSlice(items)
}

func FromSlice[T any](items []T) Publisher[T] {
	return PublisherFunc[T](func(ctx context.Context, s Subscriber[T]) {
		sub := &sliceSubscription[T]{items: items, actual: s}
		s.OnSubscribe(ctx, sub)
		sub.drain(ctx)
	})
}

func Empty[T any]() Publisher[T] {
	return PublisherFunc[T](func(ctx context.Context, s Subscriber[T]) {
		s.OnSubscribe(ctx, emptySubscription{})
		s.OnComplete(ctx)
	})
}

func Error[T any](err error) Publisher[T] {
	return PublisherFunc[T](func(ctx context.Context, s Subscriber[T]) {
		s.OnSubscribe(ctx, emptySubscription{})
		s.OnError(ctx, err)
	})
}

// FromFunc produces at most one value: fn runs on the first request, with the
// requesting context.
func FromFunc[T any](fn func(ctx context.Context) (T, error)) Publisher[T] {
	return PublisherFunc[T](func(ctx context.Context, s Subscriber[T]) {
		s.OnSubscribe(ctx, &funcSubscription[T]{fn: fn, actual: s})
	})
}

// Interval emits 0, 1, 2, ... every period from its own goroutine. Ticks that
// arrive without outstanding demand are dropped. The stream completes when the
// subscription context is done.
func Interval(period time.Duration) Publisher[int64] {
	return PublisherFunc[int64](func(ctx context.Context, s Subscriber[int64]) {
		sub := &intervalSubscription{
			actual:  s,
			period:  period,
			stop:    make(chan struct{}),
			invalid: make(chan struct{}),
		}
		s.OnSubscribe(ctx, sub)
		go sub.run(ctx)
	})
}

// -------------------- slice --------------------

type sliceSubscription[T any] struct {
	items  []T
	actual Subscriber[T]
	idx    int
	done   bool

	requested atomic.Int64
	wip       atomic.Int32
	cancelled atomic.Bool
	invalid   atomic.Bool
}

func (s *sliceSubscription[T]) Request(ctx context.Context, n int64) {
	if n <= 0 {
		s.invalid.Store(true)
	} else {
		addDemand(&s.requested, n)
	}
	s.drain(ctx)
}

func (s *sliceSubscription[T]) Cancel(context.Context) {
	s.cancelled.Store(true)
}

// drain is re-entrant: a Request issued from inside OnNext only bumps the work
// counter and the outer loop picks the new demand up.
func (s *sliceSubscription[T]) drain(ctx context.Context) {
	if s.wip.Add(1) != 1 {
		return
	}
	missed := int32(1)
	for {
		if s.cancelled.Load() || s.done {
			return
		}
		if s.invalid.Load() {
			s.done = true
			s.actual.OnError(ctx, ErrInvalidDemand)
			return
		}
		for s.idx < len(s.items) && takeDemand(&s.requested) {
			if s.cancelled.Load() {
				return
			}
			v := s.items[s.idx]
			s.idx++
			s.actual.OnNext(ctx, v)
		}
		if s.cancelled.Load() {
			return
		}
		if s.idx == len(s.items) {
			s.done = true
			s.actual.OnComplete(ctx)
			return
		}
		missed = s.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}

// -------------------- func --------------------

type funcSubscription[T any] struct {
	fn        func(ctx context.Context) (T, error)
	actual    Subscriber[T]
	fired     atomic.Bool
	cancelled atomic.Bool
}

func (s *funcSubscription[T]) Request(ctx context.Context, n int64) {
	if !s.fired.CompareAndSwap(false, true) {
		return
	}
	if n <= 0 {
		s.actual.OnError(ctx, ErrInvalidDemand)
		return
	}
	v, err := s.fn(ctx)
	if s.cancelled.Load() {
		return
	}
	if err != nil {
		s.actual.OnError(ctx, err)
		return
	}
	s.actual.OnNext(ctx, v)
	if s.cancelled.Load() {
		return
	}
	s.actual.OnComplete(ctx)
}

func (s *funcSubscription[T]) Cancel(context.Context) {
	s.cancelled.Store(true)
}

// -------------------- interval --------------------

type intervalSubscription struct {
	actual  Subscriber[int64]
	period  time.Duration
	stop    chan struct{}
	invalid chan struct{}

	requested   atomic.Int64
	terminated  atomic.Bool
	stopOnce    sync.Once
	invalidOnce sync.Once
}

func (s *intervalSubscription) Request(_ context.Context, n int64) {
	if n <= 0 {
		s.invalidOnce.Do(func() { close(s.invalid) })
		return
	}
	addDemand(&s.requested, n)
}

func (s *intervalSubscription) Cancel(context.Context) {
	s.terminated.Store(true)
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *intervalSubscription) run(ctx context.Context) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	var n int64
	for {
		select {
		case <-s.stop:
			return
		case <-s.invalid:
			if s.terminated.CompareAndSwap(false, true) {
				s.actual.OnError(ctx, ErrInvalidDemand)
			}
			return
		case <-ctx.Done():
			if s.terminated.CompareAndSwap(false, true) {
				s.actual.OnComplete(ctx)
			}
			return
		case <-ticker.C:
			if s.terminated.Load() {
				return
			}
			if !takeDemand(&s.requested) {
				continue
			}
			s.actual.OnNext(ctx, n)
			n++
		}
	}
}
