package reactive

import (
	"context"
	"sync/atomic"
)

// Map transforms every value with fn. An error from fn cancels the upstream and
// terminates the stream with that error.
func Map[T, R any](source Publisher[T], fn func(ctx context.Context, v T) (R, error)) Publisher[R] {
	return PublisherFunc[R](func(ctx context.Context, s Subscriber[R]) {
		source.Subscribe(ctx, &mapSubscriber[T, R]{actual: s, fn: fn})
	})
}

// Take relays the first n values, then cancels the upstream and completes.
func Take[T any](source Publisher[T], n int64) Publisher[T] {
	return PublisherFunc[T](func(ctx context.Context, s Subscriber[T]) {
		source.Subscribe(ctx, &takeSubscriber[T]{actual: s, limit: n})
	})
}

type mapSubscriber[T, R any] struct {
	actual   Subscriber[R]
	fn       func(ctx context.Context, v T) (R, error)
	upstream Subscription
	done     atomic.Bool
}

func (m *mapSubscriber[T, R]) OnSubscribe(ctx context.Context, s Subscription) {
	m.upstream = s
	m.actual.OnSubscribe(ctx, m)
}

func (m *mapSubscriber[T, R]) OnNext(ctx context.Context, v T) {
	if m.done.Load() {
		return
	}
	r, err := m.fn(ctx, v)
	if err != nil {
		m.upstream.Cancel(ctx)
		if m.done.CompareAndSwap(false, true) {
			m.actual.OnError(ctx, err)
		}
		return
	}
	m.actual.OnNext(ctx, r)
}

func (m *mapSubscriber[T, R]) OnError(ctx context.Context, err error) {
	if m.done.CompareAndSwap(false, true) {
		m.actual.OnError(ctx, err)
	}
}

func (m *mapSubscriber[T, R]) OnComplete(ctx context.Context) {
	if m.done.CompareAndSwap(false, true) {
		m.actual.OnComplete(ctx)
	}
}

func (m *mapSubscriber[T, R]) Request(ctx context.Context, n int64) { m.upstream.Request(ctx, n) }
func (m *mapSubscriber[T, R]) Cancel(ctx context.Context)           { m.upstream.Cancel(ctx) }

type takeSubscriber[T any] struct {
	actual   Subscriber[T]
	limit    int64
	seen     int64
	upstream Subscription
	done     atomic.Bool
}

func (t *takeSubscriber[T]) OnSubscribe(ctx context.Context, s Subscription) {
	t.upstream = s
	if t.limit <= 0 {
		t.done.Store(true)
		s.Cancel(ctx)
		t.actual.OnSubscribe(ctx, emptySubscription{})
		t.actual.OnComplete(ctx)
		return
	}
	t.actual.OnSubscribe(ctx, t)
}

func (t *takeSubscriber[T]) OnNext(ctx context.Context, v T) {
	if t.done.Load() {
		return
	}
	t.seen++
	t.actual.OnNext(ctx, v)
	if t.seen >= t.limit && t.done.CompareAndSwap(false, true) {
		t.upstream.Cancel(ctx)
		t.actual.OnComplete(ctx)
	}
}

func (t *takeSubscriber[T]) OnError(ctx context.Context, err error) {
	if t.done.CompareAndSwap(false, true) {
		t.actual.OnError(ctx, err)
	}
}

func (t *takeSubscriber[T]) OnComplete(ctx context.Context) {
	if t.done.CompareAndSwap(false, true) {
		t.actual.OnComplete(ctx)
	}
}

func (t *takeSubscriber[T]) Request(ctx context.Context, n int64) { t.upstream.Request(ctx, n) }
func (t *takeSubscriber[T]) Cancel(ctx context.Context)           { t.upstream.Cancel(ctx) }
