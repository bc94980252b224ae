package reactive

import (
	"context"
	"sync"
	"sync/atomic"
)

type lambdaSubscriber[T any] struct {
	onNext     func(ctx context.Context, v T)
	onError    func(ctx context.Context, err error)
	onComplete func(ctx context.Context)

	mu        sync.Mutex
	upstream  Subscription
	cancelled bool
	done      atomic.Bool
}

// SubscribeFunc subscribes with unbounded demand and returns a handle that can
// cancel the subscription. Nil callbacks are ignored.
func SubscribeFunc[T any](
	ctx context.Context,
	p Publisher[T],
	onNext func(ctx context.Context, v T),
	onError func(ctx context.Context, err error),
	onComplete func(ctx context.Context),
) Subscription {
	l := &lambdaSubscriber[T]{onNext: onNext, onError: onError, onComplete: onComplete}
	p.Subscribe(ctx, l)
	return l
}

func (l *lambdaSubscriber[T]) OnSubscribe(ctx context.Context, s Subscription) {
	l.mu.Lock()
	l.upstream = s
	cancelled := l.cancelled
	l.mu.Unlock()
	if cancelled {
		s.Cancel(ctx)
		return
	}
	s.Request(ctx, Unbounded)
}

func (l *lambdaSubscriber[T]) OnNext(ctx context.Context, v T) {
	if l.done.Load() || l.onNext == nil {
		return
	}
	l.onNext(ctx, v)
}

func (l *lambdaSubscriber[T]) OnError(ctx context.Context, err error) {
	if l.done.CompareAndSwap(false, true) && l.onError != nil {
		l.onError(ctx, err)
	}
}

func (l *lambdaSubscriber[T]) OnComplete(ctx context.Context) {
	if l.done.CompareAndSwap(false, true) && l.onComplete != nil {
		l.onComplete(ctx)
	}
}

func (l *lambdaSubscriber[T]) Request(ctx context.Context, n int64) {
	l.mu.Lock()
	up := l.upstream
	l.mu.Unlock()
	if up != nil {
		up.Request(ctx, n)
	}
}

func (l *lambdaSubscriber[T]) Cancel(ctx context.Context) {
	l.mu.Lock()
	up := l.upstream
	l.cancelled = true
	l.mu.Unlock()
	l.done.Store(true)
	if up != nil {
		up.Cancel(ctx)
	}
}

// Collect subscribes, gathers every value and blocks until the stream
// terminates or ctx is done. On ctx expiry the subscription is cancelled.
func Collect[T any](ctx context.Context, p Publisher[T]) ([]T, error) {
	var (
		mu     sync.Mutex
		values []T
		result error
	)
	done := make(chan struct{})
	var once sync.Once
	finish := func(err error) {
		once.Do(func() {
			mu.Lock()
			result = err
			mu.Unlock()
			close(done)
		})
	}

	sub := SubscribeFunc(ctx, p,
		func(_ context.Context, v T) {
			mu.Lock()
			values = append(values, v)
			mu.Unlock()
		},
		func(_ context.Context, err error) { finish(err) },
		func(context.Context) { finish(nil) },
	)

	select {
	case <-done:
	case <-ctx.Done():
		sub.Cancel(context.WithoutCancel(ctx))
		finish(ctx.Err())
	}

	mu.Lock()
	defer mu.Unlock()
	return values, result
}
