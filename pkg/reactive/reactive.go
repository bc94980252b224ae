// Package reactive defines a small reactive-streams contract for producers of
// zero or more values, together with a handful of producers and operators.
//
// Every call carries a context.Context. Implementations deliver signals for one
// subscription serially, honour the demand requested through Subscription and
// stop emitting once the subscription is cancelled.
package reactive

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
)

// Unbounded requests every remaining value.
const Unbounded int64 = math.MaxInt64

var ErrInvalidDemand = errors.New("reactive: request must be positive")

type Subscription interface {
	Request(ctx context.Context, n int64)
	Cancel(ctx context.Context)
}

type Subscriber[T any] interface {
	OnSubscribe(ctx context.Context, s Subscription)
	OnNext(ctx context.Context, v T)
	OnError(ctx context.Context, err error)
	OnComplete(ctx context.Context)
}

type Publisher[T any] interface {
	Subscribe(ctx context.Context, s Subscriber[T])
}

type PublisherFunc[T any] func(ctx context.Context, s Subscriber[T])

func (f PublisherFunc[T]) Subscribe(ctx context.Context, s Subscriber[T]) { f(ctx, s) }

// addDemand adds n to the outstanding demand, saturating at Unbounded.
func addDemand(requested *atomic.Int64, n int64) {
	for {
		cur := requested.Load()
		if cur == Unbounded {
			return
		}
		next := cur + n
		if next < 0 {
			next = Unbounded
		}
		if requested.CompareAndSwap(cur, next) {
			return
		}
	}
}

// takeDemand consumes one unit of demand and reports whether any was available.
func takeDemand(requested *atomic.Int64) bool {
	for {
		cur := requested.Load()
		if cur == 0 {
			return false
		}
		if cur == Unbounded {
			return true
		}
		if requested.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

type emptySubscription struct{}

func (emptySubscription) Request(context.Context, int64) {}
func (emptySubscription) Cancel(context.Context)         {}
