package reactive_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jt828/go-span-tracing/pkg/reactive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder requests initial items on subscribe and records every signal.
type recorder[T any] struct {
	initial int64
	onNext  func(r *recorder[T], ctx context.Context, v T)

	mu        sync.Mutex
	sub       reactive.Subscription
	values    []T
	err       error
	completed int
	errored   int
}

func (r *recorder[T]) OnSubscribe(ctx context.Context, s reactive.Subscription) {
	r.mu.Lock()
	r.sub = s
	r.mu.Unlock()
	if r.initial != 0 {
		s.Request(ctx, r.initial)
	}
}

func (r *recorder[T]) OnNext(ctx context.Context, v T) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
	if r.onNext != nil {
		r.onNext(r, ctx, v)
	}
}

func (r *recorder[T]) OnError(ctx context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	r.errored++
}

func (r *recorder[T]) OnComplete(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}

func (r *recorder[T]) snapshot() ([]T, int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...), r.completed, r.errored, r.err
}

func TestFromSlice(t *testing.T) {
	ctx := context.Background()

	t.Run("honours demand", func(t *testing.T) {
		r := &recorder[int]{initial: 2}
		reactive.FromSlice([]int{1, 2, 3}).Subscribe(ctx, r)

		values, completed, _, _ := r.snapshot()
		assert.Equal(t, []int{1, 2}, values)
		assert.Zero(t, completed)

		r.sub.Request(ctx, 5)
		values, completed, _, _ = r.snapshot()
		assert.Equal(t, []int{1, 2, 3}, values)
		assert.Equal(t, 1, completed)
	})

	t.Run("request from inside OnNext", func(t *testing.T) {
		r := &recorder[int]{initial: 1, onNext: func(r *recorder[int], ctx context.Context, v int) {
			r.sub.Request(ctx, 1)
		}}
		reactive.Just(1, 2, 3, 4).Subscribe(ctx, r)

		values, completed, _, _ := r.snapshot()
		assert.Equal(t, []int{1, 2, 3, 4}, values)
		assert.Equal(t, 1, completed)
	})

	t.Run("cancel stops emission", func(t *testing.T) {
		r := &recorder[int]{initial: reactive.Unbounded, onNext: func(r *recorder[int], ctx context.Context, v int) {
			if v == 2 {
				r.sub.Cancel(ctx)
			}
		}}
		reactive.Just(1, 2, 3).Subscribe(ctx, r)

		values, completed, errored, _ := r.snapshot()
		assert.Equal(t, []int{1, 2}, values)
		assert.Zero(t, completed)
		assert.Zero(t, errored)
	})

	t.Run("non-positive demand is an error", func(t *testing.T) {
		r := &recorder[int]{initial: -1}
		reactive.Just(1).Subscribe(ctx, r)

		_, _, errored, err := r.snapshot()
		assert.Equal(t, 1, errored)
		assert.ErrorIs(t, err, reactive.ErrInvalidDemand)
	})

	t.Run("empty completes without demand", func(t *testing.T) {
		r := &recorder[int]{}
		reactive.FromSlice[int](nil).Subscribe(ctx, r)

		_, completed, _, _ := r.snapshot()
		assert.Equal(t, 1, completed)
	})
}

func TestEmptyAndError(t *testing.T) {
	ctx := context.Background()

	values, err := reactive.Collect(ctx, reactive.Empty[string]())
	require.NoError(t, err)
	assert.Empty(t, values)

	boom := errors.New("boom")
	_, err = reactive.Collect(ctx, reactive.Error[string](boom))
	assert.ErrorIs(t, err, boom)
}

func TestFromFunc(t *testing.T) {
	ctx := context.Background()

	t.Run("runs on first request only", func(t *testing.T) {
		calls := 0
		p := reactive.FromFunc(func(ctx context.Context) (string, error) {
			calls++
			return "v", nil
		})

		r := &recorder[string]{}
		p.Subscribe(ctx, r)
		assert.Zero(t, calls)

		r.sub.Request(ctx, 1)
		r.sub.Request(ctx, 1)
		values, completed, _, _ := r.snapshot()
		assert.Equal(t, 1, calls)
		assert.Equal(t, []string{"v"}, values)
		assert.Equal(t, 1, completed)
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := reactive.Collect(ctx, reactive.FromFunc(func(ctx context.Context) (int, error) { return 0, boom }))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancel while running suppresses signals", func(t *testing.T) {
		r := &recorder[int]{}
		reactive.FromFunc(func(ctx context.Context) (int, error) {
			r.sub.Cancel(ctx)
			return 1, nil
		}).Subscribe(ctx, r)
		r.sub.Request(ctx, 1)

		values, completed, errored, _ := r.snapshot()
		assert.Empty(t, values)
		assert.Zero(t, completed)
		assert.Zero(t, errored)
	})
}

func TestInterval(t *testing.T) {
	t.Run("emits sequence numbers", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		values, err := reactive.Collect(ctx, reactive.Take(reactive.Interval(time.Millisecond), 3))
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1, 2}, values)
	})

	t.Run("completes when the context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		r := &recorder[int64]{initial: reactive.Unbounded}
		reactive.Interval(time.Hour).Subscribe(ctx, r)
		cancel()

		require.Eventually(t, func() bool {
			_, completed, _, _ := r.snapshot()
			return completed == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("cancel stops the ticker", func(t *testing.T) {
		ctx := context.Background()
		r := &recorder[int64]{initial: reactive.Unbounded, onNext: func(r *recorder[int64], ctx context.Context, v int64) {
			r.sub.Cancel(ctx)
		}}
		reactive.Interval(time.Millisecond).Subscribe(ctx, r)

		require.Eventually(t, func() bool {
			values, _, _, _ := r.snapshot()
			return len(values) == 1
		}, time.Second, 5*time.Millisecond)
		time.Sleep(20 * time.Millisecond)

		values, completed, _, _ := r.snapshot()
		assert.Len(t, values, 1)
		assert.Zero(t, completed)
	})

	t.Run("non-positive demand is an error", func(t *testing.T) {
		r := &recorder[int64]{initial: 0}
		reactive.Interval(time.Hour).Subscribe(context.Background(), r)
		r.sub.Request(context.Background(), 0)

		require.Eventually(t, func() bool {
			_, _, errored, err := r.snapshot()
			return errored == 1 && errors.Is(err, reactive.ErrInvalidDemand)
		}, time.Second, 5*time.Millisecond)
	})
}

func TestMap(t *testing.T) {
	ctx := context.Background()

	t.Run("transforms values", func(t *testing.T) {
		values, err := reactive.Collect(ctx, reactive.Map(reactive.Just(1, 2, 3), func(ctx context.Context, v int) (string, error) {
			return string(rune('a' + v - 1)), nil
		}))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, values)
	})

	t.Run("error cancels upstream", func(t *testing.T) {
		boom := errors.New("boom")
		var seen []int
		values, err := reactive.Collect(ctx, reactive.Map(reactive.Just(1, 2, 3), func(ctx context.Context, v int) (int, error) {
			seen = append(seen, v)
			if v == 2 {
				return 0, boom
			}
			return v * 10, nil
		}))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []int{10}, values)
		assert.Equal(t, []int{1, 2}, seen)
	})
}

func TestTake(t *testing.T) {
	ctx := context.Background()

	values, err := reactive.Collect(ctx, reactive.Take(reactive.Just(1, 2, 3), 2))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, values)

	values, err = reactive.Collect(ctx, reactive.Take(reactive.Just(1, 2, 3), 0))
	require.NoError(t, err)
	assert.Empty(t, values)

	values, err = reactive.Collect(ctx, reactive.Take(reactive.Just(1), 5))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, values)
}

func TestSubscribeFunc(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal callback fires once", func(t *testing.T) {
		var got []int
		completes := 0
		reactive.SubscribeFunc(ctx, reactive.Just(1, 2),
			func(_ context.Context, v int) { got = append(got, v) },
			nil,
			func(context.Context) { completes++ },
		)
		assert.Equal(t, []int{1, 2}, got)
		assert.Equal(t, 1, completes)
	})
}

func TestCollect_ContextDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// either the interval completes or Collect gives up first; both end the call
	values, _ := reactive.Collect(ctx, reactive.Interval(time.Hour))
	assert.Empty(t, values)
}
