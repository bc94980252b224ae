package implementation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jt828/go-span-tracing/pkg/retry"
	retryImpl "github.com/jt828/go-span-tracing/pkg/retry/implementation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_Execute(t *testing.T) {
	t.Run("succeeds on first attempt", func(t *testing.T) {
		r := retryImpl.NewRetry(retry.WithMaxRetries(3), retry.WithInterval(time.Millisecond))
		callCount := 0

		err := r.Execute(context.Background(), func() error {
			callCount++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, callCount)
	})

	t.Run("succeeds after retries", func(t *testing.T) {
		r := retryImpl.NewRetry(
			retry.WithMaxRetries(3),
			retry.WithInterval(time.Millisecond),
			retry.WithRetryable(func(err error) bool { return true }),
		)
		callCount := 0

		err := r.Execute(context.Background(), func() error {
			callCount++
			if callCount < 3 {
				return errors.New("transient error")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, callCount)
	})

	t.Run("returns error after max retries exhausted", func(t *testing.T) {
		r := retryImpl.NewRetry(
			retry.WithMaxRetries(2),
			retry.WithInterval(time.Millisecond),
			retry.WithRetryable(func(err error) bool { return true }),
		)
		callCount := 0

		err := r.Execute(context.Background(), func() error {
			callCount++
			return errors.New("persistent error")
		})

		assert.ErrorContains(t, err, "persistent error")
		// initial attempt + 2 retries
		assert.Equal(t, 3, callCount)
	})

	t.Run("non-retryable error fails immediately", func(t *testing.T) {
		r := retryImpl.NewRetry(
			retry.WithMaxRetries(3),
			retry.WithInterval(time.Millisecond),
			retry.WithRetryable(func(err error) bool { return false }),
		)
		callCount := 0

		err := r.Execute(context.Background(), func() error {
			callCount++
			return errors.New("fatal error")
		})

		assert.ErrorContains(t, err, "fatal error")
		assert.Equal(t, 1, callCount)
	})

	t.Run("capped and jittered backoff still retries", func(t *testing.T) {
		r := retryImpl.NewRetry(
			retry.WithMaxRetries(4),
			retry.WithInterval(time.Millisecond),
			retry.WithMaxInterval(2*time.Millisecond),
			retry.WithJitter(time.Millisecond),
		)
		callCount := 0

		err := r.Execute(context.Background(), func() error {
			callCount++
			if callCount < 5 {
				return errors.New("error")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 5, callCount)
	})

	t.Run("retry budget is per call", func(t *testing.T) {
		r := retryImpl.NewRetry(retry.WithMaxRetries(1), retry.WithInterval(time.Millisecond))

		for i := 0; i < 2; i++ {
			callCount := 0
			err := r.Execute(context.Background(), func() error {
				callCount++
				if callCount < 2 {
					return errors.New("error")
				}
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, 2, callCount)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		r := retryImpl.NewRetry(
			retry.WithMaxRetries(100),
			retry.WithInterval(time.Second),
		)

		ctx, cancel := context.WithCancel(context.Background())
		callCount := 0

		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		err := r.Execute(ctx, func() error {
			callCount++
			return errors.New("keep failing")
		})

		assert.Error(t, err)
		assert.LessOrEqual(t, callCount, 3)
	})
}
