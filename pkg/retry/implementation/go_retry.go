package implementation

import (
	"context"

	"github.com/jt828/go-span-tracing/pkg/retry"
	goretry "github.com/sethvargo/go-retry"
)

type goRetry struct {
	cfg *retry.Config
}

func NewRetry(opts ...retry.Option) retry.Retry {
	return &goRetry{cfg: retry.ApplyOptions(opts...)}
}

// backoff is rebuilt per call; go-retry backoffs are stateful.
func (r *goRetry) backoff() goretry.Backoff {
	b := goretry.NewExponential(r.cfg.Interval)
	if r.cfg.Jitter > 0 {
		b = goretry.WithJitter(r.cfg.Jitter, b)
	}
	if r.cfg.MaxInterval > 0 {
		b = goretry.WithCappedDuration(r.cfg.MaxInterval, b)
	}
	return goretry.WithMaxRetries(r.cfg.MaxRetries, b)
}

func (r *goRetry) Execute(ctx context.Context, fn func() error) error {
	return goretry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if r.cfg.RetryableFn != nil && !r.cfg.RetryableFn(err) {
			return err
		}

		return goretry.RetryableError(err)
	})
}
