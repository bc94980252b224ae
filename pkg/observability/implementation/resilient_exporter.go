package implementation

import (
	"context"
	"time"

	"github.com/jt828/go-span-tracing/pkg/circuitbreaker"
	cbImpl "github.com/jt828/go-span-tracing/pkg/circuitbreaker/implementation"
	"github.com/jt828/go-span-tracing/pkg/observability"
	"github.com/jt828/go-span-tracing/pkg/retry"
	retryImpl "github.com/jt828/go-span-tracing/pkg/retry/implementation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// resilientExporter guards a span exporter with retries on transient gRPC
// failures and a circuit breaker so an unreachable collector fails fast.
type resilientExporter struct {
	next  sdktrace.SpanExporter
	cb    circuitbreaker.CircuitBreaker
	retry retry.Retry
	log   observability.Logger
}

func NewResilientExporter(next sdktrace.SpanExporter, log observability.Logger) sdktrace.SpanExporter {
	return NewResilientExporterWith(
		next,
		cbImpl.NewCircuitBreaker("span-exporter",
			circuitbreaker.WithMaxConsecutiveFailures(5),
			circuitbreaker.WithOpenTimeout(30*time.Second),
		),
		retryImpl.NewRetry(
			retry.WithMaxRetries(2),
			retry.WithInterval(200*time.Millisecond),
			retry.WithRetryable(IsRetryableExportError),
		),
		log,
	)
}

func NewResilientExporterWith(
	next sdktrace.SpanExporter,
	cb circuitbreaker.CircuitBreaker,
	r retry.Retry,
	log observability.Logger,
) sdktrace.SpanExporter {
	return &resilientExporter{next: next, cb: cb, retry: r, log: log}
}

func (e *resilientExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	_, err := e.cb.Execute(func() (any, error) {
		return nil, e.retry.Execute(ctx, func() error {
			return e.next.ExportSpans(ctx, spans)
		})
	})
	if err != nil {
		e.log.Warn("span export failed", observability.Int("spans", len(spans)), observability.Err(err))
	}
	return err
}

func (e *resilientExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

func IsRetryableExportError(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}
