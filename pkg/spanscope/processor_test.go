package spanscope_test

import (
	"context"
	"testing"

	"github.com/jt828/go-span-tracing/pkg/observability/observabilitytest"
	"github.com/jt828/go-span-tracing/pkg/reactive"
	"github.com/jt828/go-span-tracing/pkg/spanscope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProceed(t *testing.T) {
	t.Run("new span is named, tagged and ended", func(t *testing.T) {
		tracer := observabilitytest.NewTracer()
		inv := spanscope.Invocation{Name: "FetchOrders", NewSpan: true, Log: "orders", Tags: map[string]string{"tenant": "a"}}

		values, err := reactive.Collect(context.Background(), spanscope.Proceed(context.Background(), tracer, inv,
			func(context.Context) reactive.Publisher[int] { return reactive.Just(1, 2) }))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, values)

		spans := tracer.SpansNamed("fetch-orders")
		require.Len(t, spans, 1)
		assert.Equal(t, "a", spans[0].Tags()["tenant"])
		assert.Equal(t, 1, spans[0].Ends())
		assert.Equal(t, []string{"orders.before", "orders.after"}, spans[0].Events())
	})

	t.Run("current span is continued and not ended", func(t *testing.T) {
		tracer := observabilitytest.NewTracer()
		ctx, current := tracer.Start(context.Background(), "request")
		inv := spanscope.Invocation{Name: "Lookup", Tags: map[string]string{"key": "42"}}

		pub := spanscope.Proceed(ctx, tracer, inv, func(context.Context) reactive.Publisher[string] { return reactive.Just("v") })
		assert.Equal(t, "42", current.(*observabilitytest.Span).Tags()["key"])

		_, err := reactive.Collect(ctx, pub)
		require.NoError(t, err)
		require.Len(t, tracer.Spans(), 1)
		assert.Zero(t, current.(*observabilitytest.Span).Ends())
	})

	t.Run("no current span starts a new one", func(t *testing.T) {
		tracer := observabilitytest.NewTracer()

		_, err := reactive.Collect(context.Background(), spanscope.Proceed(context.Background(), tracer,
			spanscope.Invocation{Name: "Lookup"},
			func(context.Context) reactive.Publisher[string] { return reactive.Just("v") }))
		require.NoError(t, err)

		spans := tracer.SpansNamed("lookup")
		require.Len(t, spans, 1)
		assert.Equal(t, 1, spans[0].Ends())
	})

	t.Run("call receives the caller context", func(t *testing.T) {
		tracer := observabilitytest.NewTracer()
		type key struct{}
		ctx := context.WithValue(context.Background(), key{}, "v")

		var got any
		spanscope.Proceed(ctx, tracer, spanscope.Invocation{Name: "x", NewSpan: true}, func(ctx context.Context) reactive.Publisher[int] {
			got = ctx.Value(key{})
			return reactive.Empty[int]()
		})
		assert.Equal(t, "v", got)
	})
}

func TestSpanName(t *testing.T) {
	cases := map[string]string{
		"FetchOrders":   "fetch-orders",
		"fetchOrders":   "fetch-orders",
		"WatchDatabase": "watch-database",
		"HTTPRequest":   "http-request",
		"already-named": "already-named",
		"Snake_Case":    "snake_case",
		"simple":        "simple",
	}
	for in, want := range cases {
		assert.Equal(t, want, spanscope.SpanName(in), in)
	}
}
