package resourcespan

import (
	"context"
	"testing"

	"github.com/jt828/go-span-tracing/pkg/observability/observabilitytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_ResultSetCloseReleasesStatementEntry(t *testing.T) {
	tracer := observabilitytest.NewTracer()
	tr := NewTracker[string, string, string](tracer)
	ctx := context.Background()

	tr.BeforeGetConnection(ctx, "c1", nil, "primary")
	tr.BeforeQuery(ctx, "c1", "s1", "primary")
	for _, rs := range []string{"r1", "r2", "r3"} {
		tr.BeforeResultSetNext(ctx, "c1", "s1", rs, "primary")
		tr.AfterResultSetClose("c1", rs, 1, nil)
	}

	info, ok := tr.connections.Load("c1")
	require.True(t, ok)
	stmt, ok := info.statements.Load("s1")
	require.True(t, ok)
	assert.Empty(t, stmt.resultSets.Keys())
	assert.Zero(t, info.owners.Len())
	assert.Zero(t, info.resultSets.Len())

	tr.AfterConnectionClose("c1", nil)
	assert.Len(t, tracer.SpansNamed(SpanNameResultSet), 3)
	for _, s := range tracer.StartedSpans() {
		assert.Equal(t, 1, s.Ends(), s.SpanName())
	}
	assert.Zero(t, tracer.OpenScopes())
}
