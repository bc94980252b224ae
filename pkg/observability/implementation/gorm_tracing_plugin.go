package implementation

import (
	"context"
	"strconv"
	"time"

	"github.com/jt828/go-span-tracing/pkg/observability"
	"gorm.io/gorm"
)

type gormSpanKey struct{}

type gormSpan struct {
	span  observability.Span
	scope observability.Scope
	start time.Time
}

// GormTracingPlugin opens one span per gorm operation. The span is installed in
// the statement context so driver-level spans created underneath nest inside it.
type GormTracingPlugin struct {
	tracer       observability.Tracer
	queryLatency observability.Histogram
	queryErrors  observability.Counter
}

func NewGormTracingPlugin(tracer observability.Tracer, meter observability.Meter) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer: tracer,
		queryLatency: meter.Histogram("gorm_query_duration_seconds", observability.MetricOpt{
			Help:      "Duration of GORM operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			LabelKeys: []string{"operation"},
		}),
		queryErrors: meter.Counter("gorm_query_errors_total", observability.MetricOpt{
			Help:      "Total number of failed GORM operations",
			LabelKeys: []string{"operation"},
		}),
	}
}

func (p *GormTracingPlugin) Name() string {
	return "tracing"
}

func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	steps := []struct {
		operation string
		register  func(before, after func(*gorm.DB)) error
	}{
		{"create", func(before, after func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register("tracing:before_create", before); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("tracing:after_create", after)
		}},
		{"query", func(before, after func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register("tracing:before_query", before); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("tracing:after_query", after)
		}},
		{"update", func(before, after func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register("tracing:before_update", before); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("tracing:after_update", after)
		}},
		{"delete", func(before, after func(*gorm.DB)) error {
			if err := cb.Delete().Before("gorm:delete").Register("tracing:before_delete", before); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register("tracing:after_delete", after)
		}},
		{"row", func(before, after func(*gorm.DB)) error {
			if err := cb.Row().Before("gorm:row").Register("tracing:before_row", before); err != nil {
				return err
			}
			return cb.Row().After("gorm:row").Register("tracing:after_row", after)
		}},
		{"raw", func(before, after func(*gorm.DB)) error {
			if err := cb.Raw().Before("gorm:raw").Register("tracing:before_raw", before); err != nil {
				return err
			}
			return cb.Raw().After("gorm:raw").Register("tracing:after_raw", after)
		}},
	}

	for _, s := range steps {
		if err := s.register(p.before(s.operation), p.after(s.operation)); err != nil {
			return err
		}
	}
	return nil
}

func (p *GormTracingPlugin) before(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		span := p.tracer.NextSpan(ctx).
			Name("gorm." + operation).
			Kind(observability.SpanKindClient).
			Start()
		ctx, scope := p.tracer.WithSpan(ctx, span)
		db.Statement.Context = context.WithValue(ctx, gormSpanKey{}, &gormSpan{span: span, scope: scope, start: time.Now()})
	}
}

func (p *GormTracingPlugin) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		opLabel := observability.Label{Key: "operation", Value: operation}

		gs, ok := db.Statement.Context.Value(gormSpanKey{}).(*gormSpan)
		if !ok {
			return
		}

		if db.Statement.Table != "" {
			gs.span.Tag("gorm.table", db.Statement.Table)
		}
		gs.span.Tag("gorm.rows_affected", strconv.FormatInt(db.RowsAffected, 10))
		if db.Error != nil {
			gs.span.Error(db.Error)
			p.queryErrors.Inc(1, opLabel)
		}
		gs.scope.Close()
		gs.span.End()

		p.queryLatency.Observe(time.Since(gs.start).Seconds(), opLabel)
	}
}
