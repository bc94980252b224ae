package implementation

import (
	"context"

	"github.com/jt828/go-span-tracing/pkg/observability"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	LogLevel       string
	TraceEndpoint  string
	TraceInsecure  bool
	MetricsAddr    string
}

func NewObservability(ctx context.Context, cfg Config) (observability.Observability, error) {
	log, err := NewZapLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log = log.With(observability.String("service", cfg.ServiceName))

	meter := NewPrometheusMeter("spantrace")

	tracer, shutdown, err := NewOtelTracer(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	return &observabilityImplementation{
		log:         log,
		meter:       meter,
		tracer:      tracer,
		metricsAddr: cfg.MetricsAddr,
		traceClose:  shutdown,
	}, nil
}
