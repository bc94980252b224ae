package observability

import "context"

// Observability bundles the logger, meter and tracer of one process.
// Start brings up background servers such as the metrics endpoint; Close
// flushes pending spans and stops them.
type Observability interface {
	Close(ctx context.Context) error
	Logger() Logger
	Meter() Meter
	Start(ctx context.Context) error
	Tracer() Tracer
}
