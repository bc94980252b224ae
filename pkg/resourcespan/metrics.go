package resourcespan

import "github.com/jt828/go-span-tracing/pkg/observability"

type trackerMetrics struct {
	started observability.Counter
	ended   observability.Counter
	open    observability.Gauge
}

func newTrackerMetrics(meter observability.Meter) *trackerMetrics {
	return &trackerMetrics{
		started: meter.Counter("resource_spans_started_total", observability.MetricOpt{
			Help:      "Resource spans started, by level",
			LabelKeys: []string{"level"},
		}),
		ended: meter.Counter("resource_spans_ended_total", observability.MetricOpt{
			Help:      "Resource spans ended, by level",
			LabelKeys: []string{"level"},
		}),
		open: meter.Gauge("resource_open_connections", observability.MetricOpt{
			Help: "Connections currently tracked",
		}),
	}
}

func (m *trackerMetrics) spanStarted(level string) {
	m.started.Inc(1, observability.Label{Key: "level", Value: level})
}

func (m *trackerMetrics) spanEnded(level string) {
	m.ended.Inc(1, observability.Label{Key: "level", Value: level})
}

func (m *trackerMetrics) connectionOpened() {
	m.open.Add(1)
}

func (m *trackerMetrics) connectionClosed() {
	m.open.Add(-1)
}
