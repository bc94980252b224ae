package observability

type Meter interface {
	Counter(name string, opts ...MetricOpt) Counter
	Histogram(name string, opts ...MetricOpt) Histogram
	Gauge(name string, opts ...MetricOpt) Gauge
}

type Counter interface {
	Inc(v float64, labels ...Label)
}

type Histogram interface {
	Observe(v float64, labels ...Label)
}

type Gauge interface {
	Set(v float64, labels ...Label)
	Add(v float64, labels ...Label)
}

type Label struct {
	Key   string
	Value string
}

// MetricOpt describes a metric at creation. Only the first MetricOpt passed to
// a Meter method is used.
type MetricOpt struct {
	Help        string
	Buckets     []float64
	ConstLabels []Label
	LabelKeys   []string
}

type nopMeter struct{}

type nopInstrument struct{}

// NopMeter discards every observation. Instrumentation falls back to it when
// no meter is configured.
func NopMeter() Meter { return nopMeter{} }

func (nopMeter) Counter(string, ...MetricOpt) Counter     { return nopInstrument{} }
func (nopMeter) Histogram(string, ...MetricOpt) Histogram { return nopInstrument{} }
func (nopMeter) Gauge(string, ...MetricOpt) Gauge         { return nopInstrument{} }

func (nopInstrument) Inc(float64, ...Label)     {}
func (nopInstrument) Observe(float64, ...Label) {}
func (nopInstrument) Set(float64, ...Label)     {}
func (nopInstrument) Add(float64, ...Label)     {}
