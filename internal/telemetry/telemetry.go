// Package telemetry exports run statistics as prometheus metrics. Metrics
// is a kernel.Observer and may be shared by concurrent runs.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/fmusim/internal/events"
	"github.com/san-kum/fmusim/internal/kernel"
)

const namespace = "fmusim"

// Run outcomes used as the "outcome" label.
const (
	OutcomeCompleted  = "completed"
	OutcomeTerminated = "terminated_by_model"
	OutcomeStopped    = "stopped"
	OutcomeFailed     = "failed"
)

type Metrics struct {
	// StepsTotal counts accepted steps. Labels: model
	StepsTotal *prometheus.CounterVec

	// EventsTotal counts handled events. Labels: model, kind (time, state, step)
	EventsTotal *prometheus.CounterVec

	// RunsTotal counts finished runs. Labels: model, outcome
	RunsTotal *prometheus.CounterVec

	// TrajectoryBytes is the memory held by the recorders of active runs.
	TrajectoryBytes prometheus.Gauge

	// TrajectoryPeakBytes is the high-water mark of TrajectoryBytes.
	TrajectoryPeakBytes prometheus.Gauge

	mu      sync.Mutex
	held    map[*kernel.Context]int
	current int
	peak    int
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		StepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "steps_total",
			Help:      "Accepted integrator steps",
		}, []string{"model"}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "events_total",
			Help:      "Handled time, state and step events",
		}, []string{"model", "kind"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "runs_total",
			Help:      "Finished runs by outcome",
		}, []string{"model", "outcome"}),
		TrajectoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trajectory",
			Name:      "bytes",
			Help:      "Bytes held by the trajectory buffers of active runs",
		}),
		TrajectoryPeakBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trajectory",
			Name:      "peak_bytes",
			Help:      "Highest value reached by the trajectory buffers",
		}),
		held: make(map[*kernel.Context]int),
	}

	for _, c := range []prometheus.Collector{
		m.StepsTotal, m.EventsTotal, m.RunsTotal, m.TrajectoryBytes, m.TrajectoryPeakBytes,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// OnStep tracks the trajectory memory of c.
func (m *Metrics) OnStep(c *kernel.Context, _ events.Set) {
	rec := c.Trajectory()
	if rec == nil {
		return
	}
	m.setHeld(c, rec.Bytes())
}

// OnTerminate records the final counters of the run and releases its
// trajectory memory from the gauge.
func (m *Metrics) OnTerminate(c *kernel.Context) {
	m.setHeld(c, 0)

	res := c.Result()
	if res == nil {
		return
	}
	model := res.Model
	m.StepsTotal.WithLabelValues(model).Add(float64(res.Counters.Steps))
	m.EventsTotal.WithLabelValues(model, "time").Add(float64(res.Counters.TimeEvents))
	m.EventsTotal.WithLabelValues(model, "state").Add(float64(res.Counters.StateEvents))
	m.EventsTotal.WithLabelValues(model, "step").Add(float64(res.Counters.StepEvents))
	m.RunsTotal.WithLabelValues(model, Outcome(res)).Inc()
}

func (m *Metrics) setHeld(c *kernel.Context, bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current += bytes - m.held[c]
	if bytes == 0 {
		delete(m.held, c)
	} else {
		m.held[c] = bytes
	}
	m.peak = max(m.peak, m.current)

	m.TrajectoryBytes.Set(float64(m.current))
	m.TrajectoryPeakBytes.Set(float64(m.peak))
}

// Outcome classifies how a run ended.
func Outcome(res *kernel.Result) string {
	switch {
	case res.Err != nil:
		return OutcomeFailed
	case res.TerminatedByModel:
		return OutcomeTerminated
	case res.EndTime >= res.Experiment.StopTime:
		return OutcomeCompleted
	default:
		return OutcomeStopped
	}
}

// WriteFile writes every metric gathered by g to path in the text
// exposition format.
func WriteFile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
