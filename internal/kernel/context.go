package kernel

import (
	"fmt"
	"math"

	"github.com/san-kum/fmusim/internal/events"
	"github.com/san-kum/fmusim/internal/fmi"
	"github.com/san-kum/fmusim/internal/integrators"
	"github.com/san-kum/fmusim/internal/trajectory"
	"go.uber.org/zap"
)

// Experiment is the time grid of one run.
type Experiment struct {
	StartTime float64 `json:"start_time"`
	StopTime  float64 `json:"stop_time"`
	StepSize  float64 `json:"step_size"`
}

func (e Experiment) Validate() error {
	if !(e.StopTime > e.StartTime) {
		return fmt.Errorf("%w: stop %g <= start %g", ErrInvalidExperiment, e.StopTime, e.StartTime)
	}
	if !(e.StepSize > 0) {
		return fmt.Errorf("%w: step %g", ErrInvalidExperiment, e.StepSize)
	}
	return nil
}

// ExpectedSteps is the number of fixed steps from start to stop, ignoring
// time events.
func (e Experiment) ExpectedSteps() int {
	return int(math.Ceil((e.StopTime - e.StartTime) / e.StepSize))
}

// Observer is notified by the kernel. Calls happen on the goroutine driving
// the Context.
type Observer interface {
	OnStep(c *Context, fired events.Set)
	OnTerminate(c *Context)
}

type options struct {
	log              *zap.Logger
	instanceName     string
	resourceLocation string
	loggingOn        bool
	categories       []string
	outputs          []string
	observers        []Observer
}

type Option func(*options)

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithLoggingOn enables model logging and per-step debug output.
func WithLoggingOn(on bool) Option {
	return func(o *options) { o.loggingOn = on }
}

// WithLogCategories forwards debug logging categories to the model.
func WithLogCategories(categories ...string) Option {
	return func(o *options) { o.categories = append(o.categories, categories...) }
}

// WithOutputs restricts recording to the named variables, in order.
func WithOutputs(names ...string) Option {
	return func(o *options) { o.outputs = append(o.outputs, names...) }
}

func WithInstanceName(name string) Option {
	return func(o *options) { o.instanceName = name }
}

func WithResourceLocation(uri string) Option {
	return func(o *options) { o.resourceLocation = uri }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// Context is the mutable record of one run. It exclusively owns the model
// instance and every numeric buffer.
type Context struct {
	desc  *fmi.ModelDescription
	inst  fmi.Instance
	phase Phase
	opts  options
	log   *zap.Logger
	integ *integrators.Euler

	time   float64
	h      float64
	tStart float64
	tEnd   float64

	nx, nz int
	x      []float64
	xdot   []float64
	z      []float64
	prez   []float64

	info     fmi.EventInfo
	counters events.Counters
	recorder *trajectory.Recorder

	saved snapshot

	terminateRequested bool
	status             fmi.Status
	failure            error
	result             *Result
}

// snapshot is the part of a Context a discarded step restores.
type snapshot struct {
	time     float64
	info     fmi.EventInfo
	counters events.Counters
	x        []float64
	z        []float64
	prez     []float64
}

// Result is what remains of a run after termination.
type Result struct {
	Model             string                 `json:"model"`
	Experiment        Experiment             `json:"experiment"`
	EndTime           float64                `json:"end_time"`
	Counters          events.Counters        `json:"counters"`
	Status            fmi.Status             `json:"-"`
	StatusText        string                 `json:"status"`
	TerminatedByModel bool                   `json:"terminated_by_model"`
	Err               error                  `json:"-"`
	Trajectory        *trajectory.Trajectory `json:"-"`
}

func (c *Context) Phase() Phase { return c.phase }

func (c *Context) Time() float64 { return c.time }

func (c *Context) StepSize() float64 { return c.h }

func (c *Context) StartTime() float64 { return c.tStart }

func (c *Context) StopTime() float64 { return c.tEnd }

func (c *Context) NumStates() int { return c.nx }

func (c *Context) NumEventIndicators() int { return c.nz }

func (c *Context) Counters() events.Counters { return c.counters }

func (c *Context) EventInfo() fmi.EventInfo { return c.info }

func (c *Context) Description() *fmi.ModelDescription { return c.desc }

// Status is the worst severity reported by the model so far.
func (c *Context) Status() fmi.Status { return c.status }

// TerminationRequested reports whether the model asked to stop.
func (c *Context) TerminationRequested() bool { return c.terminateRequested }

// Done reports whether Step has nothing left to do.
func (c *Context) Done() bool {
	return c.phase == Terminated || c.phase == Failed || c.terminateRequested || c.time >= c.tEnd
}

// States returns a copy of the continuous states after the last step.
func (c *Context) States() []float64 {
	return append([]float64(nil), c.x...)
}

// EventIndicators returns a copy of the current event indicators.
func (c *Context) EventIndicators() []float64 {
	return append([]float64(nil), c.z...)
}

// Trajectory gives read access to the samples recorded so far. It is nil
// after Terminate; use Result instead.
func (c *Context) Trajectory() *trajectory.Recorder { return c.recorder }

// Result is available once Terminate has run.
func (c *Context) Result() *Result { return c.result }

type checkFunc func(status fmi.Status, phase string) error

// check folds status into the run severity and turns anything above
// Warning into a PhaseError.
func (c *Context) check(status fmi.Status, phase string) error {
	c.status = fmi.Worst(c.status, status)
	if !status.Failed() {
		return nil
	}
	return &PhaseError{Phase: phase, Status: status, Time: c.time}
}
