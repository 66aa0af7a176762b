package kernel

import (
	"fmt"

	"github.com/san-kum/fmusim/internal/fmi"
	"github.com/san-kum/fmusim/internal/integrators"
	"github.com/san-kum/fmusim/internal/trajectory"
	"go.uber.org/zap"
)

// Initialize brings model from instantiation to continuous-time mode and
// records the step-0 sample. On failure every acquired resource is released
// and no Context is returned.
func Initialize(model fmi.Model, exp Experiment, opts ...Option) (*Context, error) {
	if err := exp.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}

	desc := model.Description()
	if o.instanceName == "" {
		o.instanceName = desc.ModelName
	}

	c := &Context{
		desc:   desc,
		phase:  Uninstantiated,
		opts:   o,
		log:    o.log.With(zap.String("model", desc.ModelName), zap.String("instance", o.instanceName)),
		integ:  integrators.NewEuler(),
		time:   exp.StartTime,
		h:      exp.StepSize,
		tStart: exp.StartTime,
		tEnd:   exp.StopTime,
	}

	if err := c.configure(model, exp); err != nil {
		c.phase = Failed
		c.failure = err
		c.log.Error("initialization failed", zap.Error(err))
		c.Terminate()
		return nil, err
	}

	c.log.Debug("initialized",
		zap.Int("nx", c.nx),
		zap.Int("nz", c.nz),
		zap.Int("outputs", len(c.recorder.Variables())),
		zap.Stringer("phase", c.phase))
	return c, nil
}

func (c *Context) configure(model fmi.Model, exp Experiment) error {
	callbacks := fmi.CallbackFunctions{Logger: fmi.NewZapLogger(c.opts.log)}
	inst := model.Instantiate(c.opts.instanceName, fmi.ModelExchange, c.desc.GUID,
		c.opts.resourceLocation, callbacks, false, c.opts.loggingOn)
	if inst == nil {
		return &PhaseError{Phase: "instantiate model", Status: fmi.Error, Time: c.time, Err: ErrInstantiate}
	}
	c.inst = inst
	c.phase = Configuring

	if len(c.opts.categories) > 0 {
		if err := c.check(inst.SetDebugLogging(true, c.opts.categories), "set debug logging"); err != nil {
			return err
		}
	}

	c.nx = inst.NumberOfContinuousStates()
	c.nz = inst.NumberOfEventIndicators()
	if c.nx < 0 || c.nz < 0 {
		return &PhaseError{Phase: "query model dimensions", Status: fmi.Error, Time: c.time,
			Err: fmt.Errorf("%w: nx=%d nz=%d", ErrDimension, c.nx, c.nz)}
	}
	c.x = make([]float64, c.nx)
	c.xdot = make([]float64, c.nx)
	c.z = make([]float64, c.nz)
	c.prez = make([]float64, c.nz)

	if err := c.check(inst.SetupExperiment(false, 0, exp.StartTime, true, exp.StopTime), "setup experiment"); err != nil {
		return err
	}
	if err := c.check(inst.EnterInitializationMode(), "enter initialization mode"); err != nil {
		return err
	}
	if err := c.check(inst.ExitInitializationMode(), "exit initialization mode"); err != nil {
		return err
	}

	if err := c.iterateEvents(c.check); err != nil {
		return err
	}
	if c.info.TerminateSimulation {
		c.requestTermination()
	} else if err := c.enterContinuousTime(c.check); err != nil {
		return err
	}

	vars, err := c.resolveOutputs()
	if err != nil {
		return &PhaseError{Phase: "resolve output variables", Status: fmi.Error, Time: c.time, Err: err}
	}
	c.recorder = trajectory.NewRecorder(vars, exp.ExpectedSteps()+1)

	if c.terminateRequested {
		return nil
	}

	if c.nx > 0 {
		if err := c.check(inst.GetContinuousStates(c.x), "get continuous states"); err != nil {
			return err
		}
	}
	if c.nz > 0 {
		if err := c.check(inst.GetEventIndicators(c.z), "get event indicators"); err != nil {
			return err
		}
	}
	return c.sample()
}

func (c *Context) resolveOutputs() ([]fmi.ScalarVariable, error) {
	if len(c.opts.outputs) == 0 {
		return c.desc.Outputs(), nil
	}
	vars := make([]fmi.ScalarVariable, 0, len(c.opts.outputs))
	for _, name := range c.opts.outputs {
		v, err := c.desc.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownVariable, err)
		}
		vars = append(vars, v)
	}
	return vars, nil
}

// iterateEvents runs discrete updates until the model settles or asks to
// terminate.
func (c *Context) iterateEvents(call checkFunc) error {
	c.phase = EventIterating
	c.info.NewDiscreteStatesNeeded = true
	c.info.TerminateSimulation = false
	for c.info.NewDiscreteStatesNeeded && !c.info.TerminateSimulation {
		if err := call(c.inst.NewDiscreteStates(&c.info), "set a new discrete state"); err != nil {
			return err
		}
		if c.opts.loggingOn {
			if c.info.ValuesOfContinuousStatesChanged {
				c.log.Debug("continuous state values changed", zap.Float64("t", c.time))
			}
			if c.info.NominalsOfContinuousStatesChanged {
				c.log.Debug("nominals of continuous states changed", zap.Float64("t", c.time))
			}
		}
	}
	return nil
}

func (c *Context) enterContinuousTime(call checkFunc) error {
	if err := call(c.inst.EnterContinuousTimeMode(), "enter continuous time mode"); err != nil {
		return err
	}
	c.phase = ContinuousTime
	return nil
}

func (c *Context) requestTermination() {
	c.terminateRequested = true
	c.log.Info("model requested termination", zap.Float64("t", c.time))
}

func (c *Context) sample() error {
	status, err := c.recorder.Sample(c.inst, c.time)
	c.status = fmi.Worst(c.status, status)
	if err != nil {
		return &PhaseError{Phase: "sample outputs", Status: status, Time: c.time, Err: err}
	}
	return nil
}
