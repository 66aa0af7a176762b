package kernel

import (
	"github.com/san-kum/fmusim/internal/events"
	"github.com/san-kum/fmusim/internal/fmi"
	"go.uber.org/zap"
)

// Step advances the run by exactly one accepted step and returns the worst
// severity the model reported on the way.
//
// On an exhausted or terminated Context it returns Discard and does nothing.
// A Discard from the model aborts the step and is returned with an error;
// the Context and the model's time and states are put back where the step
// started, so the next call retries it. Error and Fatal mark the run failed and run the
// termination routine before returning.
func (c *Context) Step() (fmi.Status, error) {
	if c.Done() {
		return fmi.Discard, nil
	}

	worst := fmi.OK
	call := func(status fmi.Status, phase string) error {
		worst = fmi.Worst(worst, status)
		return c.check(status, phase)
	}

	c.checkpoint()
	fired, err := c.advance(call)
	if err == nil && !c.terminateRequested {
		err = c.settle(fired, call)
	}
	if err == nil && !c.terminateRequested {
		status, sampleErr := c.recorder.Sample(c.inst, c.time)
		worst = fmi.Worst(worst, status)
		c.status = fmi.Worst(c.status, status)
		if sampleErr != nil {
			err = &PhaseError{Phase: "sample outputs", Status: status, Time: c.time, Err: sampleErr}
		} else {
			c.counters.Steps++
			for _, obs := range c.opts.observers {
				obs.OnStep(c, fired)
			}
		}
	}

	if err != nil {
		if worst == fmi.Discard {
			if status, rbErr := c.rollback(); rbErr != nil {
				worst = fmi.Worst(worst, status)
				err = rbErr
			}
		}
		c.fail(worst, err)
		return worst, err
	}
	return worst, nil
}

// checkpoint records what a discarded step has to restore.
func (c *Context) checkpoint() {
	c.saved.time = c.time
	c.saved.info = c.info
	c.saved.counters = c.counters
	c.saved.x = append(c.saved.x[:0], c.x...)
	c.saved.z = append(c.saved.z[:0], c.z...)
	c.saved.prez = append(c.saved.prez[:0], c.prez...)
}

// rollback returns to the last checkpoint and hands the restored time and
// states back to the model. Discrete state the model changed during event
// iteration is not undone.
func (c *Context) rollback() (fmi.Status, error) {
	worst := fmi.OK
	call := func(status fmi.Status, phase string) error {
		worst = fmi.Worst(worst, status)
		return c.check(status, phase)
	}

	if c.phase != ContinuousTime {
		if err := c.enterContinuousTime(call); err != nil {
			return worst, err
		}
	}

	c.time = c.saved.time
	c.info = c.saved.info
	c.counters = c.saved.counters
	copy(c.x, c.saved.x)
	copy(c.z, c.saved.z)
	copy(c.prez, c.saved.prez)

	if err := call(c.inst.SetTime(c.time), "restore time"); err != nil {
		return worst, err
	}
	if c.nx > 0 {
		if err := call(c.inst.SetContinuousStates(c.x), "restore continuous states"); err != nil {
			return worst, err
		}
	}
	c.log.Debug("step discarded, rolled back", zap.Float64("t", c.time))
	return worst, nil
}

// advance integrates one step and classifies the events it produced.
func (c *Context) advance(call checkFunc) (events.Set, error) {
	var fired events.Set

	if c.nx > 0 {
		if err := call(c.inst.GetContinuousStates(c.x), "retrieve states"); err != nil {
			return fired, err
		}
		if err := call(c.inst.GetDerivatives(c.xdot), "retrieve derivatives"); err != nil {
			return fired, err
		}
	}

	tPre := c.time
	next := min(c.time+c.h, c.tEnd)
	next, fired.Time = events.ClampToEvent(next, c.info)
	dt := next - tPre
	c.time = next
	if err := call(c.inst.SetTime(c.time), "set time"); err != nil {
		return fired, err
	}

	if c.nx > 0 {
		c.integ.Step(c.x, c.xdot, dt)
		if err := call(c.inst.SetContinuousStates(c.x), "set continuous states"); err != nil {
			return fired, err
		}
	}
	if c.opts.loggingOn {
		c.log.Debug("step", zap.Float64("t", c.time), zap.Float64("dt", dt))
	}

	if c.nz > 0 {
		copy(c.prez, c.z)
		if err := call(c.inst.GetEventIndicators(c.z), "retrieve event indicators"); err != nil {
			return fired, err
		}
		fired.State = events.StateEvent(c.prez, c.z)
	}

	stepEvent, terminate, status := c.inst.CompletedIntegratorStep(true)
	if err := call(status, "complete integrator step"); err != nil {
		return fired, err
	}
	fired.Step = stepEvent
	if terminate {
		c.requestTermination()
	}
	return fired, nil
}

// settle handles the events of the last step: event mode, event iteration
// and re-entry into continuous time.
func (c *Context) settle(fired events.Set, call checkFunc) error {
	if !fired.Any() {
		return nil
	}

	c.counters.Add(fired)
	c.logEvents(fired)

	if err := call(c.inst.EnterEventMode(), "enter event mode"); err != nil {
		return err
	}
	c.phase = EventMode

	if err := c.iterateEvents(call); err != nil {
		return err
	}
	if c.info.TerminateSimulation {
		c.requestTermination()
		return nil
	}
	return c.enterContinuousTime(call)
}

func (c *Context) logEvents(fired events.Set) {
	if !c.opts.loggingOn {
		return
	}
	if fired.Time {
		c.log.Debug("time event", zap.Float64("t", c.time))
	}
	if fired.State {
		for _, cr := range events.Crossings(c.prez, c.z) {
			c.log.Debug("state event",
				zap.String("direction", cr.Direction()),
				zap.Int("indicator", cr.Index),
				zap.Float64("t", c.time))
		}
	}
	if fired.Step {
		c.log.Debug("step event", zap.Float64("t", c.time))
	}
}

// fail stops the run. Discard leaves the Context alive for the caller to
// decide; anything worse terminates it.
func (c *Context) fail(status fmi.Status, err error) {
	c.log.Warn("step failed", zap.Stringer("status", status), zap.Error(err))
	if !status.Unrecoverable() {
		return
	}
	c.phase = Failed
	c.failure = err
	c.Terminate()
}
