package kernel

import (
	"github.com/san-kum/fmusim/internal/fmi"
	"go.uber.org/zap"
)

// Terminate ends the run: the model is terminated and freed exactly once,
// the numeric buffers are released and the recorded trajectory moves into
// Result. Calling it again is a no-op.
//
// It is safe at any point after Initialize, including mid-run.
func (c *Context) Terminate() error {
	if c.result != nil {
		return nil
	}

	var err error
	if c.inst != nil {
		status := c.inst.Terminate()
		c.status = fmi.Worst(c.status, status)
		if status.Failed() {
			err = &PhaseError{Phase: "terminate model", Status: status, Time: c.time}
			if c.failure == nil {
				c.failure = err
			}
		}
		c.inst.FreeInstance()
		c.inst = nil
	}

	res := &Result{
		Model: c.desc.ModelName,
		Experiment: Experiment{
			StartTime: c.tStart,
			StopTime:  c.tEnd,
			StepSize:  c.h,
		},
		EndTime:           c.time,
		Counters:          c.counters,
		Status:            c.status,
		StatusText:        c.status.String(),
		TerminatedByModel: c.terminateRequested,
		Err:               c.failure,
	}
	if c.recorder != nil {
		res.Trajectory = c.recorder.Detach()
		c.recorder = nil
	}
	c.result = res

	c.x, c.xdot, c.z, c.prez = nil, nil, nil, nil
	c.phase = Terminated

	if c.failure == nil {
		c.log.Info("simulation finished",
			zap.Float64("start", c.tStart),
			zap.Float64("stop", c.time),
			zap.Int("steps", c.counters.Steps),
			zap.Float64("step_size", c.h),
			zap.Int("time_events", c.counters.TimeEvents),
			zap.Int("state_events", c.counters.StateEvents),
			zap.Int("step_events", c.counters.StepEvents))
	}

	for _, obs := range c.opts.observers {
		obs.OnTerminate(c)
	}
	return err
}
