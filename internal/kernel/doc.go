// Package kernel drives one model-exchange simulation run.
//
// A run is owned by a single [Context]:
//
//   - [Initialize]: instantiate, set up, initialize and settle the model,
//     then record the step-0 sample
//   - [Context.Step]: advance by one accepted fixed step with explicit Euler,
//     detect time, state and step events and re-run event iteration
//   - [Context.Terminate]: terminate and free the model exactly once
//
// # Example
//
//	c, err := kernel.Initialize(models.NewBouncingBall(), kernel.Experiment{
//		StartTime: 0, StopTime: 3, StepSize: 0.01,
//	}, kernel.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	for !c.Done() {
//		if _, err := c.Step(); err != nil {
//			break
//		}
//	}
//	c.Terminate()
//	res := c.Result()
//
// # Thread Safety
//
// A Context is NOT safe for concurrent use. Independent runs may proceed in
// parallel, each with its own Context and model instance.
package kernel
