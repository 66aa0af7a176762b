package kernel_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/fmusim/internal/events"
	"github.com/san-kum/fmusim/internal/fmi"
	"github.com/san-kum/fmusim/internal/fmi/fmitest"
	"github.com/san-kum/fmusim/internal/kernel"
)

func constant(rate float64) func(t float64, x, dx []float64) {
	return func(_ float64, _ []float64, dx []float64) {
		for i := range dx {
			dx[i] = rate
		}
	}
}

func drain(c *kernel.Context) {
	for !c.Done() {
		_, err := c.Step()
		Expect(err).NotTo(HaveOccurred())
	}
}

type countingObserver struct {
	steps      int
	fired      []events.Set
	terminated int
}

func (o *countingObserver) OnStep(c *kernel.Context, fired events.Set) {
	o.steps++
	o.fired = append(o.fired, fired)
}

func (o *countingObserver) OnTerminate(c *kernel.Context) { o.terminated++ }

var _ = Describe("Context", func() {
	var (
		inst  *fmitest.Instance
		model *fmitest.Model
		exp   kernel.Experiment
	)

	BeforeEach(func() {
		inst = &fmitest.Instance{States: []float64{1.0}, Derivative: constant(1.0)}
		model = &fmitest.Model{Instance: inst}
		exp = kernel.Experiment{StartTime: 0, StopTime: 1, StepSize: 0.25}
	})

	Describe("Initialize", func() {
		It("reaches continuous time and records the initial sample", func() {
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Phase()).To(Equal(kernel.ContinuousTime))
			Expect(c.Time()).To(Equal(0.0))
			Expect(c.NumStates()).To(Equal(1))
			Expect(c.Trajectory().Len()).To(Equal(1))
			Expect(c.Trajectory().Series(0)).To(Equal([]float64{1.0}))
			Expect(inst.Calls[:4]).To(Equal([]string{
				"SetupExperiment", "EnterInitializationMode", "ExitInitializationMode", "NewDiscreteStates",
			}))
			Expect(inst.Count("EnterContinuousTimeMode")).To(Equal(1))
			Expect(model.LoggingOn).To(BeFalse())
		})

		It("rejects an invalid experiment before touching the model", func() {
			for _, bad := range []kernel.Experiment{
				{StartTime: 1, StopTime: 1, StepSize: 0.1},
				{StartTime: 2, StopTime: 1, StepSize: 0.1},
				{StartTime: 0, StopTime: 1, StepSize: 0},
				{StartTime: 0, StopTime: 1, StepSize: -0.1},
			} {
				c, err := kernel.Initialize(model, bad)
				Expect(c).To(BeNil())
				Expect(errors.Is(err, kernel.ErrInvalidExperiment)).To(BeTrue())
			}
			Expect(inst.Calls).To(BeEmpty())
			Expect(model.Callbacks.Logger).To(BeNil())
		})

		It("reports a model that cannot be instantiated", func() {
			model.FailInstantiate = true
			c, err := kernel.Initialize(model, exp)
			Expect(c).To(BeNil())
			Expect(errors.Is(err, kernel.ErrInstantiate)).To(BeTrue())
			Expect(inst.Freed).To(Equal(0))
		})

		DescribeTable("rolls back when a configuration call fails",
			func(call string, status fmi.Status, notCalled string) {
				inst.Fail(call, status)
				c, err := kernel.Initialize(model, exp)
				Expect(c).To(BeNil())

				var pe *kernel.PhaseError
				Expect(errors.As(err, &pe)).To(BeTrue())
				Expect(pe.Status).To(Equal(status))

				Expect(inst.Terminated).To(Equal(1))
				Expect(inst.Freed).To(Equal(1))
				if notCalled != "" {
					Expect(inst.Count(notCalled)).To(BeZero())
				}
			},
			Entry("setup experiment", "SetupExperiment", fmi.Error, "EnterInitializationMode"),
			Entry("enter initialization", "EnterInitializationMode", fmi.Fatal, "ExitInitializationMode"),
			Entry("exit initialization", "ExitInitializationMode", fmi.Error, "NewDiscreteStates"),
			Entry("discrete update", "NewDiscreteStates", fmi.Error, "EnterContinuousTimeMode"),
			Entry("continuous time", "EnterContinuousTimeMode", fmi.Discard, "GetReal"),
			Entry("initial sample", "GetReal", fmi.Error, ""),
		)

		It("accepts warnings during configuration", func() {
			inst.Fail("SetupExperiment", fmi.Warning)
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Status()).To(Equal(fmi.Warning))
		})

		It("forwards debug logging categories", func() {
			c, err := kernel.Initialize(model, exp,
				kernel.WithLoggingOn(true),
				kernel.WithLogCategories("logEvents", "logStatusError"))
			Expect(err).NotTo(HaveOccurred())
			Expect(c).NotTo(BeNil())
			Expect(inst.Categories).To(Equal([]string{"logEvents", "logStatusError"}))
			Expect(model.LoggingOn).To(BeTrue())
		})

		It("fails on a debug logging error", func() {
			inst.Fail("SetDebugLogging", fmi.Error)
			_, err := kernel.Initialize(model, exp, kernel.WithLogCategories("logAll"))
			Expect(err).To(HaveOccurred())
			Expect(inst.Count("SetupExperiment")).To(BeZero())
			Expect(inst.Freed).To(Equal(1))
		})

		It("rejects unknown output variables", func() {
			_, err := kernel.Initialize(model, exp, kernel.WithOutputs("x0", "nope"))
			Expect(errors.Is(err, kernel.ErrUnknownVariable)).To(BeTrue())
			Expect(inst.Freed).To(Equal(1))
		})

		It("records only the requested outputs", func() {
			c, err := kernel.Initialize(model, exp, kernel.WithOutputs("time"))
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Trajectory().Variables()).To(HaveLen(1))
			Expect(c.Trajectory().Variables()[0].Name).To(Equal("time"))
		})

		It("stops before continuous time when the model terminates during initialization", func() {
			inst.OnDiscrete = func(call int, t float64, info *fmi.EventInfo) {
				info.TerminateSimulation = true
			}
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.TerminationRequested()).To(BeTrue())
			Expect(c.Done()).To(BeTrue())
			Expect(inst.Count("EnterContinuousTimeMode")).To(BeZero())
			Expect(c.Trajectory().Len()).To(BeZero())

			calls := len(inst.Calls)
			status, err := c.Step()
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(fmi.Discard))
			Expect(inst.Calls).To(HaveLen(calls))

			Expect(c.Terminate()).To(Succeed())
			Expect(c.Terminate()).To(Succeed())
			Expect(inst.Terminated).To(Equal(1))
			Expect(inst.Freed).To(Equal(1))
			Expect(c.Result().TerminatedByModel).To(BeTrue())
			Expect(c.Result().Counters.Steps).To(BeZero())
		})
	})

	Describe("Step", func() {
		It("advances the state with explicit Euler", func() {
			inst.Derivative = constant(3.0)
			exp.StepSize = 0.1
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())

			status, err := c.Step()
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(fmi.OK))
			Expect(c.Time()).To(BeNumerically("~", 0.1, 1e-12))
			Expect(c.States()[0]).To(BeNumerically("~", 1.3, 1e-12))
			Expect(inst.States[0]).To(BeNumerically("~", 1.3, 1e-12))
		})

		It("ends exactly at the stop time with one sample per accepted step", func() {
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			drain(c)

			Expect(c.Time()).To(Equal(1.0))
			Expect(c.Counters().Steps).To(Equal(4))
			Expect(c.Trajectory().Len()).To(Equal(5))
			Expect(c.Trajectory().Times()).To(Equal([]float64{0, 0.25, 0.5, 0.75, 1.0}))
			Expect(c.Trajectory().Series(0)).To(Equal([]float64{1.0, 1.25, 1.5, 1.75, 2.0}))
		})

		It("shortens the last step to land on the stop time", func() {
			exp.StopTime = 0.6
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			drain(c)

			Expect(c.Time()).To(Equal(0.6))
			Expect(c.Counters().Steps).To(Equal(3))
			Expect(c.States()[0]).To(BeNumerically("~", 1.6, 1e-12))
		})

		It("is a no-op on an exhausted context", func() {
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			drain(c)

			calls := len(inst.Calls)
			counters := c.Counters()
			status, err := c.Step()
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(fmi.Discard))
			Expect(inst.Calls).To(HaveLen(calls))
			Expect(c.Counters()).To(Equal(counters))
			Expect(c.Time()).To(Equal(1.0))
			Expect(c.Trajectory().Len()).To(Equal(5))
		})

		It("clamps to a scheduled event time and counts one time event", func() {
			exp = kernel.Experiment{StartTime: 2.0, StopTime: 3.0, StepSize: 0.5}
			inst.Base = fmi.EventInfo{NextEventTimeDefined: true, NextEventTime: 2.3}
			inst.OnDiscrete = func(call int, t float64, info *fmi.EventInfo) {
				if t >= 2.3 {
					info.NextEventTimeDefined = false
				}
			}
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.Step()
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Time()).To(Equal(2.3))
			Expect(c.Counters().TimeEvents).To(Equal(1))
			Expect(inst.Count("EnterEventMode")).To(Equal(1))
			Expect(inst.Count("EnterContinuousTimeMode")).To(Equal(2))
			Expect(c.Phase()).To(Equal(kernel.ContinuousTime))

			_, err = c.Step()
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Time()).To(BeNumerically("~", 2.8, 1e-12))
			Expect(c.Counters().TimeEvents).To(Equal(1))
		})

		It("counts a time event scheduled exactly at the stop time", func() {
			inst.Base = fmi.EventInfo{NextEventTimeDefined: true, NextEventTime: exp.StopTime}
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			drain(c)

			Expect(c.Time()).To(Equal(exp.StopTime))
			Expect(c.Counters().TimeEvents).To(Equal(1))
			Expect(c.Counters().Steps).To(Equal(4))
			Expect(c.Trajectory().Times()).To(Equal([]float64{0, 0.25, 0.5, 0.75, 1}))
			Expect(inst.Count("EnterEventMode")).To(Equal(1))
			Expect(c.Done()).To(BeTrue())
		})

		It("detects a strict sign change of an event indicator", func() {
			inst.Nz = 1
			inst.Indicator = func(t float64, _ []float64, z []float64) { z[0] = 0.9 - t }
			exp.StopTime = 2
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			drain(c)

			Expect(c.Counters().StateEvents).To(Equal(1))
			Expect(c.Counters().Steps).To(Equal(8))
			Expect(inst.Count("EnterEventMode")).To(Equal(1))
		})

		It("does not treat touching zero as a state event", func() {
			inst.Nz = 1
			inst.Indicator = func(t float64, _ []float64, z []float64) { z[0] = 1 - t }
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			drain(c)

			Expect(c.Counters().StateEvents).To(BeZero())
		})

		It("handles step events reported by the model", func() {
			inst.OnStepCompleted = func(call int, t float64) (bool, bool) { return call == 1, false }
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			drain(c)

			Expect(c.Counters().StepEvents).To(Equal(1))
			Expect(c.Counters().Steps).To(Equal(4))
			Expect(inst.Count("EnterEventMode")).To(Equal(1))
			Expect(inst.Count("NewDiscreteStates")).To(Equal(2))
		})

		It("counts every event kind that fires on the same step", func() {
			inst.Nz = 1
			inst.Indicator = func(t float64, _ []float64, z []float64) { z[0] = 0.9 - t }
			inst.Base = fmi.EventInfo{NextEventTimeDefined: true, NextEventTime: 1.0}
			inst.OnDiscrete = func(call int, t float64, info *fmi.EventInfo) {
				if t >= 1.0 {
					info.NextEventTimeDefined = false
				}
			}
			inst.OnStepCompleted = func(call int, t float64) (bool, bool) { return t == 1.0, false }
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			drain(c)

			Expect(c.Counters()).To(Equal(events.Counters{Steps: 4, TimeEvents: 1, StateEvents: 1, StepEvents: 1}))
			Expect(inst.Count("EnterEventMode")).To(Equal(1))
		})

		It("stops without sampling when the model terminates at step completion", func() {
			inst.OnStepCompleted = func(call int, t float64) (bool, bool) { return true, call == 2 }
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			drain(c)

			Expect(c.TerminationRequested()).To(BeTrue())
			Expect(c.Time()).To(Equal(0.75))
			Expect(c.Counters().Steps).To(Equal(2))
			Expect(c.Counters().StepEvents).To(Equal(2))
			Expect(c.Trajectory().Len()).To(Equal(3))

			calls := len(inst.Calls)
			status, _ := c.Step()
			Expect(status).To(Equal(fmi.Discard))
			Expect(inst.Calls).To(HaveLen(calls))

			Expect(c.Terminate()).To(Succeed())
			Expect(inst.Terminated).To(Equal(1))
			Expect(inst.Freed).To(Equal(1))
		})

		It("stops when a later discrete update requests termination", func() {
			inst.OnStepCompleted = func(call int, t float64) (bool, bool) { return call == 0, false }
			inst.OnDiscrete = func(call int, t float64, info *fmi.EventInfo) {
				info.TerminateSimulation = call == 1
			}
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			drain(c)

			Expect(c.Time()).To(Equal(0.25))
			Expect(c.Counters().Steps).To(BeZero())
			Expect(c.Counters().StepEvents).To(Equal(1))
			Expect(c.Trajectory().Len()).To(Equal(1))
			Expect(inst.Count("EnterContinuousTimeMode")).To(Equal(1))
		})

		It("iterates discrete updates until the model settles", func() {
			inst.OnStepCompleted = func(call int, t float64) (bool, bool) { return call == 0, false }
			inst.OnDiscrete = func(call int, t float64, info *fmi.EventInfo) {
				info.NewDiscreteStatesNeeded = call >= 1 && call < 3
				info.ValuesOfContinuousStatesChanged = true
			}
			c, err := kernel.Initialize(model, exp, kernel.WithLoggingOn(true))
			Expect(err).NotTo(HaveOccurred())
			drain(c)

			Expect(inst.Count("NewDiscreteStates")).To(Equal(4))
		})

		It("reports warnings without stopping", func() {
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			inst.Fail("SetTime", fmi.Warning)

			status, err := c.Step()
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(fmi.Warning))
			Expect(c.Counters().Steps).To(Equal(1))
		})

		It("surfaces a discarded step without terminating", func() {
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			inst.Fail("GetDerivatives", fmi.Discard)

			status, err := c.Step()
			Expect(status).To(Equal(fmi.Discard))
			Expect(err).To(HaveOccurred())
			Expect(c.Phase()).NotTo(Equal(kernel.Terminated))
			Expect(inst.Freed).To(BeZero())
			Expect(c.Counters().Steps).To(BeZero())

			Expect(c.Terminate()).To(Succeed())
			Expect(inst.Freed).To(Equal(1))
		})

		It("resumes cleanly after a discarded step", func() {
			inst.Nz = 1
			inst.Indicator = func(t float64, _ []float64, z []float64) { z[0] = 0.3 - t }
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.Step()
			Expect(err).NotTo(HaveOccurred())

			inst.Fail("GetEventIndicators", fmi.Discard)
			status, err := c.Step()
			Expect(status).To(Equal(fmi.Discard))
			Expect(err).To(HaveOccurred())
			Expect(c.Done()).To(BeFalse())
			Expect(c.Time()).To(Equal(0.25))
			Expect(c.States()).To(Equal([]float64{1.25}))
			Expect(c.EventIndicators()[0]).To(BeNumerically("~", 0.05, 1e-12))
			Expect(inst.Time).To(Equal(0.25))
			Expect(inst.States).To(Equal([]float64{1.25}))
			Expect(c.Trajectory().Len()).To(Equal(2))

			delete(inst.Statuses, "GetEventIndicators")
			drain(c)

			Expect(c.Trajectory().Times()).To(Equal([]float64{0, 0.25, 0.5, 0.75, 1}))
			Expect(c.Trajectory().Series(0)).To(Equal([]float64{1, 1.25, 1.5, 1.75, 2}))
			Expect(c.Counters().StateEvents).To(Equal(1))
			Expect(c.Counters().Steps).To(Equal(4))
		})

		It("rolls back counted events when entering event mode is discarded", func() {
			inst.Nz = 1
			inst.Indicator = func(t float64, _ []float64, z []float64) { z[0] = 0.3 - t }
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			_, err = c.Step()
			Expect(err).NotTo(HaveOccurred())

			inst.Fail("EnterEventMode", fmi.Discard)
			status, err := c.Step()
			Expect(status).To(Equal(fmi.Discard))
			Expect(err).To(HaveOccurred())
			Expect(c.Counters().StateEvents).To(BeZero())
			Expect(c.Phase()).To(Equal(kernel.ContinuousTime))
			Expect(c.Time()).To(Equal(0.25))

			delete(inst.Statuses, "EnterEventMode")
			drain(c)

			Expect(c.Counters().StateEvents).To(Equal(1))
			Expect(c.Trajectory().Times()).To(Equal([]float64{0, 0.25, 0.5, 0.75, 1}))
		})

		DescribeTable("terminates the run on an unrecoverable severity",
			func(call string, status fmi.Status) {
				c, err := kernel.Initialize(model, exp)
				Expect(err).NotTo(HaveOccurred())
				inst.OnStepCompleted = func(int, float64) (bool, bool) { return true, false }
				inst.Fail(call, status)

				got, err := c.Step()
				Expect(got).To(Equal(status))
				var pe *kernel.PhaseError
				Expect(errors.As(err, &pe)).To(BeTrue())
				Expect(pe.Status).To(Equal(status))

				Expect(c.Phase()).To(Equal(kernel.Terminated))
				Expect(inst.Terminated).To(Equal(1))
				Expect(inst.Freed).To(Equal(1))
				Expect(c.Result().Err).To(HaveOccurred())
				Expect(c.Counters().Steps).To(BeZero())

				again, err := c.Step()
				Expect(err).NotTo(HaveOccurred())
				Expect(again).To(Equal(fmi.Discard))
				Expect(c.Terminate()).To(Succeed())
				Expect(inst.Freed).To(Equal(1))
			},
			Entry("states", "GetContinuousStates", fmi.Error),
			Entry("set time", "SetTime", fmi.Fatal),
			Entry("set states", "SetContinuousStates", fmi.Error),
			Entry("step completion", "CompletedIntegratorStep", fmi.Error),
			Entry("event mode", "EnterEventMode", fmi.Error),
			Entry("discrete update", "NewDiscreteStates", fmi.Fatal),
			Entry("output sample", "GetReal", fmi.Error),
		)
	})

	Describe("Terminate", func() {
		It("releases the model once and hands over the trajectory", func() {
			obs := &countingObserver{}
			c, err := kernel.Initialize(model, exp, kernel.WithObserver(obs))
			Expect(err).NotTo(HaveOccurred())
			drain(c)

			Expect(c.Terminate()).To(Succeed())
			Expect(c.Terminate()).To(Succeed())
			Expect(inst.Terminated).To(Equal(1))
			Expect(inst.Freed).To(Equal(1))
			Expect(c.Phase()).To(Equal(kernel.Terminated))
			Expect(c.Trajectory()).To(BeNil())
			Expect(c.States()).To(BeEmpty())

			res := c.Result()
			Expect(res.Trajectory.Len()).To(Equal(5))
			Expect(res.EndTime).To(Equal(1.0))
			Expect(res.Counters.Steps).To(Equal(4))
			Expect(res.Err).NotTo(HaveOccurred())

			Expect(obs.steps).To(Equal(4))
			Expect(obs.terminated).To(Equal(1))
		})

		It("can stop a run midway", func() {
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			_, err = c.Step()
			Expect(err).NotTo(HaveOccurred())

			Expect(c.Terminate()).To(Succeed())
			Expect(c.Result().EndTime).To(Equal(0.25))
			Expect(c.Result().Trajectory.Len()).To(Equal(2))

			status, err := c.Step()
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(fmi.Discard))
		})

		It("reports a failing terminate call", func() {
			c, err := kernel.Initialize(model, exp)
			Expect(err).NotTo(HaveOccurred())
			inst.Fail("Terminate", fmi.Error)

			Expect(c.Terminate()).To(HaveOccurred())
			Expect(inst.Freed).To(Equal(1))
			Expect(c.Terminate()).To(Succeed())
		})
	})

	It("logs a model-requested termination", func() {
		core, logs := observer.New(zapcore.InfoLevel)
		inst.OnStepCompleted = func(call int, t float64) (bool, bool) { return false, true }
		c, err := kernel.Initialize(model, exp, kernel.WithLogger(zap.New(core)))
		Expect(err).NotTo(HaveOccurred())
		drain(c)

		Expect(logs.FilterMessage("model requested termination").Len()).To(Equal(1))
	})

	It("runs independent contexts side by side", func() {
		other := &fmitest.Instance{States: []float64{10.0}, Derivative: constant(-2.0)}
		a, err := kernel.Initialize(model, exp)
		Expect(err).NotTo(HaveOccurred())
		b, err := kernel.Initialize(&fmitest.Model{Instance: other}, exp)
		Expect(err).NotTo(HaveOccurred())

		for !a.Done() || !b.Done() {
			a.Step()
			b.Step()
		}

		Expect(a.States()[0]).To(BeNumerically("~", 2.0, 1e-12))
		Expect(b.States()[0]).To(BeNumerically("~", 8.0, 1e-12))
	})
})
