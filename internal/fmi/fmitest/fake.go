// Package fmitest provides a scripted fmi.Instance for exercising the kernel
// without a real model.
package fmitest

import (
	"math"
	"strconv"

	"github.com/san-kum/fmusim/internal/fmi"
)

// Instance is a scripted model instance. Zero hooks fall back to a model
// with constant states, zero indicators and no events.
//
// Value reference 0 reads the current time; reference k reads state k-1.
type Instance struct {
	States   []float64
	Nz       int
	Time     float64
	Statuses map[string]fmi.Status

	// Base is copied into the event info on every discrete update.
	Base fmi.EventInfo

	Derivative      func(t float64, x, dx []float64)
	Indicator       func(t float64, x, z []float64)
	OnDiscrete      func(call int, t float64, info *fmi.EventInfo)
	OnStepCompleted func(call int, t float64) (stepEvent, terminate bool)
	Integer         func(ref fmi.ValueReference, t float64) int32

	Calls      []string
	Categories []string
	Freed      int
	Terminated int

	discreteCalls int
	stepCalls     int
}

func (f *Instance) call(name string) fmi.Status {
	f.Calls = append(f.Calls, name)
	if s, ok := f.Statuses[name]; ok {
		return s
	}
	return fmi.OK
}

// Count returns how many times name was called.
func (f *Instance) Count(name string) int {
	n := 0
	for _, c := range f.Calls {
		if c == name {
			n++
		}
	}
	return n
}

// Fail makes every later call to name return status.
func (f *Instance) Fail(name string, status fmi.Status) {
	if f.Statuses == nil {
		f.Statuses = make(map[string]fmi.Status)
	}
	f.Statuses[name] = status
}

func (f *Instance) SetDebugLogging(loggingOn bool, categories []string) fmi.Status {
	f.Categories = append([]string(nil), categories...)
	return f.call("SetDebugLogging")
}

func (f *Instance) SetupExperiment(toleranceDefined bool, tolerance, startTime float64, stopTimeDefined bool, stopTime float64) fmi.Status {
	f.Time = startTime
	return f.call("SetupExperiment")
}

func (f *Instance) EnterInitializationMode() fmi.Status { return f.call("EnterInitializationMode") }
func (f *Instance) ExitInitializationMode() fmi.Status  { return f.call("ExitInitializationMode") }

func (f *Instance) NumberOfContinuousStates() int { return len(f.States) }
func (f *Instance) NumberOfEventIndicators() int  { return f.Nz }

func (f *Instance) NewDiscreteStates(info *fmi.EventInfo) fmi.Status {
	*info = f.Base
	if f.OnDiscrete != nil {
		f.OnDiscrete(f.discreteCalls, f.Time, info)
	}
	f.discreteCalls++
	return f.call("NewDiscreteStates")
}

func (f *Instance) EnterEventMode() fmi.Status          { return f.call("EnterEventMode") }
func (f *Instance) EnterContinuousTimeMode() fmi.Status { return f.call("EnterContinuousTimeMode") }

func (f *Instance) CompletedIntegratorStep(noSetFMUStatePriorToCurrentPoint bool) (bool, bool, fmi.Status) {
	var stepEvent, terminate bool
	if f.OnStepCompleted != nil {
		stepEvent, terminate = f.OnStepCompleted(f.stepCalls, f.Time)
	}
	f.stepCalls++
	return stepEvent, terminate, f.call("CompletedIntegratorStep")
}

func (f *Instance) SetTime(t float64) fmi.Status {
	f.Time = t
	return f.call("SetTime")
}

func (f *Instance) GetContinuousStates(x []float64) fmi.Status {
	copy(x, f.States)
	return f.call("GetContinuousStates")
}

func (f *Instance) SetContinuousStates(x []float64) fmi.Status {
	copy(f.States, x)
	return f.call("SetContinuousStates")
}

func (f *Instance) GetDerivatives(dx []float64) fmi.Status {
	for i := range dx {
		dx[i] = 0
	}
	if f.Derivative != nil {
		f.Derivative(f.Time, f.States, dx)
	}
	return f.call("GetDerivatives")
}

func (f *Instance) GetEventIndicators(z []float64) fmi.Status {
	for i := range z {
		z[i] = 0
	}
	if f.Indicator != nil {
		f.Indicator(f.Time, f.States, z)
	}
	return f.call("GetEventIndicators")
}

func (f *Instance) GetReal(refs []fmi.ValueReference, values []float64) fmi.Status {
	for i, ref := range refs {
		if ref == 0 || int(ref) > len(f.States) {
			values[i] = f.Time
			continue
		}
		values[i] = f.States[ref-1]
	}
	return f.call("GetReal")
}

func (f *Instance) GetInteger(refs []fmi.ValueReference, values []int32) fmi.Status {
	for i, ref := range refs {
		if f.Integer != nil {
			values[i] = f.Integer(ref, f.Time)
			continue
		}
		values[i] = int32(math.Floor(f.Time))
	}
	return f.call("GetInteger")
}

func (f *Instance) Terminate() fmi.Status {
	f.Terminated++
	return f.call("Terminate")
}

func (f *Instance) FreeInstance() {
	f.Freed++
	f.Calls = append(f.Calls, "FreeInstance")
}

// Model hands out a single scripted Instance.
type Model struct {
	Desc     *fmi.ModelDescription
	Instance *Instance

	// FailInstantiate makes Instantiate return nil.
	FailInstantiate bool
	LoggingOn       bool
	Callbacks       fmi.CallbackFunctions
}

func (m *Model) Description() *fmi.ModelDescription {
	if m.Desc == nil {
		m.Desc = Describe(len(m.Instance.States))
	}
	return m.Desc
}

func (m *Model) Instantiate(instanceName string, kind fmi.Type, guid, resourceLocation string,
	callbacks fmi.CallbackFunctions, visible, loggingOn bool) fmi.Instance {
	m.LoggingOn = loggingOn
	m.Callbacks = callbacks
	if m.FailInstantiate {
		return nil
	}
	return m.Instance
}

// Describe builds a description with one output per state, named x0..xn-1,
// using the reference convention of Instance.
func Describe(nx int) *fmi.ModelDescription {
	d := &fmi.ModelDescription{
		ModelName:       "fake",
		ModelIdentifier: "fake",
		GUID:            "{00000000-0000-0000-0000-000000000000}",
		Variables: []fmi.ScalarVariable{
			{Name: "time", Type: fmi.Real, Reference: 0, Causality: fmi.Independent},
		},
	}
	for i := 0; i < nx; i++ {
		d.Variables = append(d.Variables, fmi.ScalarVariable{
			Name:      "x" + strconv.Itoa(i),
			Type:      fmi.Real,
			Reference: fmi.ValueReference(i + 1),
			Causality: fmi.Output,
		})
	}
	return d
}
