package models

import (
	"fmt"
	"sort"

	"github.com/san-kum/fmusim/internal/fmi"
)

// Log categories understood by every built-in model.
const (
	LogEvents        = "logEvents"
	LogStatusWarning = "logStatusWarning"
	LogStatusError   = "logStatusError"
	LogAll           = "logAll"
)

var logCategories = []string{LogEvents, LogStatusWarning, LogStatusError, LogAll}

// system is the physics behind a model: equations, discrete updates and
// value access by reference. States live in the instance.
type system interface {
	numStates() int
	numIndicators() int
	start(x []float64)
	derivatives(t float64, x, dx []float64)
	indicators(t float64, x, z []float64)
	update(t float64, x []float64, info *fmi.EventInfo) (changed bool)
	real(ref fmi.ValueReference, t float64, x []float64) (float64, bool)
	integer(ref fmi.ValueReference) (int32, bool)
}

// Model is a built-in model-exchange backend.
type Model struct {
	desc   *fmi.ModelDescription
	params map[string]float64
	build  func(params map[string]float64) system
}

func newModel(desc *fmi.ModelDescription, params map[string]float64, build func(map[string]float64) system) *Model {
	desc.LogCategories = logCategories
	return &Model{desc: desc, params: params, build: build}
}

func (m *Model) Description() *fmi.ModelDescription { return m.desc }

// GetParams returns a copy of the tunable parameters.
func (m *Model) GetParams() map[string]float64 {
	out := make(map[string]float64, len(m.params))
	for k, v := range m.params {
		out[k] = v
	}
	return out
}

// SetParam changes a parameter for instances created afterwards.
func (m *Model) SetParam(name string, value float64) error {
	if _, ok := m.params[name]; !ok {
		names := make([]string, 0, len(m.params))
		for k := range m.params {
			names = append(names, k)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown param %q for %s (have %v)", name, m.desc.ModelName, names)
	}
	m.params[name] = value
	return nil
}

func (m *Model) Instantiate(instanceName string, kind fmi.Type, guid, resourceLocation string,
	callbacks fmi.CallbackFunctions, visible, loggingOn bool) fmi.Instance {
	if kind != fmi.ModelExchange {
		callbacks.Logger.Log(instanceName, fmi.Error, LogStatusError,
			fmt.Sprintf("%s only supports model exchange, got %s", m.desc.ModelName, kind))
		return nil
	}
	if guid != m.desc.GUID {
		callbacks.Logger.Log(instanceName, fmi.Error, LogStatusError,
			fmt.Sprintf("wrong GUID %s, expected %s", guid, m.desc.GUID))
		return nil
	}

	sys := m.build(m.GetParams())
	inst := &instance{
		name:      instanceName,
		sys:       sys,
		log:       callbacks.Logger,
		loggingOn: loggingOn,
		x:         make([]float64, sys.numStates()),
	}
	sys.start(inst.x)
	return inst
}

type mode int

const (
	instantiated mode = iota
	initializationMode
	eventMode
	continuousTimeMode
	terminated
)

func (m mode) String() string {
	switch m {
	case instantiated:
		return "instantiated"
	case initializationMode:
		return "initialization mode"
	case eventMode:
		return "event mode"
	case continuousTimeMode:
		return "continuous-time mode"
	default:
		return "terminated"
	}
}

// instance implements fmi.Instance on top of a system, enforcing the
// model-exchange call sequence.
type instance struct {
	name       string
	sys        system
	log        fmi.Logger
	loggingOn  bool
	categories map[string]bool

	mode        mode
	time        float64
	stopTime    float64
	stopDefined bool
	x           []float64
}

func (in *instance) logf(status fmi.Status, category, format string, args ...any) {
	if !status.Failed() && !in.enabled(category) {
		return
	}
	in.log.Log(in.name, status, category, fmt.Sprintf(format, args...))
}

func (in *instance) enabled(category string) bool {
	if !in.loggingOn {
		return false
	}
	if len(in.categories) == 0 || in.categories[LogAll] {
		return true
	}
	return in.categories[category]
}

// allowed returns Error, with a log message, when the call is not legal in
// the current mode.
func (in *instance) allowed(fn string, modes ...mode) fmi.Status {
	for _, m := range modes {
		if in.mode == m {
			return fmi.OK
		}
	}
	in.logf(fmi.Error, LogStatusError, "%s: illegal call sequence in %s", fn, in.mode)
	return fmi.Error
}

func (in *instance) checkLen(fn string, got, want int) fmi.Status {
	if got != want {
		in.logf(fmi.Error, LogStatusError, "%s: expected %d values, got %d", fn, want, got)
		return fmi.Error
	}
	return fmi.OK
}

func (in *instance) SetDebugLogging(loggingOn bool, categories []string) fmi.Status {
	if s := in.allowed("SetDebugLogging", instantiated, initializationMode, eventMode, continuousTimeMode); s != fmi.OK {
		return s
	}
	in.loggingOn = loggingOn
	in.categories = make(map[string]bool, len(categories))
	for _, c := range categories {
		known := false
		for _, k := range logCategories {
			if c == k {
				known = true
				break
			}
		}
		if !known {
			in.logf(fmi.Warning, LogStatusWarning, "SetDebugLogging: unknown category %q", c)
			return fmi.Warning
		}
		in.categories[c] = true
	}
	return fmi.OK
}

func (in *instance) SetupExperiment(toleranceDefined bool, tolerance, startTime float64, stopTimeDefined bool, stopTime float64) fmi.Status {
	if s := in.allowed("SetupExperiment", instantiated); s != fmi.OK {
		return s
	}
	in.time = startTime
	in.stopDefined = stopTimeDefined
	in.stopTime = stopTime
	return fmi.OK
}

func (in *instance) EnterInitializationMode() fmi.Status {
	if s := in.allowed("EnterInitializationMode", instantiated); s != fmi.OK {
		return s
	}
	in.mode = initializationMode
	return fmi.OK
}

func (in *instance) ExitInitializationMode() fmi.Status {
	if s := in.allowed("ExitInitializationMode", initializationMode); s != fmi.OK {
		return s
	}
	in.mode = eventMode
	return fmi.OK
}

func (in *instance) NumberOfContinuousStates() int { return in.sys.numStates() }

func (in *instance) NumberOfEventIndicators() int { return in.sys.numIndicators() }

func (in *instance) NewDiscreteStates(info *fmi.EventInfo) fmi.Status {
	if s := in.allowed("NewDiscreteStates", eventMode); s != fmi.OK {
		return s
	}
	*info = fmi.EventInfo{}
	if in.sys.update(in.time, in.x, info) {
		info.ValuesOfContinuousStatesChanged = true
		in.logf(fmi.OK, LogEvents, "state values changed at t=%g", in.time)
	}
	if info.TerminateSimulation {
		in.logf(fmi.OK, LogEvents, "terminate simulation at t=%g", in.time)
	}
	return fmi.OK
}

func (in *instance) EnterEventMode() fmi.Status {
	if s := in.allowed("EnterEventMode", eventMode, continuousTimeMode); s != fmi.OK {
		return s
	}
	in.mode = eventMode
	return fmi.OK
}

func (in *instance) EnterContinuousTimeMode() fmi.Status {
	if s := in.allowed("EnterContinuousTimeMode", eventMode); s != fmi.OK {
		return s
	}
	in.mode = continuousTimeMode
	return fmi.OK
}

func (in *instance) CompletedIntegratorStep(noSetFMUStatePriorToCurrentPoint bool) (bool, bool, fmi.Status) {
	if s := in.allowed("CompletedIntegratorStep", continuousTimeMode); s != fmi.OK {
		return false, false, s
	}
	return false, false, fmi.OK
}

func (in *instance) SetTime(t float64) fmi.Status {
	if s := in.allowed("SetTime", eventMode, continuousTimeMode); s != fmi.OK {
		return s
	}
	if in.stopDefined && t > in.stopTime {
		in.logf(fmi.Warning, LogStatusWarning, "SetTime: t=%g is past the stop time %g", t, in.stopTime)
		in.time = t
		return fmi.Warning
	}
	in.time = t
	return fmi.OK
}

func (in *instance) GetContinuousStates(x []float64) fmi.Status {
	if s := in.allowed("GetContinuousStates", initializationMode, eventMode, continuousTimeMode); s != fmi.OK {
		return s
	}
	if s := in.checkLen("GetContinuousStates", len(x), len(in.x)); s != fmi.OK {
		return s
	}
	copy(x, in.x)
	return fmi.OK
}

func (in *instance) SetContinuousStates(x []float64) fmi.Status {
	if s := in.allowed("SetContinuousStates", continuousTimeMode); s != fmi.OK {
		return s
	}
	if s := in.checkLen("SetContinuousStates", len(x), len(in.x)); s != fmi.OK {
		return s
	}
	copy(in.x, x)
	return fmi.OK
}

func (in *instance) GetDerivatives(dx []float64) fmi.Status {
	if s := in.allowed("GetDerivatives", initializationMode, eventMode, continuousTimeMode); s != fmi.OK {
		return s
	}
	if s := in.checkLen("GetDerivatives", len(dx), len(in.x)); s != fmi.OK {
		return s
	}
	in.sys.derivatives(in.time, in.x, dx)
	return fmi.OK
}

func (in *instance) GetEventIndicators(z []float64) fmi.Status {
	if s := in.allowed("GetEventIndicators", initializationMode, eventMode, continuousTimeMode); s != fmi.OK {
		return s
	}
	if s := in.checkLen("GetEventIndicators", len(z), in.sys.numIndicators()); s != fmi.OK {
		return s
	}
	in.sys.indicators(in.time, in.x, z)
	return fmi.OK
}

func (in *instance) GetReal(refs []fmi.ValueReference, values []float64) fmi.Status {
	if s := in.checkLen("GetReal", len(values), len(refs)); s != fmi.OK {
		return s
	}
	for i, ref := range refs {
		if ref == timeRef {
			values[i] = in.time
			continue
		}
		v, ok := in.sys.real(ref, in.time, in.x)
		if !ok {
			in.logf(fmi.Error, LogStatusError, "GetReal: unknown value reference %d", ref)
			return fmi.Error
		}
		values[i] = v
	}
	return fmi.OK
}

func (in *instance) GetInteger(refs []fmi.ValueReference, values []int32) fmi.Status {
	if s := in.checkLen("GetInteger", len(values), len(refs)); s != fmi.OK {
		return s
	}
	for i, ref := range refs {
		v, ok := in.sys.integer(ref)
		if !ok {
			in.logf(fmi.Error, LogStatusError, "GetInteger: unknown value reference %d", ref)
			return fmi.Error
		}
		values[i] = v
	}
	return fmi.OK
}

func (in *instance) Terminate() fmi.Status {
	if s := in.allowed("Terminate", initializationMode, eventMode, continuousTimeMode); s != fmi.OK {
		return s
	}
	in.mode = terminated
	return fmi.OK
}

func (in *instance) FreeInstance() {
	in.x = nil
	in.mode = terminated
}

// timeRef is the reference every built-in model uses for the independent
// variable.
const timeRef fmi.ValueReference = 0

func timeVariable() fmi.ScalarVariable {
	return fmi.ScalarVariable{
		Name:        "time",
		Type:        fmi.Real,
		Reference:   timeRef,
		Causality:   fmi.Independent,
		Description: "Simulation time",
	}
}
