package fmi

// Type selects the interface flavour requested at instantiation.
type Type int

const (
	ModelExchange Type = iota
	CoSimulation
)

func (t Type) String() string {
	if t == CoSimulation {
		return "CoSimulation"
	}
	return "ModelExchange"
}

type ValueReference uint32

// EventInfo is updated by NewDiscreteStates during event iteration.
type EventInfo struct {
	NewDiscreteStatesNeeded           bool
	TerminateSimulation               bool
	NominalsOfContinuousStatesChanged bool
	ValuesOfContinuousStatesChanged   bool
	NextEventTimeDefined              bool
	NextEventTime                     float64
}

// CallbackFunctions are handed to the model at instantiation.
type CallbackFunctions struct {
	Logger Logger
}

// Model is one concrete backend: it describes its variables and creates
// independent instances.
type Model interface {
	Description() *ModelDescription
	Instantiate(instanceName string, kind Type, guid, resourceLocation string,
		callbacks CallbackFunctions, visible, loggingOn bool) Instance
}

// Instance is an instantiated model. Every call is made from a single
// goroutine; implementations need no locking.
type Instance interface {
	SetDebugLogging(loggingOn bool, categories []string) Status
	SetupExperiment(toleranceDefined bool, tolerance, startTime float64, stopTimeDefined bool, stopTime float64) Status
	EnterInitializationMode() Status
	ExitInitializationMode() Status

	NumberOfContinuousStates() int
	NumberOfEventIndicators() int

	NewDiscreteStates(info *EventInfo) Status
	EnterEventMode() Status
	EnterContinuousTimeMode() Status
	CompletedIntegratorStep(noSetFMUStatePriorToCurrentPoint bool) (stepEvent, terminate bool, status Status)

	SetTime(t float64) Status
	GetContinuousStates(x []float64) Status
	SetContinuousStates(x []float64) Status
	GetDerivatives(dx []float64) Status
	GetEventIndicators(z []float64) Status

	GetReal(refs []ValueReference, values []float64) Status
	GetInteger(refs []ValueReference, values []int32) Status

	Terminate() Status
	FreeInstance()
}
