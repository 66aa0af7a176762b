package models

import "github.com/san-kum/fmusim/internal/fmi"

const (
	dqX fmi.ValueReference = iota + 1
	dqDerX
	dqK
)

// NewDahlquist returns the linear test equation dx/dt = -k*x, x(0) = x0.
// It has no events, which makes it the reference for integrator accuracy.
func NewDahlquist() *Model {
	desc := &fmi.ModelDescription{
		ModelName:       "Dahlquist",
		ModelIdentifier: "Dahlquist",
		GUID:            "{221063D2-EF4A-45FE-B954-B5BFEEA9A59B}",
		Description:     "Dahlquist test equation",
		DefaultExperiment: fmi.DefaultExperiment{
			StartTime: 0,
			StopTime:  10,
			StepSize:  0.1,
		},
		Variables: []fmi.ScalarVariable{
			timeVariable(),
			{Name: "x", Type: fmi.Real, Reference: dqX, Causality: fmi.Output, Description: "State"},
			{Name: "der(x)", Type: fmi.Real, Reference: dqDerX, Causality: fmi.Local, Description: "Derivative of x"},
			{Name: "k", Type: fmi.Real, Reference: dqK, Causality: fmi.Parameter, Description: "Decay rate"},
		},
	}
	params := map[string]float64{"x0": 1.0, "k": 1.0}
	return newModel(desc, params, func(p map[string]float64) system {
		return &dahlquist{x0: p["x0"], k: p["k"]}
	})
}

type dahlquist struct {
	x0, k float64
}

func (d *dahlquist) numStates() int     { return 1 }
func (d *dahlquist) numIndicators() int { return 0 }

func (d *dahlquist) start(x []float64) { x[0] = d.x0 }

func (d *dahlquist) derivatives(_ float64, x, dx []float64) {
	dx[0] = -d.k * x[0]
}

func (d *dahlquist) indicators(float64, []float64, []float64) {}

func (d *dahlquist) update(float64, []float64, *fmi.EventInfo) bool { return false }

func (d *dahlquist) real(ref fmi.ValueReference, _ float64, x []float64) (float64, bool) {
	switch ref {
	case dqX:
		return x[0], true
	case dqDerX:
		return -d.k * x[0], true
	case dqK:
		return d.k, true
	}
	return 0, false
}

func (d *dahlquist) integer(fmi.ValueReference) (int32, bool) { return 0, false }
