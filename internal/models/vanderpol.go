package models

import "github.com/san-kum/fmusim/internal/fmi"

const (
	vdpX0 fmi.ValueReference = iota + 1
	vdpDerX0
	vdpX1
	vdpDerX1
	vdpMu
)

// NewVanDerPol returns the Van der Pol oscillator.
// State: [x0, x1] where x1 = dx0/dt
// Equations:
//
//	dx0/dt = x1
//	dx1/dt = μ(1 - x0²)x1 - x0
func NewVanDerPol() *Model {
	desc := &fmi.ModelDescription{
		ModelName:       "VanDerPol",
		ModelIdentifier: "VanDerPol",
		GUID:            "{BD403596-3166-4232-ABC2-132BDF73E645}",
		Description:     "Van der Pol oscillator",
		DefaultExperiment: fmi.DefaultExperiment{
			StartTime: 0,
			StopTime:  20,
			StepSize:  0.01,
		},
		Variables: []fmi.ScalarVariable{
			timeVariable(),
			{Name: "x0", Type: fmi.Real, Reference: vdpX0, Causality: fmi.Output, Description: "Position"},
			{Name: "der(x0)", Type: fmi.Real, Reference: vdpDerX0, Causality: fmi.Local},
			{Name: "x1", Type: fmi.Real, Reference: vdpX1, Causality: fmi.Output, Description: "Velocity"},
			{Name: "der(x1)", Type: fmi.Real, Reference: vdpDerX1, Causality: fmi.Local},
			{Name: "mu", Type: fmi.Real, Reference: vdpMu, Causality: fmi.Parameter, Description: "Nonlinearity"},
		},
	}
	params := map[string]float64{
		"mu": 1.0, // classic value for the limit cycle
		"x0": 2.0,
		"x1": 0.0,
	}
	return newModel(desc, params, func(p map[string]float64) system {
		return &vanDerPol{mu: p["mu"], x0: p["x0"], x1: p["x1"]}
	})
}

type vanDerPol struct {
	mu     float64
	x0, x1 float64
}

func (v *vanDerPol) numStates() int     { return 2 }
func (v *vanDerPol) numIndicators() int { return 0 }

func (v *vanDerPol) start(x []float64) { x[0], x[1] = v.x0, v.x1 }

func (v *vanDerPol) derivatives(_ float64, x, dx []float64) {
	dx[0] = x[1]
	dx[1] = v.mu*(1-x[0]*x[0])*x[1] - x[0]
}

func (v *vanDerPol) indicators(float64, []float64, []float64) {}

func (v *vanDerPol) update(float64, []float64, *fmi.EventInfo) bool { return false }

func (v *vanDerPol) real(ref fmi.ValueReference, _ float64, x []float64) (float64, bool) {
	switch ref {
	case vdpX0:
		return x[0], true
	case vdpX1:
		return x[1], true
	case vdpDerX0:
		return x[1], true
	case vdpDerX1:
		return v.mu*(1-x[0]*x[0])*x[1] - x[0], true
	case vdpMu:
		return v.mu, true
	}
	return 0, false
}

func (v *vanDerPol) integer(fmi.ValueReference) (int32, bool) { return 0, false }
