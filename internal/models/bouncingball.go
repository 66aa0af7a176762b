package models

import "github.com/san-kum/fmusim/internal/fmi"

const (
	bbH fmi.ValueReference = iota + 1
	bbDerH
	bbV
	bbDerV
	bbG
	bbE
	bbVMin
)

// NewBouncingBall drops a ball from height h0 and reflects it off the floor
// with restitution e. Once a bounce leaves less than v_min the ball stays
// on the floor.
//
// State: [h, v]
//
//	dh/dt = v
//	dv/dt = g
func NewBouncingBall() *Model {
	desc := &fmi.ModelDescription{
		ModelName:       "BouncingBall",
		ModelIdentifier: "BouncingBall",
		GUID:            "{1AE5E10D-9521-4DE3-80B9-D0EAAA7D5AF1}",
		Description:     "Ball falling under gravity and bouncing off the floor",
		DefaultExperiment: fmi.DefaultExperiment{
			StartTime: 0,
			StopTime:  3,
			StepSize:  0.01,
		},
		Variables: []fmi.ScalarVariable{
			timeVariable(),
			{Name: "h", Type: fmi.Real, Reference: bbH, Causality: fmi.Output, Description: "Position of the ball"},
			{Name: "der(h)", Type: fmi.Real, Reference: bbDerH, Causality: fmi.Local, Description: "Derivative of h"},
			{Name: "v", Type: fmi.Real, Reference: bbV, Causality: fmi.Output, Description: "Velocity of the ball"},
			{Name: "der(v)", Type: fmi.Real, Reference: bbDerV, Causality: fmi.Local, Description: "Derivative of v"},
			{Name: "g", Type: fmi.Real, Reference: bbG, Causality: fmi.Parameter, Description: "Gravity acting on the ball"},
			{Name: "e", Type: fmi.Real, Reference: bbE, Causality: fmi.Parameter, Description: "Coefficient of restitution"},
			{Name: "v_min", Type: fmi.Real, Reference: bbVMin, Causality: fmi.Parameter, Description: "Velocity below which the ball stops bouncing"},
		},
	}
	params := map[string]float64{
		"h0":    1.0,
		"g":     -9.81,
		"e":     0.7,
		"v_min": 0.1,
	}
	return newModel(desc, params, func(p map[string]float64) system {
		return &bouncingBall{h0: p["h0"], g: p["g"], e: p["e"], vMin: p["v_min"]}
	})
}

type bouncingBall struct {
	h0, g, e, vMin float64
	bounces        int
}

func (b *bouncingBall) numStates() int     { return 2 }
func (b *bouncingBall) numIndicators() int { return 1 }

func (b *bouncingBall) start(x []float64) {
	x[0], x[1] = b.h0, 0
}

func (b *bouncingBall) derivatives(_ float64, x, dx []float64) {
	dx[0] = x[1]
	dx[1] = b.g
}

// The indicator is h with its sign inverted after every bounce, so the
// crossing just handled is not seen again on the next step.
func (b *bouncingBall) indicators(_ float64, x, z []float64) {
	z[0] = x[0]
	if b.bounces%2 == 1 {
		z[0] = -x[0]
	}
}

func (b *bouncingBall) update(_ float64, x []float64, _ *fmi.EventInfo) bool {
	h, v := x[0], x[1]
	if h > 0 || v >= 0 {
		return false
	}
	b.bounces++
	x[0] = 0
	x[1] = -b.e * v
	if x[1] < b.vMin {
		x[1] = 0
		b.g = 0
	}
	return true
}

func (b *bouncingBall) real(ref fmi.ValueReference, _ float64, x []float64) (float64, bool) {
	switch ref {
	case bbH:
		return x[0], true
	case bbDerH, bbV:
		return x[1], true
	case bbDerV, bbG:
		return b.g, true
	case bbE:
		return b.e, true
	case bbVMin:
		return b.vMin, true
	}
	return 0, false
}

func (b *bouncingBall) integer(fmi.ValueReference) (int32, bool) { return 0, false }
