package models

import "github.com/san-kum/fmusim/internal/fmi"

const stCounter fmi.ValueReference = 1

// NewStair returns a purely discrete model: an integer counter that steps
// up by one at every whole second through time events and asks the
// simulator to stop once it reaches the limit.
func NewStair() *Model {
	desc := &fmi.ModelDescription{
		ModelName:       "Stair",
		ModelIdentifier: "Stair",
		GUID:            "{BD403596-3166-4232-ABC2-132BDF73E644}",
		Description:     "Counter driven by time events",
		DefaultExperiment: fmi.DefaultExperiment{
			StartTime: 0,
			StopTime:  20,
			StepSize:  0.25,
		},
		Variables: []fmi.ScalarVariable{
			timeVariable(),
			{Name: "counter", Type: fmi.Integer, Reference: stCounter, Causality: fmi.Output, Description: "Counts the seconds"},
		},
	}
	params := map[string]float64{"period": 1.0, "limit": 10}
	return newModel(desc, params, func(p map[string]float64) system {
		return &stair{period: p["period"], limit: int32(p["limit"]), next: p["period"]}
	})
}

type stair struct {
	period  float64
	limit   int32
	counter int32
	next    float64
}

func (s *stair) numStates() int     { return 0 }
func (s *stair) numIndicators() int { return 0 }

func (s *stair) start([]float64) {}

func (s *stair) derivatives(float64, []float64, []float64) {}

func (s *stair) indicators(float64, []float64, []float64) {}

func (s *stair) update(t float64, _ []float64, info *fmi.EventInfo) bool {
	if t >= s.next {
		s.counter++
		s.next += s.period
	}
	if s.counter >= s.limit {
		info.TerminateSimulation = true
	} else {
		info.NextEventTimeDefined = true
		info.NextEventTime = s.next
	}
	return false
}

func (s *stair) real(fmi.ValueReference, float64, []float64) (float64, bool) { return 0, false }

func (s *stair) integer(ref fmi.ValueReference) (int32, bool) {
	if ref == stCounter {
		return s.counter, true
	}
	return 0, false
}
