package events

import "github.com/san-kum/fmusim/internal/fmi"

// Set records which event kinds fired on one step. Several may fire at once.
type Set struct {
	Time  bool
	State bool
	Step  bool
}

func (s Set) Any() bool {
	return s.Time || s.State || s.Step
}

// Counters accumulates accepted steps and events over a run.
type Counters struct {
	Steps       int `json:"steps"`
	TimeEvents  int `json:"time_events"`
	StateEvents int `json:"state_events"`
	StepEvents  int `json:"step_events"`
}

func (c *Counters) Add(s Set) {
	if s.Time {
		c.TimeEvents++
	}
	if s.State {
		c.StateEvents++
	}
	if s.Step {
		c.StepEvents++
	}
}

// ClampToEvent limits candidate to the scheduled event time when one is
// defined and reached. The second result reports a time event.
func ClampToEvent(candidate float64, info fmi.EventInfo) (float64, bool) {
	if info.NextEventTimeDefined && candidate >= info.NextEventTime {
		return info.NextEventTime, true
	}
	return candidate, false
}

// StateEvent reports a strict sign flip of any indicator between prev and
// cur. Touching zero or leaving zero does not count.
func StateEvent(prev, cur []float64) bool {
	n := min(len(prev), len(cur))
	for i := 0; i < n; i++ {
		if prev[i]*cur[i] < 0 {
			return true
		}
	}
	return false
}

// Crossing is one indicator that changed sign.
type Crossing struct {
	Index  int
	Rising bool
}

// Direction renders the crossing the way the run log prints it.
func (c Crossing) Direction() string {
	if c.Rising {
		return "-/-"
	}
	return "-\\-"
}

func Crossings(prev, cur []float64) []Crossing {
	var out []Crossing
	n := min(len(prev), len(cur))
	for i := 0; i < n; i++ {
		if prev[i]*cur[i] < 0 {
			out = append(out, Crossing{Index: i, Rising: prev[i] < 0})
		}
	}
	return out
}
