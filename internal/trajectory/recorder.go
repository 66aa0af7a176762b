package trajectory

import (
	"fmt"

	"github.com/san-kum/fmusim/internal/fmi"
)

// Recorder appends one sample per output variable per accepted step. The
// buffers grow on demand; the capacity hint only avoids early reallocation.
type Recorder struct {
	vars   []fmi.ScalarVariable
	times  []float64
	series [][]float64

	realRefs []fmi.ValueReference
	realIdx  []int
	intRefs  []fmi.ValueReference
	intIdx   []int
	realBuf  []float64
	intBuf   []int32
}

func NewRecorder(vars []fmi.ScalarVariable, capacityHint int) *Recorder {
	if capacityHint < 1 {
		capacityHint = 1
	}
	r := &Recorder{
		vars:   append([]fmi.ScalarVariable(nil), vars...),
		times:  make([]float64, 0, capacityHint),
		series: make([][]float64, len(vars)),
	}
	for i, v := range vars {
		r.series[i] = make([]float64, 0, capacityHint)
		switch v.Type {
		case fmi.Integer:
			r.intRefs = append(r.intRefs, v.Reference)
			r.intIdx = append(r.intIdx, i)
		default:
			r.realRefs = append(r.realRefs, v.Reference)
			r.realIdx = append(r.realIdx, i)
		}
	}
	r.realBuf = make([]float64, len(r.realRefs))
	r.intBuf = make([]int32, len(r.intRefs))
	return r
}

// Sample queries every variable from inst and appends the values at t.
// Nothing is appended unless every query succeeds.
func (r *Recorder) Sample(inst fmi.Instance, t float64) (fmi.Status, error) {
	status := fmi.OK
	if len(r.realRefs) > 0 {
		s := inst.GetReal(r.realRefs, r.realBuf)
		status = fmi.Worst(status, s)
		if s.Failed() {
			return status, fmt.Errorf("get real outputs at t=%g: %s", t, s)
		}
	}
	if len(r.intRefs) > 0 {
		s := inst.GetInteger(r.intRefs, r.intBuf)
		status = fmi.Worst(status, s)
		if s.Failed() {
			return status, fmt.Errorf("get integer outputs at t=%g: %s", t, s)
		}
	}

	r.times = append(r.times, t)
	for j, i := range r.realIdx {
		r.series[i] = append(r.series[i], r.realBuf[j])
	}
	for j, i := range r.intIdx {
		r.series[i] = append(r.series[i], float64(r.intBuf[j]))
	}
	return status, nil
}

// Len returns the number of recorded samples.
func (r *Recorder) Len() int { return len(r.times) }

func (r *Recorder) Variables() []fmi.ScalarVariable { return r.vars }

func (r *Recorder) Times() []float64 { return r.times }

func (r *Recorder) Series(i int) []float64 { return r.series[i] }

// Last returns the most recent value of variable i.
func (r *Recorder) Last(i int) (float64, bool) {
	s := r.series[i]
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}

// Bytes estimates the memory held by the sample buffers.
func (r *Recorder) Bytes() int {
	n := cap(r.times)
	for _, s := range r.series {
		n += cap(s)
	}
	return n * 8
}

// Detach moves the recorded data into a Trajectory and empties r.
func (r *Recorder) Detach() *Trajectory {
	tr := &Trajectory{
		Variables: r.vars,
		Times:     r.times,
		Series:    r.series,
	}
	r.vars, r.times, r.series = nil, nil, nil
	r.realRefs, r.realIdx, r.intRefs, r.intIdx = nil, nil, nil, nil
	r.realBuf, r.intBuf = nil, nil
	return tr
}
