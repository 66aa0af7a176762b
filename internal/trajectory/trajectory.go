package trajectory

import (
	"fmt"

	"github.com/san-kum/fmusim/internal/fmi"
)

// Trajectory is a finished recording, indexed by accepted step.
type Trajectory struct {
	Variables []fmi.ScalarVariable
	Times     []float64
	Series    [][]float64
}

func (t *Trajectory) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Times)
}

func (t *Trajectory) Names() []string {
	names := make([]string, len(t.Variables))
	for i, v := range t.Variables {
		names[i] = v.Name
	}
	return names
}

// Column returns the series recorded for the named variable.
func (t *Trajectory) Column(name string) ([]float64, error) {
	for i, v := range t.Variables {
		if v.Name == name {
			return t.Series[i], nil
		}
	}
	return nil, fmt.Errorf("no recorded variable %q", name)
}

// Row returns the values of every variable at sample k.
func (t *Trajectory) Row(k int) []float64 {
	row := make([]float64, len(t.Series))
	for i, s := range t.Series {
		row[i] = s[k]
	}
	return row
}
