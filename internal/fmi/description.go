package fmi

import "fmt"

type VariableType int

const (
	Real VariableType = iota
	Integer
)

func (t VariableType) String() string {
	if t == Integer {
		return "Integer"
	}
	return "Real"
}

type Causality int

const (
	Local Causality = iota
	Parameter
	Input
	Output
	Independent
)

func (c Causality) String() string {
	switch c {
	case Parameter:
		return "parameter"
	case Input:
		return "input"
	case Output:
		return "output"
	case Independent:
		return "independent"
	default:
		return "local"
	}
}

// ScalarVariable describes one model variable addressable by reference.
type ScalarVariable struct {
	Name        string
	Type        VariableType
	Reference   ValueReference
	Causality   Causality
	Description string
}

type DefaultExperiment struct {
	StartTime float64
	StopTime  float64
	StepSize  float64
}

// ModelDescription is the metadata a backend publishes about itself.
type ModelDescription struct {
	ModelName         string
	ModelIdentifier   string
	GUID              string
	Description       string
	LogCategories     []string
	DefaultExperiment DefaultExperiment
	Variables         []ScalarVariable
}

// Outputs returns the variables recorded by default: the declared outputs,
// or every non-parameter, non-independent variable when none are declared.
func (d *ModelDescription) Outputs() []ScalarVariable {
	var out []ScalarVariable
	for _, v := range d.Variables {
		if v.Causality == Output {
			out = append(out, v)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, v := range d.Variables {
		if v.Causality == Local || v.Causality == Input {
			out = append(out, v)
		}
	}
	return out
}

func (d *ModelDescription) Lookup(name string) (ScalarVariable, error) {
	for _, v := range d.Variables {
		if v.Name == name {
			return v, nil
		}
	}
	return ScalarVariable{}, fmt.Errorf("variable %q not found in %s", name, d.ModelName)
}
