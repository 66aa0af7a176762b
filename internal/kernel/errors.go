package kernel

import (
	"errors"
	"fmt"

	"github.com/san-kum/fmusim/internal/fmi"
)

var (
	// ErrInvalidExperiment indicates stop <= start or a non-positive step.
	ErrInvalidExperiment = errors.New("kernel: invalid experiment (need stop > start and step > 0)")

	// ErrInstantiate indicates the model returned no instance.
	ErrInstantiate = errors.New("kernel: could not instantiate model")

	// ErrDimension indicates a negative state or indicator count.
	ErrDimension = errors.New("kernel: negative number of states or event indicators")

	// ErrUnknownVariable indicates a requested output the model does not have.
	ErrUnknownVariable = errors.New("kernel: unknown output variable")
)

// PhaseError identifies the lifecycle phase that failed and the severity the
// model reported.
type PhaseError struct {
	Phase  string
	Status fmi.Status
	Time   float64
	Err    error
}

func (e *PhaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not %s at t=%g: %v", e.Phase, e.Time, e.Err)
	}
	return fmt.Sprintf("could not %s at t=%g: %s", e.Phase, e.Time, e.Status)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
