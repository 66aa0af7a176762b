package kernel

import (
	"errors"
	"testing"

	"github.com/san-kum/fmusim/internal/fmi"
)

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{Uninstantiated, "uninstantiated"},
		{Configuring, "configuring"},
		{EventIterating, "event-iterating"},
		{ContinuousTime, "continuous-time"},
		{EventMode, "event-mode"},
		{Terminated, "terminated"},
		{Failed, "failed"},
		{Phase(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(tt.phase), got, tt.want)
		}
	}
}

func TestExperiment_ExpectedSteps(t *testing.T) {
	tests := []struct {
		exp  Experiment
		want int
	}{
		{Experiment{0, 3, 0.25}, 12},
		{Experiment{0, 1, 0.3}, 4},
		{Experiment{2, 3, 0.5}, 2},
	}

	for _, tt := range tests {
		if got := tt.exp.ExpectedSteps(); got != tt.want {
			t.Errorf("%+v.ExpectedSteps() = %d, want %d", tt.exp, got, tt.want)
		}
	}
}

func TestPhaseError(t *testing.T) {
	err := &PhaseError{Phase: "set time", Status: fmi.Error, Time: 1.5}
	if err.Error() != "could not set time at t=1.5: Error" {
		t.Errorf("unexpected message %q", err.Error())
	}

	wrapped := &PhaseError{Phase: "instantiate model", Status: fmi.Error, Err: ErrInstantiate}
	if !errors.Is(wrapped, ErrInstantiate) {
		t.Error("expected PhaseError to unwrap to ErrInstantiate")
	}
}
