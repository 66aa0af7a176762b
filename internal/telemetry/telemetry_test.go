package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/fmusim/internal/fmi"
	"github.com/san-kum/fmusim/internal/fmi/fmitest"
	"github.com/san-kum/fmusim/internal/kernel"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	return m, reg
}

func runFake(t *testing.T, m *Metrics, inst *fmitest.Instance) *kernel.Context {
	t.Helper()
	c, err := kernel.Initialize(&fmitest.Model{Instance: inst},
		kernel.Experiment{StartTime: 0, StopTime: 1, StepSize: 0.25},
		kernel.WithObserver(m))
	require.NoError(t, err)
	for !c.Done() {
		c.Step()
	}
	c.Terminate()
	return c
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestCompletedRun(t *testing.T) {
	m, _ := newTestMetrics(t)
	inst := &fmitest.Instance{States: []float64{1}, Nz: 1}
	inst.Indicator = func(t float64, _ []float64, z []float64) { z[0] = 0.6 - t }
	inst.OnStepCompleted = func(call int, _ float64) (bool, bool) { return call == 0, false }

	runFake(t, m, inst)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.StepsTotal.WithLabelValues("fake")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("fake", "state")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("fake", "step")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("fake", "time")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("fake", OutcomeCompleted)))
}

func TestTrajectoryBytes(t *testing.T) {
	m, _ := newTestMetrics(t)
	runFake(t, m, &fmitest.Instance{States: []float64{1}})

	assert.Equal(t, 0.0, testutil.ToFloat64(m.TrajectoryBytes))
	// one output plus the time column, five samples each
	assert.Equal(t, 80.0, testutil.ToFloat64(m.TrajectoryPeakBytes))
}

func TestOutcomes(t *testing.T) {
	m, _ := newTestMetrics(t)

	failing := &fmitest.Instance{States: []float64{1}}
	failing.OnStepCompleted = func(int, float64) (bool, bool) {
		failing.Fail("SetTime", fmi.Error)
		return false, false
	}
	runFake(t, m, failing)

	stopping := &fmitest.Instance{States: []float64{1}}
	stopping.OnStepCompleted = func(call int, _ float64) (bool, bool) { return false, call == 1 }
	runFake(t, m, stopping)

	c, err := kernel.Initialize(&fmitest.Model{Instance: &fmitest.Instance{}},
		kernel.Experiment{StartTime: 0, StopTime: 1, StepSize: 0.25}, kernel.WithObserver(m))
	require.NoError(t, err)
	c.Step()
	c.Terminate()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("fake", OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("fake", OutcomeTerminated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("fake", OutcomeStopped)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("fake", OutcomeCompleted)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TrajectoryBytes))
}

func TestWriteFile(t *testing.T) {
	m, reg := newTestMetrics(t)
	runFake(t, m, &fmitest.Instance{States: []float64{1}})

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, WriteFile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, `fmusim_kernel_steps_total{model="fake"} 4`), out)
	assert.Contains(t, out, "fmusim_trajectory_peak_bytes 80")
}

func TestLint(t *testing.T) {
	_, reg := newTestMetrics(t)
	problems, err := testutil.GatherAndLint(reg)
	require.NoError(t, err)
	assert.Empty(t, problems)
}
