package viz

import (
	"fmt"
	"strings"

	"github.com/san-kum/fmusim/internal/kernel"
)

// Summary renders the end-of-run report.
func Summary(res *kernel.Result) string {
	var s strings.Builder

	status := StatusRunning.Render("completed")
	switch {
	case res.Err != nil:
		status = StatusFailed.Render("failed")
	case res.TerminatedByModel:
		status = StatusPaused.Render("terminated by model")
	case res.EndTime < res.Experiment.StopTime:
		status = StatusPaused.Render("stopped")
	}

	s.WriteString(HeaderStyle.Render(res.Model) + "\n")
	s.WriteString(Metric("outcome", "") + status + "\n")
	s.WriteString(Metric("interval", fmt.Sprintf("[%g, %g]", res.Experiment.StartTime, res.EndTime)) + "\n")
	s.WriteString(Metric("steps", fmt.Sprintf("%d", res.Counters.Steps)) + "\n")
	s.WriteString(Metric("step size", fmt.Sprintf("%g", res.Experiment.StepSize)) + "\n")
	s.WriteString(Metric("time events", fmt.Sprintf("%d", res.Counters.TimeEvents)) + "\n")
	s.WriteString(Metric("state events", fmt.Sprintf("%d", res.Counters.StateEvents)) + "\n")
	s.WriteString(Metric("step events", fmt.Sprintf("%d", res.Counters.StepEvents)) + "\n")
	s.WriteString(Metric("model status", res.StatusText))
	if res.Err != nil {
		s.WriteString("\n" + StatusFailed.Render(res.Err.Error()))
	}
	return Panel.Render(s.String())
}
