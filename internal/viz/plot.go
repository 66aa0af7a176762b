package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/fmusim/internal/trajectory"
)

// Downsample keeps at most n evenly spaced points of values, always
// including the last one.
func Downsample(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return values
	}
	out := make([]float64, n)
	last := len(values) - 1
	for i := range out {
		out[i] = values[i*last/(n-1)]
	}
	return out
}

// Plot renders one series as an ASCII chart.
func Plot(values []float64, width, height int, caption string) string {
	if len(values) == 0 {
		return Subtle.Render("no data")
	}
	return asciigraph.Plot(Downsample(values, width),
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// PlotTrajectory renders up to limit variables of tr, one chart each.
func PlotTrajectory(tr *trajectory.Trajectory, width, height, limit int) []string {
	var charts []string
	for i, v := range tr.Variables {
		if limit > 0 && i >= limit {
			break
		}
		caption := fmt.Sprintf("%s vs time [%g, %g]", v.Name, tr.Times[0], tr.Times[len(tr.Times)-1])
		charts = append(charts, Plot(tr.Series[i], width, height, caption))
	}
	return charts
}
