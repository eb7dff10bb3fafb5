// Package viz renders trajectories and state snapshots in the
// terminal: asciigraph plots for stored runs, a lipgloss stage ladder,
// and a bubbletea live view.
package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/simstate/internal/sim"
)

// PlotComponent draws one y component of a captured trajectory.
func PlotComponent(frames []sim.Frame, idx, width, height int) string {
	if len(frames) == 0 {
		return "(no frames)"
	}
	if idx < 0 || idx >= len(frames[0].Y) {
		return fmt.Sprintf("(component %d out of range, run has %d)", idx, len(frames[0].Y))
	}
	series := make([]float64, len(frames))
	for i, f := range frames {
		series[i] = f.Y[idx]
	}
	return asciigraph.Plot(series,
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Caption(fmt.Sprintf("y[%d] over %d frames, t=%.3f..%.3f",
			idx, len(frames), frames[0].Time, frames[len(frames)-1].Time)))
}
