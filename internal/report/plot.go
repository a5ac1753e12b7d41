package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/linkage-sim/linkage/internal/driver"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	chartStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
)

// Summary renders a terminal summary block for a finished run.
func Summary(meta *RunMetadata) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(meta.Scenario) + "\n")
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("run", meta.ID)
	row("integrator", meta.Integrator)
	row("dt", fmt.Sprintf("%g s", meta.Dt))
	row("duration", fmt.Sprintf("%g s", meta.Duration))
	row("steps", fmt.Sprintf("%d", meta.StepsTaken))
	row("energy drift", fmt.Sprintf("%.3e", meta.EnergyDrift))
	for name, v := range meta.Metrics {
		row(name, fmt.Sprintf("%.6g", v))
	}
	return b.String()
}

// PlotCoordinate charts coordinate q[idx] across the recorded frames.
func PlotCoordinate(res *driver.Result, idx, width, height int) (string, error) {
	return plotSeries(res, idx, false, width, height)
}

// PlotSpeed charts speed u[idx] across the recorded frames.
func PlotSpeed(res *driver.Result, idx, width, height int) (string, error) {
	return plotSeries(res, idx, true, width, height)
}

func plotSeries(res *driver.Result, idx int, speeds bool, width, height int) (string, error) {
	if len(res.Frames) == 0 {
		return "", fmt.Errorf("report: no frames to plot")
	}
	pick := func(fr driver.Frame) []float64 {
		if speeds {
			return fr.U
		}
		return fr.Q
	}
	kind := "q"
	if speeds {
		kind = "u"
	}
	if idx < 0 || idx >= len(pick(res.Frames[0])) {
		return "", fmt.Errorf("report: %s index %d out of range", kind, idx)
	}
	series := make([]float64, len(res.Frames))
	for i, fr := range res.Frames {
		series[i] = pick(fr)[idx]
	}
	chart := asciigraph.Plot(series,
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Caption(fmt.Sprintf("%s%d over %g s", kind, idx, res.Frames[len(res.Frames)-1].Time)))
	return chartStyle.Render(chart), nil
}

// Warnings renders run errors, empty string when the run was clean.
func Warnings(res *driver.Result) string {
	if len(res.Errors) == 0 {
		return ""
	}
	var b strings.Builder
	for _, err := range res.Errors {
		b.WriteString(warnStyle.Render("! "+err.Error()) + "\n")
	}
	return b.String()
}
