// epi_views contains views derived from the Frame view-model.
package epi_views

import (
	"contagion/epidemic"
	"contagion/models"
)

// Frame is what the page views need from one tick. Fields are immediately usable as view
// parameters, so templates never reach back into engine types.
type Frame struct {
	Tick       int
	Population int
	Counts     models.Counts
	// Window is the history length the graph's x axis spans.
	Window  int
	History epidemic.HistorySnapshot
}

// NewConverter returns the conversion from tick reports to frames for a graph spanning
// @window ticks.
func NewConverter(window int) func(epidemic.TickReport) Frame {
	if window < 1 {
		window = 1
	}
	return func(report epidemic.TickReport) Frame {
		return Frame{
			Tick:       report.Tick,
			Population: report.Counts.Total(),
			Counts:     report.Counts,
			Window:     window,
			History:    report.History,
		}
	}
}

// Title is the page title: the headline counters of the run.
func (f Frame) Title() string {
	return titleOf(f.Counts)
}
