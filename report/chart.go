package report

import (
	"errors"
	"fmt"
	"io"

	"contagion/epidemic"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	CHART_WIDTH  = 800
	CHART_HEIGHT = 300
)

// ErrNotEnoughHistory is returned when a history window is too short to draw a line.
var ErrNotEnoughHistory = errors.New("not enough history to chart")

// Series colors: blue, red and green for susceptible, infected and recovered.
var (
	SusceptibleColor = drawing.Color{R: 51, G: 153, B: 255, A: 255}
	InfectedColor    = drawing.Color{R: 255, G: 51, B: 51, A: 255}
	RecoveredColor   = drawing.Color{R: 51, G: 255, B: 51, A: 255}
)

func toFloats(seq []int) []float64 {
	out := make([]float64, len(seq))
	for i, v := range seq {
		out[i] = float64(v)
	}
	return out
}

// ticksOf returns the tick number of each entry of the window.
func ticksOf(hist epidemic.HistorySnapshot) []float64 {
	xs := make([]float64, hist.Len())
	for i := range xs {
		xs[i] = float64(hist.Start + i)
	}
	return xs
}

func seriesOf(name string, xs []float64, seq []int, color drawing.Color) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		Name:    name,
		XValues: xs,
		YValues: toFloats(seq),
		Style: chart.Style{
			StrokeColor: color,
			StrokeWidth: 2.0,
		},
	}
}

// RenderHistoryChart writes the S/I/R time series of @hist to @w as a PNG. The y axis is
// fixed to [0, population] so successive renders of a run share a scale.
func RenderHistoryChart(w io.Writer, hist epidemic.HistorySnapshot, population int) error {
	if hist.Len() < 2 {
		return fmt.Errorf("%w: %d entries", ErrNotEnoughHistory, hist.Len())
	}
	if population <= 0 {
		return fmt.Errorf("chart population must be positive, got %d", population)
	}

	xs := ticksOf(hist)
	graph := chart.Chart{
		Width:  CHART_WIDTH,
		Height: CHART_HEIGHT,
		XAxis: chart.XAxis{
			Name:  "tick",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: xs[0], Max: xs[len(xs)-1]},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "agents",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: float64(population)},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		Series: []chart.Series{
			seriesOf("susceptible", xs, hist.Susceptible, SusceptibleColor),
			seriesOf("infected", xs, hist.Infected, InfectedColor),
			seriesOf("recovered", xs, hist.Recovered, RecoveredColor),
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}
