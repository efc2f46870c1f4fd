package epi_views

import (
	"fmt"
	"html/template"
	"strings"

	"contagion/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

const (
	GRAPH_WIDTH  = 800
	GRAPH_HEIGHT = 200
)

// Polyline ids of the history graph, one per health state.
const (
	SusceptibleLineId = "history-susceptible"
	InfectedLineId    = "history-infected"
	RecoveredLineId   = "history-recovered"
)

// History plots the trailing window of S/I/R counts as three svg polylines. The x axis spans
// the frame's window and the y axis the whole population, so the lines scroll left once the
// window fills.
type History struct {
	updates <-chan []fastview.EleUpdate
}

func NewHistory(done <-chan struct{}, frames <-chan Frame) *History {
	return &History{
		updates: channerics.Convert(done, frames, historyUpdates),
	}
}

func (hv *History) Updates() <-chan []fastview.EleUpdate {
	return hv.updates
}

// polyPoints returns the svg 'points' of @seq scaled into the graph.
func polyPoints(seq []int, window, population int) string {
	if population < 1 {
		population = 1
	}
	xScale := float64(GRAPH_WIDTH) / float64(max(window, 1))
	yScale := float64(GRAPH_HEIGHT) / float64(population)

	sb := strings.Builder{}
	for i, v := range seq {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d,%d", int(float64(i)*xScale), GRAPH_HEIGHT-int(float64(v)*yScale))
	}
	return sb.String()
}

func historyUpdates(frame Frame) []fastview.EleUpdate {
	points := func(seq []int) string {
		return polyPoints(seq, frame.Window, frame.Population)
	}
	return []fastview.EleUpdate{
		fastview.SetAttr(SusceptibleLineId, "points", points(frame.History.Susceptible)),
		fastview.SetAttr(InfectedLineId, "points", points(frame.History.Infected)),
		fastview.SetAttr(RecoveredLineId, "points", points(frame.History.Recovered)),
	}
}

func (hv *History) Parse(t *template.Template) (name string, err error) {
	name = "history"
	line := func(id, color string) string {
		return `<polyline id="` + id + `" fill="none" stroke="` + color + `" stroke-width="2" points="" />`
	}
	_, err = t.Parse(`{{ define "` + name + `" }}
	<div style="padding: 10px;">
		<svg id="history" xmlns="http://www.w3.org/2000/svg"
			width="` + fmt.Sprint(GRAPH_WIDTH) + `px" height="` + fmt.Sprint(GRAPH_HEIGHT) + `px"
			style="background: black;">
			` + line(SusceptibleLineId, "rgb(51,153,255)") + `
			` + line(InfectedLineId, "rgb(255,51,51)") + `
			` + line(RecoveredLineId, "rgb(51,255,51)") + `
		</svg>
		<div><a href="/chart.png">chart</a></div>
	</div>
	{{ end }}`)
	return
}
