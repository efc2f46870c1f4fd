package epi_views

import (
	"fmt"
	"html/template"
	"strconv"

	"contagion/models"
	"contagion/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// Element ids of the stats view. The page title lives in the root view's head.
const (
	PageTitleId        = "page-title"
	TickCountId        = "tick-count"
	SusceptibleCountId = "susceptible-count"
	InfectedCountId    = "infected-count"
	RecoveredCountId   = "recovered-count"
	statsViewTemplate  = "stats"
)

func titleOf(counts models.Counts) string {
	return fmt.Sprintf("Infected: %d, Recovered: %d", counts.Infected, counts.Recovered)
}

// Stats shows the tick number and the S/I/R counters, and keeps the page title current.
type Stats struct {
	updates <-chan []fastview.EleUpdate
}

func NewStats(done <-chan struct{}, frames <-chan Frame) *Stats {
	return &Stats{
		updates: channerics.Convert(done, frames, statsUpdates),
	}
}

func (st *Stats) Updates() <-chan []fastview.EleUpdate {
	return st.updates
}

func statsUpdates(frame Frame) []fastview.EleUpdate {
	return []fastview.EleUpdate{
		fastview.SetText(PageTitleId, frame.Title()),
		fastview.SetText(TickCountId, strconv.Itoa(frame.Tick)),
		fastview.SetText(SusceptibleCountId, strconv.Itoa(frame.Counts.Susceptible)),
		fastview.SetText(InfectedCountId, strconv.Itoa(frame.Counts.Infected)),
		fastview.SetText(RecoveredCountId, strconv.Itoa(frame.Counts.Recovered)),
	}
}

func (st *Stats) Parse(t *template.Template) (name string, err error) {
	name = statsViewTemplate
	_, err = t.Parse(`{{ define "` + name + `" }}
	<div id="stats" style="font-family: monospace; padding: 10px;">
		<span>tick <b id="` + TickCountId + `">{{ .Tick }}</b></span>
		<span style="color: rgb(51,153,255);">susceptible <b id="` + SusceptibleCountId + `">{{ .Counts.Susceptible }}</b></span>
		<span style="color: rgb(255,51,51);">infected <b id="` + InfectedCountId + `">{{ .Counts.Infected }}</b></span>
		<span style="color: rgb(51,200,51);">recovered <b id="` + RecoveredCountId + `">{{ .Counts.Recovered }}</b></span>
		<span>of {{ .Population }}</span>
	</div>
	{{ end }}`)
	return
}
