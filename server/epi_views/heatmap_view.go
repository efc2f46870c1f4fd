package epi_views

import (
	"fmt"
	"html/template"

	"contagion/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// HeatmapImageId is the img element showing the density field.
const HeatmapImageId = "heatmap-img"

// Heatmap shows the density field as an image rendered by the server. Each frame only moves
// the image source to the new tick; the browser fetches the pixels itself.
type Heatmap struct {
	src           string
	width, height int
	updates       <-chan []fastview.EleUpdate
}

// NewHeatmap returns a heatmap view of the image served at @src, displayed at @width x @height.
func NewHeatmap(
	done <-chan struct{},
	frames <-chan Frame,
	src string,
	width, height int,
) *Heatmap {
	hm := &Heatmap{src: src, width: width, height: height}
	hm.updates = channerics.Convert(done, frames, hm.onUpdate)
	return hm
}

func (hm *Heatmap) Updates() <-chan []fastview.EleUpdate {
	return hm.updates
}

func (hm *Heatmap) imageSrc(tick int) string {
	return fmt.Sprintf("%s?tick=%d", hm.src, tick)
}

func (hm *Heatmap) onUpdate(frame Frame) []fastview.EleUpdate {
	return []fastview.EleUpdate{
		fastview.SetAttr(HeatmapImageId, "src", hm.imageSrc(frame.Tick)),
	}
}

func (hm *Heatmap) Parse(t *template.Template) (name string, err error) {
	name = "heatmap"
	_, err = t.Funcs(template.FuncMap{
		"heatmapSrc": hm.imageSrc,
	}).Parse(`{{ define "` + name + `" }}
	<div style="padding: 10px;">
		<img id="` + HeatmapImageId + `" src="{{ heatmapSrc .Tick }}"
			width="` + fmt.Sprint(hm.width) + `" height="` + fmt.Sprint(hm.height) + `"
			style="background: black; image-rendering: pixelated;" alt="infection density">
	</div>
	{{ end }}`)
	return
}
