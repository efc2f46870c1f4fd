package root_view

import (
	"context"
	"html/template"
	"time"

	"contagion/epidemic"
	"contagion/server/epi_views"
	"contagion/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// Batches of ele-updates are flushed to the client at most this often.
const batchResolution = time.Millisecond * 20

// Settings are the page parameters that do not change during a run.
type Settings struct {
	// HeatmapSrc is the path serving the density image.
	HeatmapSrc string
	// HeatmapWidth and HeatmapHeight are the displayed image size in pixels.
	HeatmapWidth, HeatmapHeight int
	// Window is the history length the graph spans.
	Window int
	// WebsocketPath is the path of the ele-update websocket.
	WebsocketPath string
}

// RootView is the main page: the container for all the view components and the wiring of
// their channels. Each page connection builds its own root view from its own report feed.
type RootView struct {
	settings Settings
	views    []fastview.ViewComponent
	updates  <-chan []fastview.EleUpdate
}

// NewRootView builds the page's views over @reports. All of its channels close when @ctx ends.
func NewRootView(
	ctx context.Context,
	reports <-chan epidemic.TickReport,
	settings Settings,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[epidemic.TickReport, epi_views.Frame]().
		WithContext(ctx).
		WithModel(reports, epi_views.NewConverter(settings.Window)).
		WithView(func(
			done <-chan struct{},
			frames <-chan epi_views.Frame) fastview.ViewComponent {
			return epi_views.NewStats(done, frames)
		}).
		WithView(func(
			done <-chan struct{},
			frames <-chan epi_views.Frame) fastview.ViewComponent {
			return epi_views.NewHeatmap(done, frames, settings.HeatmapSrc, settings.HeatmapWidth, settings.HeatmapHeight)
		}).
		WithView(func(
			done <-chan struct{},
			frames <-chan epi_views.Frame) fastview.ViewComponent {
			return epi_views.NewHistory(done, frames)
		}).
		Build()
	if err != nil {
		return nil, err
	}

	return &RootView{
		settings: settings,
		views:    views,
		updates:  fanIn(ctx.Done(), views),
	}, nil
}

// Updates returns the page's single ele-update channel, merged from every view.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Parse defines the main page, with the websocket bootstrap code, and returns its name.
// It also sets up the func-map the child views may rely on.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
			"max": func(i, j int) int {
				if i > j {
					return i
				}
				return j
			},
		})

	var bodySpec string
	for _, vc := range rv.views {
		var tname string
		if tname, err = vc.Parse(rt); err != nil {
			return
		}
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	// The bootstrap opens the websocket on the page's own host and applies each pushed batch
	// of updates by element id.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<title id="` + epi_views.PageTitleId + `">{{ .Title }}</title>
			<link rel="icon" href="data:,">
			<script>
				const ws = new WebSocket("ws://" + location.host + "` + rv.settings.WebsocketPath + `");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				ws.onmessage = function (event) {
					const items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (!ele) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "` + fastview.TextContent + `") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body style="background: rgb(40,40,40); color: rgb(230,230,230);">
		` + bodySpec + `
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}

// fanIn merges the views' ele-update channels into a single batched channel.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		batchResolution)
}

// batchify collects updates and flushes them once per @rate, keeping only the latest update
// per ele-id, so redundant updates for the same element are never sent.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		data := map[string]fastview.EleUpdate{}
		order := []string{}
		flush := channerics.NewTicker(done, rate)
		input := channerics.OrDone(done, source)
		for {
			select {
			case updates, ok := <-input:
				if !ok {
					return
				}
				for _, update := range updates {
					if _, seen := data[update.EleId]; !seen {
						order = append(order, update.EleId)
					}
					data[update.EleId] = update
				}
			case _, ok := <-flush:
				if !ok {
					return
				}
				if len(order) == 0 {
					break
				}
				batch := make([]fastview.EleUpdate, 0, len(order))
				for _, id := range order {
					batch = append(batch, data[id])
				}
				select {
				case output <- batch:
					data = map[string]fastview.EleUpdate{}
					order = order[:0]
				case <-done:
					return
				}
			}
		}
	}()

	return output
}
