package root_view

import (
	"bytes"
	"context"
	"html/template"
	"testing"
	"time"

	"contagion/epidemic"
	"contagion/models"
	"contagion/server/epi_views"
	"contagion/server/fastview"

	. "github.com/smartystreets/goconvey/convey"
)

var testSettings = Settings{
	HeatmapSrc:    "/heatmap.png",
	HeatmapWidth:  400,
	HeatmapHeight: 300,
	Window:        10,
	WebsocketPath: "/ws",
}

func testReport(tick int) epidemic.TickReport {
	return epidemic.TickReport{
		Tick:   tick,
		Counts: models.Counts{Susceptible: 90 - tick, Infected: 10 + tick},
		History: epidemic.HistorySnapshot{
			Start:       tick,
			Susceptible: []int{90 - tick},
			Infected:    []int{10 + tick},
			Recovered:   []int{0},
		},
	}
}

func TestRootView(t *testing.T) {
	Convey("Given a root view over a report feed", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		reports := make(chan epidemic.TickReport)
		rv, err := NewRootView(ctx, reports, testSettings)
		So(err, ShouldBeNil)

		Convey("The page renders every view and the bootstrap", func() {
			root := template.New("index.html")
			name, err := rv.Parse(root)
			So(err, ShouldBeNil)

			buf := &bytes.Buffer{}
			So(root.ExecuteTemplate(buf, name, epi_views.NewConverter(10)(testReport(2))), ShouldBeNil)
			html := buf.String()
			So(html, ShouldContainSubstring, "Infected: 12, Recovered: 0")
			So(html, ShouldContainSubstring, `id="tick-count"`)
			So(html, ShouldContainSubstring, `id="heatmap-img"`)
			So(html, ShouldContainSubstring, `id="history-susceptible"`)
			So(html, ShouldContainSubstring, `location.host`)
		})

		Convey("A report reaches the client from every view", func() {
			go func() { reports <- testReport(5) }()

			ids := map[string]fastview.EleUpdate{}
			deadline := time.After(2 * time.Second)
			for len(ids) < 9 {
				select {
				case batch := <-rv.Updates():
					for _, update := range batch {
						ids[update.EleId] = update
					}
				case <-deadline:
					So(len(ids), ShouldEqual, 9)
					return
				}
			}
			So(ids[epi_views.InfectedCountId], ShouldResemble, fastview.SetText(epi_views.InfectedCountId, "15"))
			So(ids[epi_views.HeatmapImageId].Ops[0].Value, ShouldEqual, "/heatmap.png?tick=5")
		})
	})
}

func TestBatchify(t *testing.T) {
	Convey("When updates for the same element arrive within one batch", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		source := make(chan []fastview.EleUpdate)
		batches := batchify(ctx.Done(), source, 50*time.Millisecond)

		source <- []fastview.EleUpdate{fastview.SetText("a", "1"), fastview.SetText("b", "1")}
		source <- []fastview.EleUpdate{fastview.SetText("a", "2")}

		batch := <-batches
		So(batch, ShouldResemble, []fastview.EleUpdate{
			fastview.SetText("a", "2"),
			fastview.SetText("b", "1"),
		})
	})

	Convey("When the context ends the batch channel closes", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		batches := batchify(ctx.Done(), make(chan []fastview.EleUpdate), time.Millisecond)
		cancel()
		select {
		case _, ok := <-batches:
			So(ok, ShouldBeFalse)
		case <-time.After(time.Second):
			So("batches did not close", ShouldBeEmpty)
		}
	})
}
