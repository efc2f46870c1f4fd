package server

import (
	"context"
	"errors"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"contagion/epidemic"
	"contagion/server/epi_views"
	"contagion/server/fastview"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/vmihailenco/msgpack/v5"
)

func testEngine(t *testing.T) (*epidemic.Engine, epidemic.Config) {
	cfg := epidemic.DefaultConfig()
	cfg.Agents = 400
	cfg.InitialInfected = 10
	cfg.Seed = 3
	eng, err := epidemic.NewEngine(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	return eng, cfg
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, body
}

// brokenWriter fails every body write and records the status it was given.
type brokenWriter struct {
	header http.Header
	status int
	writes int
}

func (bw *brokenWriter) Header() http.Header {
	return bw.header
}

func (bw *brokenWriter) WriteHeader(status int) {
	if bw.status == 0 {
		bw.status = status
	}
}

func (bw *brokenWriter) Write(p []byte) (int, error) {
	bw.WriteHeader(http.StatusOK)
	bw.writes++
	return 0, errors.New("connection reset")
}

func wsURL(base, path string) string {
	return "ws" + strings.TrimPrefix(base, "http") + path
}

func TestHub(t *testing.T) {
	Convey("Given a hub", t, func() {
		h := newHub[int]()

		Convey("A subscriber first receives the latest value", func() {
			h.publish(1)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sub := h.subscribe(ctx)
			So(<-sub, ShouldEqual, 1)
		})

		Convey("A slow subscriber only keeps the newest value", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sub := h.subscribe(ctx)
			for i := 1; i <= 5; i++ {
				h.publish(i)
			}
			So(<-sub, ShouldEqual, 5)
			latest, ok := h.current()
			So(ok, ShouldBeTrue)
			So(latest, ShouldEqual, 5)
		})

		Convey("Ending a subscription closes and removes it", func() {
			ctx, cancel := context.WithCancel(context.Background())
			sub := h.subscribe(ctx)
			So(h.subscribers(), ShouldEqual, 1)
			cancel()
			_, open := <-sub
			So(open, ShouldBeFalse)
			So(h.subscribers(), ShouldEqual, 0)
			h.publish(1)
		})
	})
}

func TestServer(t *testing.T) {
	Convey("Given a server for a run", t, func() {
		eng, cfg := testEngine(t)
		srv := NewServer(":0", cfg, nil)
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		Convey("Before the first tick the data endpoints are unavailable", func() {
			for _, path := range []string{countsPath, chartPath, heatmapPath} {
				resp, _ := get(t, ts.URL+path)
				So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
			}

			Convey("But the page is served", func() {
				resp, body := get(t, ts.URL+"/")
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(body), ShouldContainSubstring, "Infected: 0, Recovered: 0")
			})
		})

		Convey("After a single tick the chart still needs more history", func() {
			srv.Publish(context.Background(), eng.Tick())
			resp, _ := get(t, ts.URL+chartPath)
			So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("After several ticks", func() {
			var last epidemic.TickReport
			for i := 0; i < 5; i++ {
				last = eng.Tick()
				srv.Publish(context.Background(), last)
			}

			Convey("The counts are served as JSON", func() {
				resp, body := get(t, ts.URL+countsPath)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				counts := CountsResponse{}
				So(json.Unmarshal(body, &counts), ShouldBeNil)
				So(counts.Tick, ShouldEqual, 5)
				So(counts.Population, ShouldEqual, cfg.Agents)
				So(counts.Counts, ShouldResemble, last.Counts)
			})

			Convey("The page shows the latest counters", func() {
				_, body := get(t, ts.URL+"/")
				So(string(body), ShouldContainSubstring, epi_views.NewConverter(1)(last).Title())
			})

			Convey("The heatmap and chart are PNGs", func() {
				for _, path := range []string{heatmapPath, chartPath} {
					resp, body := get(t, ts.URL+path)
					So(resp.StatusCode, ShouldEqual, http.StatusOK)
					So(resp.Header.Get("Content-Type"), ShouldEqual, "image/png")
					_, err := png.Decode(strings.NewReader(string(body)))
					So(err, ShouldBeNil)
				}
			})

			Convey("A failed image write is not followed by an error reply", func() {
				req := httptest.NewRequest(http.MethodGet, heatmapPath, nil)
				for _, handler := range []http.HandlerFunc{srv.serveHeatmap, srv.serveChart} {
					bw := &brokenWriter{header: http.Header{}}
					handler(bw, req)
					So(bw.status, ShouldEqual, http.StatusOK)
					So(bw.writes, ShouldEqual, 1)
					So(bw.header.Get("Content-Type"), ShouldEqual, "image/png")
				}
			})

			Convey("The frame stream sends the latest tick as msgpack", func() {
				conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, framesPath), nil)
				So(err, ShouldBeNil)
				defer conn.Close()

				_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				msgType, payload, err := conn.ReadMessage()
				So(err, ShouldBeNil)
				So(msgType, ShouldEqual, websocket.BinaryMessage)
				frame := FrameMessage{}
				So(msgpack.Unmarshal(payload, &frame), ShouldBeNil)
				So(frame.Tick, ShouldEqual, 5)
				So(frame.Counts, ShouldResemble, last.Counts)
				So(len(frame.Heat), ShouldEqual, frame.Cols*frame.Rows)
			})

			Convey("The page websocket pushes element updates", func() {
				conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, websocketPath), nil)
				So(err, ShouldBeNil)
				defer conn.Close()

				// Keep ticking until the client has seen the infected counter.
				done := make(chan struct{})
				defer close(done)
				go func() {
					for {
						select {
						case <-done:
							return
						case <-time.After(30 * time.Millisecond):
							srv.Publish(context.Background(), eng.Tick())
						}
					}
				}()

				found := false
				_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
				for !found {
					msgType, payload, err := conn.ReadMessage()
					if err != nil {
						break
					}
					So(msgType, ShouldEqual, websocket.TextMessage)
					updates := []fastview.EleUpdate{}
					So(json.Unmarshal(payload, &updates), ShouldBeNil)
					for _, update := range updates {
						if update.EleId == epi_views.InfectedCountId {
							found = true
						}
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}
