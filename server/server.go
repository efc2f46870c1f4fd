package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"contagion/epidemic"
	"contagion/models"
	"contagion/report"
	"contagion/server/epi_views"
	"contagion/server/fastview"
	"contagion/server/root_view"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownGracePeriod = 5 * time.Second
	websocketPath       = "/ws"
	framesPath          = "/frames"
	heatmapPath         = "/heatmap.png"
	chartPath           = "/chart.png"
	countsPath          = "/counts"
)

// ErrNoReport is returned by endpoints that need at least one tick to have run.
var ErrNoReport = errors.New("no tick has been reported yet")

// Server is the renderer collaborator of a run. The driver publishes every tick report to it,
// and it serves them: a live page whose views are pushed over a websocket, a binary frame
// stream for custom clients, and the density and history as images. Any number of clients
// may connect; each gets its own views over the latest report, and none can slow the run.
type Server struct {
	addr      string
	pixelSize int
	settings  root_view.Settings
	reports   *hub[epidemic.TickReport]
	router    *mux.Router
	logger    *log.Logger
}

// NewServer returns a server for a run configured by @cfg, to listen on @addr.
func NewServer(
	addr string,
	cfg epidemic.Config,
	logger *log.Logger,
) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	srv := &Server{
		addr:      addr,
		pixelSize: cfg.PixelSize,
		settings: root_view.Settings{
			HeatmapSrc:    heatmapPath,
			HeatmapWidth:  epidemic.SCREEN_WIDTH,
			HeatmapHeight: epidemic.SCREEN_HEIGHT,
			Window:        cfg.HistoryWindow,
			WebsocketPath: websocketPath,
		},
		reports: newHub[epidemic.TickReport](),
		logger:  logger.With("component", "server"),
	}

	router := mux.NewRouter()
	router.HandleFunc("/", srv.serveIndex).Methods(http.MethodGet)
	router.HandleFunc(websocketPath, srv.serveWebsocket)
	router.HandleFunc(framesPath, srv.serveFrames)
	router.HandleFunc(heatmapPath, srv.serveHeatmap).Methods(http.MethodGet)
	router.HandleFunc(chartPath, srv.serveChart).Methods(http.MethodGet)
	router.HandleFunc(countsPath, srv.serveCounts).Methods(http.MethodGet)
	srv.router = router

	return srv
}

// Publish makes @report the latest report and pushes it to every connected client. It never
// blocks, so it can be handed to the driver as its report callback.
func (server *Server) Publish(_ context.Context, report epidemic.TickReport) {
	server.reports.publish(report)
}

// Handler returns the server's routes.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens until @ctx ends, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.addr,
		Handler: server.router,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		server.logger.Info("serving", "addr", server.addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		server.logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// serveIndex renders the main page around the latest report.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The page's views are only parsed here; their update feed is never used.
	rootView, err := root_view.NewRootView(ctx, make(chan epidemic.TickReport), server.settings)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	latest, _ := server.reports.current()
	frame := epi_views.NewConverter(server.settings.Window)(latest)

	buf := &bytes.Buffer{}
	if err = renderTemplate(buf, rootView, frame); err != nil {
		server.logger.Error("render index", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write(buf.Bytes())
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}
	return t.Execute(w, data)
}

// serveWebsocket pushes the page's ele-updates to one client until it leaves.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	rootView, err := root_view.NewRootView(ctx, server.reports.subscribe(ctx), server.settings)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cli, err := fastview.NewClient(rootView.Updates(), fastview.JSON[[]fastview.EleUpdate], w, r)
	if err != nil {
		server.logger.Warn("websocket upgrade", "err", err)
		return
	}
	defer cli.Close()

	server.logger.Debug("page client connected", "remote", r.RemoteAddr, "subscribers", server.reports.subscribers())
	if err = cli.Sync(); err != nil {
		server.logger.Warn("page client", "remote", r.RemoteAddr, "err", err)
	}
	server.logger.Debug("page client disconnected", "remote", r.RemoteAddr)
}

// FrameMessage is the binary frame sent on the frames stream: the counts of a tick and the
// display intensity of every density cell, row-major.
type FrameMessage struct {
	Tick   int           `msgpack:"tick"`
	Counts models.Counts `msgpack:"counts"`
	Cols   int           `msgpack:"cols"`
	Rows   int           `msgpack:"rows"`
	Heat   []byte        `msgpack:"heat"`
}

func toFrameMessage(rep epidemic.TickReport) FrameMessage {
	return FrameMessage{
		Tick:   rep.Tick,
		Counts: rep.Counts,
		Cols:   rep.Density.Cols,
		Rows:   rep.Density.Rows,
		Heat:   report.Intensities(rep.Density),
	}
}

// serveFrames streams msgpack frames to one client until it leaves.
func (server *Server) serveFrames(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames := channerics.Convert(ctx.Done(), server.reports.subscribe(ctx), toFrameMessage)
	cli, err := fastview.NewClient(frames, fastview.Msgpack[FrameMessage], w, r)
	if err != nil {
		server.logger.Warn("websocket upgrade", "err", err)
		return
	}
	defer cli.Close()

	if err = cli.Sync(); err != nil {
		server.logger.Warn("frame client", "remote", r.RemoteAddr, "err", err)
	}
}

// latestOrUnavailable returns the latest report, or replies 503 if there is none yet.
func (server *Server) latestOrUnavailable(w http.ResponseWriter) (epidemic.TickReport, bool) {
	latest, ok := server.reports.current()
	if !ok {
		http.Error(w, ErrNoReport.Error(), http.StatusServiceUnavailable)
	}
	return latest, ok
}

// writePNG renders into a buffer and only then starts the response, so a render error can
// still be answered with a status. Errors writing the body are logged only.
func (server *Server) writePNG(w http.ResponseWriter, render func(io.Writer) error) error {
	buf := &bytes.Buffer{}
	if err := render(buf); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		server.logger.Warn("write png", "err", err)
	}
	return nil
}

func (server *Server) serveHeatmap(w http.ResponseWriter, r *http.Request) {
	latest, ok := server.latestOrUnavailable(w)
	if !ok {
		return
	}
	err := server.writePNG(w, func(out io.Writer) error {
		return report.RenderHeatmap(out, latest.Density, server.pixelSize)
	})
	if err != nil {
		server.logger.Error("render heatmap", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (server *Server) serveChart(w http.ResponseWriter, r *http.Request) {
	latest, ok := server.latestOrUnavailable(w)
	if !ok {
		return
	}
	err := server.writePNG(w, func(out io.Writer) error {
		return report.RenderHistoryChart(out, latest.History, latest.Counts.Total())
	})
	switch {
	case errors.Is(err, report.ErrNotEnoughHistory):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case err != nil:
		server.logger.Error("render chart", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// CountsResponse is the body of the counts endpoint.
type CountsResponse struct {
	Tick       int `json:"tick"`
	Population int `json:"population"`
	models.Counts
}

func (server *Server) serveCounts(w http.ResponseWriter, r *http.Request) {
	latest, ok := server.latestOrUnavailable(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(CountsResponse{
		Tick:       latest.Tick,
		Population: latest.Counts.Total(),
		Counts:     latest.Counts,
	})
}
