package driver

/*
The driver is the pacing source for a run. The engine never sleeps or blocks; the driver calls
Tick no faster than once per tick interval, hands every report to the renderer, and stops the run
when it is cancelled, its deadline passes, or it reaches its tick limit. Ticks are strictly
sequential: the next tick does not begin until the report callback for the previous one returns.
*/

import (
	"context"
	"io"
	"math"
	"time"

	"contagion/epidemic"

	"github.com/charmbracelet/log"
	channerics "github.com/niceyeti/channerics/channels"
)

// Simulation is anything that advances by one full step per call.
type Simulation interface {
	Tick() epidemic.TickReport
}

// ReportFunc receives the report of every tick. It is called synchronously from the driver
// loop and should complete quickly, dropping reports it cannot keep up with rather than blocking.
type ReportFunc func(context.Context, epidemic.TickReport)

// Driver paces a simulation.
type Driver struct {
	sim           Simulation
	interval      time.Duration
	maxTicks      int
	progressEvery int
	report        ReportFunc
	logger        *log.Logger
}

// NewDriver returns a driver calling @sim at most once per @interval.
func NewDriver(sim Simulation, interval time.Duration) *Driver {
	return &Driver{
		sim:      sim,
		interval: interval,
		report:   func(context.Context, epidemic.TickReport) {},
		logger:   log.New(io.Discard),
	}
}

// WithMaxTicks stops the run after @n ticks; zero runs until cancelled.
func (d *Driver) WithMaxTicks(n int) *Driver {
	d.maxTicks = n
	return d
}

// WithReportFunc sets the renderer callback.
func (d *Driver) WithReportFunc(fn ReportFunc) *Driver {
	if fn != nil {
		d.report = fn
	}
	return d
}

// WithLogger sets the logger for run start, progress and stop lines.
func (d *Driver) WithLogger(logger *log.Logger) *Driver {
	if logger != nil {
		d.logger = logger.With("component", "driver")
	}
	return d
}

// WithProgressEvery logs a progress line every @n ticks; zero disables it.
func (d *Driver) WithProgressEvery(n int) *Driver {
	d.progressEvery = n
	return d
}

// Run drives the simulation until @ctx is done or the tick limit is reached, and returns the
// last report. Cancellation is a normal way for a run to end, so it is not reported as an error.
func (d *Driver) Run(ctx context.Context) (last epidemic.TickReport) {
	d.logger.Info("run started", "interval", d.interval, "maxTicks", d.maxTicks)
	defer func() {
		d.logger.Info("run stopped",
			"tick", last.Tick,
			"susceptible", last.Counts.Susceptible,
			"infected", last.Counts.Infected,
			"recovered", last.Counts.Recovered,
			"reason", stopReason(ctx, last.Tick, d.maxTicks),
		)
	}()

	// The ticker closes when ctx is done, which ends the loop.
	for range channerics.NewTicker(ctx.Done(), d.interval) {
		// A tick always runs to completion, so only check for cancellation between ticks.
		select {
		case <-ctx.Done():
			return
		default:
		}

		last = d.sim.Tick()
		d.report(ctx, last)

		if d.progressEvery > 0 && last.Tick%d.progressEvery == 0 {
			d.logger.Info("progress",
				"tick", last.Tick,
				"S", last.Counts.Susceptible,
				"I", last.Counts.Infected,
				"R", last.Counts.Recovered,
			)
		}
		if d.maxTicks > 0 && last.Tick >= d.maxTicks {
			return
		}
	}
	return
}

func stopReason(ctx context.Context, tick, maxTicks int) string {
	switch {
	case maxTicks > 0 && tick >= maxTicks:
		return "max ticks"
	case ctx.Err() == context.DeadlineExceeded:
		return "deadline"
	case ctx.Err() != nil:
		return "cancelled"
	}
	return "unknown"
}

// Run paces @sim with the settings of @cfg: its tick speed, tick limit and run deadline.
// Progress is logged about once per simulated second.
func Run(
	ctx context.Context,
	sim Simulation,
	cfg epidemic.Config,
	report ReportFunc,
	logger *log.Logger,
) (epidemic.TickReport, error) {
	runCtx, cancel, err := cfg.WithRunDeadline(ctx)
	if err != nil {
		return epidemic.TickReport{}, err
	}
	defer cancel()

	last := NewDriver(sim, cfg.TickInterval()).
		WithMaxTicks(cfg.MaxTicks).
		WithReportFunc(report).
		WithLogger(logger).
		WithProgressEvery(int(math.Ceil(cfg.TickSpeed))).
		Run(runCtx)
	return last, nil
}
