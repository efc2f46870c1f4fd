/*
Contagion is an agent-based SIR epidemic simulation. A fixed population drifts around a bounded
plane; infected agents pass the infection to neighbors with a probability that decays with
distance, recover after a random number of ticks, and may be reinfected. A pacing driver ticks
the engine at the configured rate and hands every tick to the server, which pushes live counters,
an infection density heatmap and the S/I/R history to any connected page. With -headless the run
only logs its progress.
*/

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"contagion/driver"
	"contagion/epidemic"
	"contagion/server"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

var (
	configPath *string
	dbg        *bool
	nworkers   *int
	host       *string
	port       *string
	seed       *uint64
	headless   *bool
)

func init() {
	configPath = flag.String("config", "./config.yaml", "path to the run definition")
	dbg = flag.Bool("debug", false, "debug mode")
	nworkers = flag.Int("nworkers", runtime.NumCPU(), "number of goroutines for the move and density phases")
	host = flag.String("host", "", "The host ip")
	port = flag.String("port", "8080", "The host port")
	seed = flag.Uint64("seed", 0, "overrides the config seed when non-zero")
	headless = flag.Bool("headless", false, "run without serving views, logging progress only")
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "contagion",
	})
	if *dbg {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func runApp(logger *log.Logger) (err error) {
	var cfg *epidemic.Config
	if cfg, err = epidemic.FromYaml(*configPath); err != nil {
		return
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}

	// Pin the seed before building so a clock-seeded run can be replayed from the log.
	src, runSeed := epidemic.NewSource(cfg.Seed)
	cfg.Seed = runSeed

	var eng *epidemic.Engine
	if eng, err = epidemic.NewBuilder(*cfg).
		WithSource(src).
		WithWorkers(*nworkers).
		Build(); err != nil {
		return
	}
	logger.Info("run configured",
		"agents", cfg.Agents,
		"infected", cfg.InitialInfected,
		"tickSpeed", cfg.TickSpeed,
		"seed", cfg.Seed,
		"workers", *nworkers,
	)

	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *headless {
		if _, err = driver.Run(appCtx, eng, *cfg, nil, logger); err != nil {
			return
		}
		logSummary(logger, eng.Summary())
		return
	}

	// The server outlives the run, so the final state stays on view until interrupted.
	srv := server.NewServer(*host+":"+*port, *cfg, logger)
	group, groupCtx := errgroup.WithContext(appCtx)
	group.Go(func() error {
		return srv.Serve(groupCtx)
	})
	group.Go(func() error {
		if _, runErr := driver.Run(groupCtx, eng, *cfg, srv.Publish, logger); runErr != nil {
			return runErr
		}
		logSummary(logger, eng.Summary())
		return nil
	})
	return group.Wait()
}

func logSummary(logger *log.Logger, sum epidemic.Summary) {
	logger.Info("run summary",
		"ticks", sum.Ticks,
		"peakInfected", sum.PeakInfected,
		"peakTick", sum.PeakTick,
		"susceptible", sum.Final.Susceptible,
		"infected", sum.Final.Infected,
		"recovered", sum.Final.Recovered,
	)
}

func main() {
	flag.Parse()
	logger := newLogger()
	if err := runApp(logger); err != nil {
		logger.Error("run failed", "err", err)
		os.Exit(1)
	}
}
