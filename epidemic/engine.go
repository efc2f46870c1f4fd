package epidemic

/*
The engine advances a fixed population one tick at a time. Each tick runs, in order:

  - move: every agent advances and bounces off the walls
  - reindex: the spatial index is cleared and rebuilt from the new positions
  - resolve: infected agents, in population order, either recover or try to infect their
    neighbors; the aggregate counts move with every transition
  - bookkeeping: the counts are appended to the history
  - density: the field fades, then infected/recovered agents raise/lower their cells

Move and density deposit only touch per-agent or atomically-updated state, so they may be
spread over several workers. Resolution draws from the run's random source in a fixed order
and stays on one goroutine, so a seeded run reproduces its agents, counts and history on a
given platform whatever the worker count. With more than one worker the concurrent deposits
land in no fixed order, so the density field is only reproduced up to float rounding.
*/

import (
	"errors"
	"fmt"
	"math"

	"contagion/models"
	"contagion/spatial_grid"

	"golang.org/x/sync/errgroup"
)

// The simulated plane, in world units. The density field divides it into pixel blocks.
const (
	SCREEN_WIDTH  = 800
	SCREEN_HEIGHT = 600
)

// Below this many agents per worker, spreading a phase over goroutines costs more than it saves.
const minAgentsPerWorker = 2048

// ErrInvalidPopulation is returned when a run's population or initial infected count is out of bounds.
var ErrInvalidPopulation = errors.New("invalid population")

// TickReport is what one tick hands to renderers: the counts after the tick and copies of
// the density field and the trailing history window. None of it aliases engine state.
type TickReport struct {
	Tick    int
	Counts  models.Counts
	Density DensitySnapshot
	History HistorySnapshot
}

// Engine owns a run's population, its spatial index, counters, history and density field.
// It is not safe for concurrent use: one driver calls Tick, and renderers consume reports.
type Engine struct {
	cfg           Config
	width, height float64
	model         ContagionModel
	rng           Source
	workers       int

	agents    []models.Agent
	index     *spatial_grid.SpatialIndex[int]
	neighbors []int

	tick         int
	counts       models.Counts
	history      History
	density      *DensityField
	contribution float64
}

// Builder assembles an Engine. Only the config is required; the random source defaults
// to a PCG generator seeded from Config.Seed.
type Builder struct {
	cfg           Config
	src           Source
	workers       int
	width, height float64
	decayRate     float64
	agents        []models.Agent
}

// NewBuilder starts building an engine for @cfg.
func NewBuilder(cfg Config) *Builder {
	return &Builder{
		cfg:       cfg,
		workers:   1,
		width:     SCREEN_WIDTH,
		height:    SCREEN_HEIGHT,
		decayRate: DECAY_RATE,
	}
}

// WithSource sets the run's random source.
func (b *Builder) WithSource(src Source) *Builder {
	b.src = src
	return b
}

// WithWorkers sets how many goroutines the move and density phases may use.
func (b *Builder) WithWorkers(n int) *Builder {
	b.workers = n
	return b
}

// WithBounds overrides the size of the simulated plane.
func (b *Builder) WithBounds(width, height float64) *Builder {
	b.width, b.height = width, height
	return b
}

// WithDecayRate overrides the contagion distance falloff.
func (b *Builder) WithDecayRate(rate float64) *Builder {
	b.decayRate = rate
	return b
}

// withAgents replaces the random initial population with a prepared one.
func (b *Builder) withAgents(agents []models.Agent) *Builder {
	b.agents = agents
	return b
}

// Build checks the population bounds, places the agents and seeds the initial infections
// at tick 0. Other settings are expected to have passed Config.Validate already.
func (b *Builder) Build() (*Engine, error) {
	cfg := b.cfg
	if b.agents != nil {
		cfg.Agents = len(b.agents)
		cfg.InitialInfected = models.Tally(b.agents).Infected
	}
	if cfg.Agents <= 0 {
		return nil, fmt.Errorf("%w: %d agents", ErrInvalidPopulation, cfg.Agents)
	}
	if cfg.InitialInfected <= 0 || cfg.InitialInfected >= cfg.Agents {
		return nil, fmt.Errorf("%w: %d initially infected of %d", ErrInvalidPopulation, cfg.InitialInfected, cfg.Agents)
	}
	// Probabilities and pacing belong to the config collaborator; only what would break the
	// geometry or the recovery clock is re-checked here.
	switch {
	case !(cfg.InfectionRadius > 0):
		return nil, invalid("infection radius must be > 0")
	case cfg.PixelSize <= 0:
		return nil, invalid("pixel size must be > 0")
	case cfg.RecoveryTicks.Min < 1 || cfg.RecoveryTicks.Max < cfg.RecoveryTicks.Min:
		return nil, invalid("recovery ticks must satisfy 1 <= min <= max")
	case !(b.width > 0 && b.height > 0):
		return nil, invalid(fmt.Sprintf("bounds %vx%v must be positive", b.width, b.height))
	}

	src := b.src
	if src == nil {
		src, _ = NewSource(cfg.Seed)
	}

	model := NewContagionModel(cfg)
	model.DecayRate = b.decayRate

	eng := &Engine{
		cfg:          cfg,
		width:        b.width,
		height:       b.height,
		model:        model,
		rng:          src,
		workers:      b.workers,
		index:        spatial_grid.NewSpatialIndex[int](cfg.InfectionRadius),
		density:      newDensityField(b.width, b.height, cfg.PixelSize),
		contribution: 1.0 / math.Sqrt(float64(cfg.Agents)),
	}

	if b.agents != nil {
		eng.agents = make([]models.Agent, len(b.agents))
		copy(eng.agents, b.agents)
	} else {
		eng.agents = eng.spawn(cfg.Agents, cfg.InitialInfected)
	}
	eng.counts = models.Tally(eng.agents)
	return eng, nil
}

// NewEngine builds an engine for @cfg drawing from @src; a nil source is seeded from the config.
func NewEngine(cfg Config, src Source) (*Engine, error) {
	return NewBuilder(cfg).WithSource(src).Build()
}

// spawn scatters @n agents uniformly over the plane with small random velocities, and
// infects @infected of them, chosen without replacement, at tick 0.
func (e *Engine) spawn(n, infected int) []models.Agent {
	agents := make([]models.Agent, n)
	for i := range agents {
		agents[i] = models.Agent{
			Pos: models.Vec2{X: e.rng.Float64() * e.width, Y: e.rng.Float64() * e.height},
			Vel: models.Vec2{
				X: (e.rng.Float64()*2 - 1) * models.MAX_SPEED,
				Y: (e.rng.Float64()*2 - 1) * models.MAX_SPEED,
			},
		}
	}
	for _, i := range e.rng.Perm(n)[:infected] {
		agents[i].Infect(0, e.cfg.RecoveryTicks, e.rng)
	}
	return agents
}

// Tick advances the simulation by exactly one step and reports the result.
// The tick counter increments first, so the first call runs as tick 1.
func (e *Engine) Tick() TickReport {
	e.tick++
	e.move()
	e.reindex()
	e.resolve()
	e.history.append(e.counts)
	e.updateDensity()
	return e.report()
}

// forEachChunk runs @fn over disjoint slices of the population, concurrently when the
// engine has workers and the population is large enough to be worth splitting.
func (e *Engine) forEachChunk(fn func(agents []models.Agent)) {
	n := len(e.agents)
	workers := min(e.workers, n/minAgentsPerWorker)
	if workers <= 1 {
		fn(e.agents)
		return
	}

	chunk := (n + workers - 1) / workers
	group := errgroup.Group{}
	group.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		part := e.agents[start:min(start+chunk, n)]
		group.Go(func() error {
			fn(part)
			return nil
		})
	}
	// The workers cannot fail; Wait only joins them.
	_ = group.Wait()
}

func (e *Engine) move() {
	e.forEachChunk(func(agents []models.Agent) {
		for i := range agents {
			agents[i].Advance(e.width, e.height)
		}
	})
}

func (e *Engine) reindex() {
	e.index.Clear()
	for i := range e.agents {
		e.index.Insert(e.agents[i].Pos, i)
	}
}

// resolve walks the infected agents in population order. An agent whose infection has run
// its course recovers and does nothing else this tick; otherwise it tries to infect every
// candidate the index returns. Targets infected earlier in the walk act as sources when
// their own turn comes, and an agent that recovered this tick can still be reinfected.
func (e *Engine) resolve() {
	for i := range e.agents {
		source := &e.agents[i]
		if source.Health != models.Infected {
			continue
		}

		if source.DueToRecover(e.tick) {
			source.Recover()
			e.counts.Infected--
			e.counts.Recovered++
			continue
		}

		e.neighbors = e.index.Neighbors(source.Pos, e.neighbors[:0])
		for _, j := range e.neighbors {
			target := &e.agents[j]
			if !e.model.Transmits(source, target, e.rng) {
				continue
			}
			switch target.Health {
			case models.Susceptible:
				e.counts.Susceptible--
			case models.Recovered:
				e.counts.Recovered--
			}
			target.Infect(e.tick, e.cfg.RecoveryTicks, e.rng)
			e.counts.Infected++
		}
	}
}

func (e *Engine) updateDensity() {
	e.density.decay(DENSITY_DECAY)
	e.forEachChunk(func(agents []models.Agent) {
		e.density.deposit(agents, e.contribution)
	})
	e.density.clampNonNegative()
}

func (e *Engine) report() TickReport {
	return TickReport{
		Tick:    e.tick,
		Counts:  e.counts,
		Density: e.density.Snapshot(),
		History: e.history.Snapshot(e.cfg.HistoryWindow),
	}
}

// Counts returns the current aggregate tallies.
func (e *Engine) Counts() models.Counts {
	return e.counts
}

// TickCount returns the number of ticks executed so far.
func (e *Engine) TickCount() int {
	return e.tick
}

// Population returns the fixed number of agents in the run.
func (e *Engine) Population() int {
	return len(e.agents)
}

// Config returns the settings the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Agents returns a copy of the population.
func (e *Engine) Agents() []models.Agent {
	agents := make([]models.Agent, len(e.agents))
	copy(agents, e.agents)
	return agents
}

// History returns a copy of the last @window history entries, or all of them for window <= 0.
func (e *Engine) History(window int) HistorySnapshot {
	return e.history.Snapshot(window)
}

// Summary returns the run's headline numbers so far.
func (e *Engine) Summary() Summary {
	return e.history.Summary()
}
