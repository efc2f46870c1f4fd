package models

import (
	"fmt"
	"math"
)

// Health is the epidemiological state of an agent.
type Health int

// Agent health states. The zero value is Susceptible, so a freshly allocated
// population starts out healthy.
const (
	Susceptible Health = iota
	Infected
	Recovered
)

func (h Health) String() string {
	switch h {
	case Susceptible:
		return "susceptible"
	case Infected:
		return "infected"
	case Recovered:
		return "recovered"
	}
	return fmt.Sprintf("health(%d)", int(h))
}

// Initial agent speed bound, per axis. Agents only ever drift a fraction of a unit per tick,
// which is what lets the spatial index be rebuilt from scratch every tick without worrying
// about agents skipping over cells.
const (
	MAX_SPEED = 0.2
)

// Vec2 is a point or displacement in the simulation plane.
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// Norm returns the euclidean length of the vector.
func (v Vec2) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// Dist returns the euclidean distance between two points.
func Dist(a, b Vec2) float64 {
	return a.Sub(b).Norm()
}

// IntSource is the subset of a random number generator needed to sample recovery times.
// *rand.Rand from math/rand/v2 satisfies it.
type IntSource interface {
	IntN(n int) int
}

// RecoveryRange is the inclusive range of tick counts from infection to recovery.
type RecoveryRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Sample draws uniformly from [Min, Max], both bounds inclusive.
// A degenerate range (Min == Max) always returns Min and consumes no randomness.
func (rr RecoveryRange) Sample(src IntSource) int {
	if rr.Max <= rr.Min {
		return rr.Min
	}
	return rr.Min + src.IntN(rr.Max-rr.Min+1)
}

// Agent is a single moving point with an epidemiological state.
// Agents never reference each other; the engine resolves all interactions.
type Agent struct {
	Pos Vec2
	Vel Vec2
	// Health is the current state.
	Health Health
	// InfectedAt is the tick at which the current infection began, only meaningful while Infected.
	InfectedAt int
	// RecoveryTicks is sampled each time the agent becomes infected, including reinfection.
	RecoveryTicks int
}

// Advance moves the agent by its velocity within the [0,width]x[0,height] box.
// A coordinate that leaves the box has its velocity component reflected and is clamped
// onto the wall it crossed: an elastic bounce, not a stop.
func (a *Agent) Advance(width, height float64) {
	a.Pos = a.Pos.Add(a.Vel)
	a.Pos.X, a.Vel.X = bounce(a.Pos.X, a.Vel.X, width)
	a.Pos.Y, a.Vel.Y = bounce(a.Pos.Y, a.Vel.Y, height)
}

func bounce(pos, vel, limit float64) (float64, float64) {
	if pos < 0 {
		return 0, -vel
	}
	if pos > limit {
		return limit, -vel
	}
	return pos, vel
}

// Infect transitions the agent to Infected at @tick and samples a fresh recovery duration.
// Valid from Susceptible or Recovered. Returns false, leaving the agent untouched, if it is
// already infected.
func (a *Agent) Infect(tick int, recovery RecoveryRange, src IntSource) bool {
	if a.Health == Infected {
		return false
	}
	a.Health = Infected
	a.InfectedAt = tick
	a.RecoveryTicks = recovery.Sample(src)
	return true
}

// Recover transitions an infected agent to Recovered. Returns false for any other state.
func (a *Agent) Recover() bool {
	if a.Health != Infected {
		return false
	}
	a.Health = Recovered
	return true
}

// DueToRecover reports whether the infection has run its course by @tick.
func (a *Agent) DueToRecover(tick int) bool {
	return a.Health == Infected && tick-a.InfectedAt >= a.RecoveryTicks
}

// Counts are the aggregate tallies of each health state.
type Counts struct {
	Susceptible int `json:"susceptible" msgpack:"s"`
	Infected    int `json:"infected" msgpack:"i"`
	Recovered   int `json:"recovered" msgpack:"r"`
}

// Total is the population size the counts describe.
func (c Counts) Total() int {
	return c.Susceptible + c.Infected + c.Recovered
}

// Tally counts the agents in each health state, e.g. for seeding or checking the incremental counters.
func Tally(agents []Agent) (counts Counts) {
	for i := range agents {
		switch agents[i].Health {
		case Susceptible:
			counts.Susceptible++
		case Infected:
			counts.Infected++
		case Recovered:
			counts.Recovered++
		}
	}
	return
}
