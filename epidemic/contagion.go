package epidemic

import (
	"math"

	"contagion/models"
)

// DECAY_RATE is the exponential falloff of contagion probability per unit of distance.
// It is a fixed property of the disease model rather than a run setting.
const DECAY_RATE = 0.5

// ContagionModel decides whether an infected source passes the infection to a nearby target.
// Probability decays exponentially with distance, so the radius acts as a hard cutoff for
// the spatial query while the falloff makes contact within it a soft gradient.
type ContagionModel struct {
	BaseProbability        float64
	ReinfectionProbability float64
	Radius                 float64
	DecayRate              float64
}

// NewContagionModel builds the model for a run's settings.
func NewContagionModel(cfg Config) ContagionModel {
	return ContagionModel{
		BaseProbability:        cfg.InfectionProbability,
		ReinfectionProbability: cfg.ReinfectionProbability,
		Radius:                 cfg.InfectionRadius,
		DecayRate:              DECAY_RATE,
	}
}

// Probability returns the chance that a target in state @target is infected by a source
// @dist away. Infected targets cannot be infected again.
func (m ContagionModel) Probability(target models.Health, dist float64) float64 {
	var base float64
	switch target {
	case models.Susceptible:
		base = m.BaseProbability
	case models.Recovered:
		base = m.ReinfectionProbability
	default:
		return 0
	}
	return base * math.Exp(-m.DecayRate*dist)
}

// Transmits applies the contagion rule to the ordered pair (source, target).
// The pair is skipped, without consuming randomness, if it is the same agent, if the target
// is already infected, or if the target lies beyond the radius. Otherwise a single uniform
// draw decides the outcome. Transmits does not mutate either agent.
func (m ContagionModel) Transmits(source, target *models.Agent, src Source) bool {
	if source == target || target.Health == models.Infected {
		return false
	}
	dist := models.Dist(source.Pos, target.Pos)
	if dist > m.Radius {
		return false
	}
	return src.Float64() < m.Probability(target.Health, dist)
}
