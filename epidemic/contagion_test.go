package epidemic

import (
	"math"
	"testing"

	"contagion/models"

	. "github.com/smartystreets/goconvey/convey"
)

// countingSource returns a fixed draw and counts how often it is asked.
type countingSource struct {
	draw  float64
	calls int
}

func (cs *countingSource) Float64() float64 {
	cs.calls++
	return cs.draw
}

func (cs *countingSource) IntN(n int) int {
	cs.calls++
	return 0
}

func (cs *countingSource) Perm(n int) []int {
	cs.calls++
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	return perm
}

func TestContagionModel(t *testing.T) {
	Convey("Given a contagion model", t, func() {
		model := ContagionModel{
			BaseProbability:        0.8,
			ReinfectionProbability: 0.1,
			Radius:                 5,
			DecayRate:              DECAY_RATE,
		}

		Convey("Probability decays exponentially with distance", func() {
			So(model.Probability(models.Susceptible, 0), ShouldAlmostEqual, 0.8)
			So(model.Probability(models.Susceptible, 2), ShouldAlmostEqual, 0.8*math.Exp(-1))
			So(model.Probability(models.Recovered, 2), ShouldAlmostEqual, 0.1*math.Exp(-1))
			So(model.Probability(models.Infected, 0), ShouldEqual, 0)
		})

		Convey("When the pair cannot transmit no randomness is consumed", func() {
			src := &countingSource{draw: 0}
			source := infectedAgent(10, 10, 0, 10)
			infected := infectedAgent(11, 10, 0, 10)
			far := susceptibleAgent(15.5, 10)

			So(model.Transmits(&source, &source, src), ShouldBeFalse)
			So(model.Transmits(&source, &infected, src), ShouldBeFalse)
			So(model.Transmits(&source, &far, src), ShouldBeFalse)
			So(src.calls, ShouldEqual, 0)
		})

		Convey("When the pair is in range a single draw decides", func() {
			source := infectedAgent(10, 10, 0, 10)
			target := susceptibleAgent(12, 10)
			p := model.Probability(models.Susceptible, 2)

			below := &countingSource{draw: p - 1e-9}
			So(model.Transmits(&source, &target, below), ShouldBeTrue)
			So(below.calls, ShouldEqual, 1)

			above := &countingSource{draw: p}
			So(model.Transmits(&source, &target, above), ShouldBeFalse)
			So(above.calls, ShouldEqual, 1)
			So(target.Health, ShouldEqual, models.Susceptible)
		})

		Convey("A target exactly on the radius is still a candidate", func() {
			source := infectedAgent(10, 10, 0, 10)
			edge := susceptibleAgent(15, 10)
			So(model.Transmits(&source, &edge, &countingSource{draw: 0}), ShouldBeTrue)
		})

		Convey("A recovered target uses the reinfection probability", func() {
			source := infectedAgent(10, 10, 0, 10)
			target := models.Agent{Pos: models.Vec2{X: 10, Y: 10}, Health: models.Recovered}
			So(model.Transmits(&source, &target, &countingSource{draw: 0.09}), ShouldBeTrue)
			So(model.Transmits(&source, &target, &countingSource{draw: 0.11}), ShouldBeFalse)
		})
	})
}
