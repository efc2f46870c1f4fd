package epidemic

import (
	"testing"

	"contagion/models"

	. "github.com/smartystreets/goconvey/convey"
)

func TestHistory(t *testing.T) {
	Convey("Given a history of six ticks", t, func() {
		hist := History{}
		for _, inf := range []int{1, 3, 7, 9, 4, 2} {
			hist.append(models.Counts{Susceptible: 10 - inf, Infected: inf})
		}

		Convey("A full snapshot starts at tick 1", func() {
			snap := hist.Snapshot(0)
			So(snap.Start, ShouldEqual, 1)
			So(snap.Infected, ShouldResemble, []int{1, 3, 7, 9, 4, 2})
			So(snap.Susceptible, ShouldResemble, []int{9, 7, 3, 1, 6, 8})
		})

		Convey("A window keeps the trailing entries and their tick offset", func() {
			snap := hist.Snapshot(4)
			So(snap.Len(), ShouldEqual, 4)
			So(snap.Start, ShouldEqual, 3)
			So(snap.Infected, ShouldResemble, []int{7, 9, 4, 2})
			So(snap.Recovered, ShouldResemble, []int{0, 0, 0, 0})
		})

		Convey("A window larger than the history returns all of it", func() {
			So(hist.Snapshot(100).Len(), ShouldEqual, 6)
		})

		Convey("Snapshots do not alias the history", func() {
			snap := hist.Snapshot(0)
			snap.Infected[0] = 1000
			So(hist.Snapshot(0).Infected[0], ShouldEqual, 1)
		})

		Convey("The summary finds the peak and the final counts", func() {
			sum := hist.Summary()
			So(sum.Ticks, ShouldEqual, 6)
			So(sum.PeakInfected, ShouldEqual, 9)
			So(sum.PeakTick, ShouldEqual, 4)
			So(sum.Final, ShouldResemble, models.Counts{Susceptible: 8, Infected: 2})
		})
	})

	Convey("An empty history has an empty snapshot and a zero summary", t, func() {
		hist := History{}
		So(hist.Snapshot(10).Len(), ShouldEqual, 0)
		So(hist.Snapshot(10).Start, ShouldEqual, 1)
		So(hist.Summary(), ShouldResemble, Summary{})
	})
}
