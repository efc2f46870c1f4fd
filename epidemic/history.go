package epidemic

import (
	"contagion/models"
)

// History holds one entry per tick for each health state, as three parallel sequences.
// It grows for the life of a run; renderers ask for a trailing window.
type History struct {
	susceptible []int
	infected    []int
	recovered   []int
}

func (h *History) append(counts models.Counts) {
	h.susceptible = append(h.susceptible, counts.Susceptible)
	h.infected = append(h.infected, counts.Infected)
	h.recovered = append(h.recovered, counts.Recovered)
}

// Len is the number of recorded ticks.
func (h *History) Len() int {
	return len(h.infected)
}

func tail(seq []int, window int) []int {
	start := 0
	if window > 0 && len(seq) > window {
		start = len(seq) - window
	}
	out := make([]int, len(seq)-start)
	copy(out, seq[start:])
	return out
}

// Snapshot copies the last @window entries of each sequence; a non-positive window copies all.
func (h *History) Snapshot(window int) HistorySnapshot {
	infected := tail(h.infected, window)
	return HistorySnapshot{
		Start:       h.Len() - len(infected) + 1,
		Susceptible: tail(h.susceptible, window),
		Infected:    infected,
		Recovered:   tail(h.recovered, window),
	}
}

// Summary reduces the whole history to its headline numbers.
func (h *History) Summary() (sum Summary) {
	sum.Ticks = h.Len()
	for i, inf := range h.infected {
		if inf > sum.PeakInfected {
			sum.PeakInfected = inf
			sum.PeakTick = i + 1
		}
	}
	if n := h.Len(); n > 0 {
		sum.Final = models.Counts{
			Susceptible: h.susceptible[n-1],
			Infected:    h.infected[n-1],
			Recovered:   h.recovered[n-1],
		}
	}
	return
}

// HistorySnapshot is a read-only copy of a window of the history. Entry i describes the
// counts after tick Start+i.
type HistorySnapshot struct {
	Start       int
	Susceptible []int
	Infected    []int
	Recovered   []int
}

// Len is the number of ticks in the window.
func (hs HistorySnapshot) Len() int {
	return len(hs.Infected)
}

// Summary is the outcome of a run: its length, the infection peak and the final tallies.
type Summary struct {
	Ticks        int
	PeakInfected int
	PeakTick     int
	Final        models.Counts
}
