package epidemic

import (
	"math/rand/v2"
	"time"
)

// Source is the random number generator a run draws from. *rand.Rand satisfies it.
// The engine owns exactly one Source; nothing reaches for a process-global generator.
type Source interface {
	Float64() float64
	IntN(n int) int
	Perm(n int) []int
}

// NewSource returns a PCG-backed generator. A zero seed draws one from the clock, so
// interactive runs differ while tests and replays can pin the sequence.
func NewSource(seed uint64) (*rand.Rand, uint64) {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), seed
}
