package atomic_float

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// Lock-free float64 operations over plain float64 storage, so that a large slice of
// accumulators (a density field, for example) can be written by several workers without
// a lock per cell or a lock over the whole slice.
//
// The pointers must refer to 8-byte aligned float64s; elements of a []float64 always are.
// No unsafe pointer outlives the call that creates it.

func bits(val *float64) *uint64 {
	return (*uint64)(unsafe.Pointer(val))
}

// Load atomically reads the float64.
func Load(val *float64) float64 {
	return math.Float64frombits(atomic.LoadUint64(bits(val)))
}

// Store atomically writes the float64.
func Store(val *float64, newVal float64) {
	atomic.StoreUint64(bits(val), math.Float64bits(newVal))
}

// TryAdd attempts a single compare-and-swap of old+addend. If another writer changed the
// value in between, nothing is written and succeeded is false, leaving the caller to drop
// or recompute the update.
func TryAdd(val *float64, addend float64) (newVal float64, succeeded bool) {
	old := Load(val)
	newVal = old + addend
	succeeded = atomic.CompareAndSwapUint64(bits(val), math.Float64bits(old), math.Float64bits(newVal))
	return
}

// Add retries TryAdd until the addend has been applied, and returns the resulting value.
func Add(val *float64, addend float64) float64 {
	for {
		if newVal, ok := TryAdd(val, addend); ok {
			return newVal
		}
	}
}
