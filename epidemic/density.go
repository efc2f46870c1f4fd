package epidemic

import (
	"math"

	"contagion/atomic_float"
	"contagion/models"
)

// DENSITY_DECAY is the per-tick multiplicative fade of the density field.
const DENSITY_DECAY = 0.975

// DensityField is a decaying grid accumulating recent infection activity, one cell per
// pixel block of the display. Infected agents raise their cell, recovered agents lower it,
// and susceptible agents leave it alone. Only the engine writes to it; readers get copies.
type DensityField struct {
	cols, rows    int
	width, height float64
	cells         []float64
}

func newDensityField(width, height float64, pixelSize int) *DensityField {
	cols := int(width) / pixelSize
	rows := int(height) / pixelSize
	return &DensityField{
		cols:   cols,
		rows:   rows,
		width:  width,
		height: height,
		cells:  make([]float64, cols*rows),
	}
}

// cellIndex maps a world position to its field cell. Positions on the far walls map just
// past the grid and are reported as out of range.
func (df *DensityField) cellIndex(pos models.Vec2) (int, bool) {
	x := int(pos.X / df.width * float64(df.cols))
	y := int(pos.Y / df.height * float64(df.rows))
	if x < 0 || x >= df.cols || y < 0 || y >= df.rows {
		return 0, false
	}
	return y*df.cols + x, true
}

func (df *DensityField) decay(factor float64) {
	for i := range df.cells {
		df.cells[i] *= factor
	}
}

// deposit adds each agent's signed contribution to its cell. Safe to call concurrently on
// disjoint agent slices.
func (df *DensityField) deposit(agents []models.Agent, contribution float64) {
	for i := range agents {
		var delta float64
		switch agents[i].Health {
		case models.Infected:
			delta = contribution
		case models.Recovered:
			delta = -contribution
		default:
			continue
		}
		if idx, ok := df.cellIndex(agents[i].Pos); ok {
			atomic_float.Add(&df.cells[idx], delta)
		}
	}
}

func (df *DensityField) clampNonNegative() {
	for i, v := range df.cells {
		if v < 0 {
			df.cells[i] = 0
		}
	}
}

// Snapshot copies the current field for a renderer.
func (df *DensityField) Snapshot() DensitySnapshot {
	cells := make([]float64, len(df.cells))
	copy(cells, df.cells)
	return DensitySnapshot{
		Cols:  df.cols,
		Rows:  df.rows,
		Cells: cells,
	}
}

// DensitySnapshot is a read-only copy of the density field, row-major.
type DensitySnapshot struct {
	Cols  int
	Rows  int
	Cells []float64
}

// At returns the value of cell (x, y), or zero outside the grid.
func (ds DensitySnapshot) At(x, y int) float64 {
	if x < 0 || x >= ds.Cols || y < 0 || y >= ds.Rows {
		return 0
	}
	return ds.Cells[y*ds.Cols+x]
}

// Max returns the largest cell value.
func (ds DensitySnapshot) Max() (max float64) {
	for _, v := range ds.Cells {
		max = math.Max(max, v)
	}
	return
}
