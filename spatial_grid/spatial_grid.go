// spatial_grid partitions points into a uniform grid of square cells for neighborhood queries.
package spatial_grid

import (
	"math"

	"contagion/models"
)

// cellKey is the integer coordinate of a grid cell: (floor(x/c), floor(y/c)).
type cellKey struct {
	cx, cy int
}

// SpatialIndex buckets items by the cell containing their position.
// The cell size equals the query radius, so the 3x3 block of cells around a point
// always contains every item within that radius of it. Results are therefore a superset
// of the true neighbors, and callers must apply an exact distance test.
//
// The index is meant to be cleared and fully rebuilt whenever positions change; there is
// no incremental move operation.
type SpatialIndex[T any] struct {
	cellSize float64
	cells    map[cellKey][]T
}

// NewSpatialIndex returns an empty index whose cells are @cellSize on a side.
// A non-positive cell size is replaced by 1 so that cell coordinates stay finite.
func NewSpatialIndex[T any](cellSize float64) *SpatialIndex[T] {
	if cellSize <= 0 || math.IsNaN(cellSize) {
		cellSize = 1
	}
	return &SpatialIndex[T]{
		cellSize: cellSize,
		cells:    map[cellKey][]T{},
	}
}

// CellSize returns the side length of a cell.
func (idx *SpatialIndex[T]) CellSize() float64 {
	return idx.cellSize
}

func (idx *SpatialIndex[T]) key(pos models.Vec2) cellKey {
	return cellKey{
		cx: int(math.Floor(pos.X / idx.cellSize)),
		cy: int(math.Floor(pos.Y / idx.cellSize)),
	}
}

// Clear empties every bucket. Buckets that were already empty since the last clear are
// dropped from the map, so the cost tracks the number of occupied cells rather than
// every cell ever touched. Non-empty buckets keep their capacity for the next rebuild.
func (idx *SpatialIndex[T]) Clear() {
	for key, bucket := range idx.cells {
		if len(bucket) == 0 {
			delete(idx.cells, key)
			continue
		}
		idx.cells[key] = bucket[:0]
	}
}

// Insert appends @item to the bucket of the cell containing @pos.
func (idx *SpatialIndex[T]) Insert(pos models.Vec2, item T) {
	key := idx.key(pos)
	idx.cells[key] = append(idx.cells[key], item)
}

// Neighbors appends to @buf the contents of the 3x3 block of cells centered on the cell
// containing @pos, and returns the extended slice. Pass buf[:0] to reuse an allocation.
func (idx *SpatialIndex[T]) Neighbors(pos models.Vec2, buf []T) []T {
	center := idx.key(pos)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			buf = append(buf, idx.cells[cellKey{center.cx + dx, center.cy + dy}]...)
		}
	}
	return buf
}

// Occupied returns the number of non-empty cells.
func (idx *SpatialIndex[T]) Occupied() (n int) {
	for _, bucket := range idx.cells {
		if len(bucket) > 0 {
			n++
		}
	}
	return
}

// Len returns the number of indexed items.
func (idx *SpatialIndex[T]) Len() (n int) {
	for _, bucket := range idx.cells {
		n += len(bucket)
	}
	return
}
