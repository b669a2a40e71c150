// Package spatial implements the Spatial Hash: a uniform grid index with
// row-partitioned parallel rebuild and radius/callback queries.
package spatial

import (
	"sync"

	"github.com/pthm-cable/primordium/entity"
)

// Point is the minimal positional record the hash indexes. Lineage rides
// along so Phase A can distinguish kin from foreign neighbors without a
// second lookup per hit.
type Point struct {
	ID      entity.ID
	Lineage entity.LineageID
	X       float64
	Y       float64
}

// Hash is a uniform grid, cell size ~= 2x mean sensing radius. A Hash instance
// is immutable between Rebuild calls; queries never allocate and never mutate
// the grid.
type Hash struct {
	cellSize     float64
	cols, rows   int
	width, height float64
	cells        [][]Point
}

// New creates a Hash covering [0,width)x[0,height) with the given cell size.
func New(width, height, cellSize float64) *Hash {
	if cellSize <= 0 {
		cellSize = 1
	}
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1
	cells := make([][]Point, cols*rows)
	return &Hash{cellSize: cellSize, cols: cols, rows: rows, width: width, height: height, cells: cells}
}

func (h *Hash) cellIndex(x, y float64) int {
	col := int(x / h.cellSize)
	row := int(y / h.cellSize)
	if col < 0 {
		col = 0
	} else if col >= h.cols {
		col = h.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= h.rows {
		row = h.rows - 1
	}
	return row*h.cols + col
}

func (h *Hash) rowOf(y float64) int {
	row := int(y / h.cellSize)
	if row < 0 {
		row = 0
	} else if row >= h.rows {
		row = h.rows - 1
	}
	return row
}

// Rebuild repopulates the grid from a dense position slice in parallel: the
// row range is partitioned into band-aligned chunks, one per worker, each
// writing only into the rows it owns so no cross-goroutine contention occurs.
func (h *Hash) Rebuild(points []Point, workers int) {
	for i := range h.cells {
		if h.cells[i] != nil {
			h.cells[i] = h.cells[i][:0]
		}
	}
	if workers < 1 {
		workers = 1
	}
	if workers == 1 || len(points) < 256 {
		for _, p := range points {
			idx := h.cellIndex(p.X, p.Y)
			h.cells[idx] = append(h.cells[idx], p)
		}
		return
	}

	// Bucket points by row-band per worker, then merge sequentially into
	// the shared cell slices (avoids locking while still parallelizing the
	// expensive per-point row/col math).
	rowsPerWorker := (h.rows + workers - 1) / workers
	type bandBucket struct {
		rowStart int
		cells    map[int][]Point
	}
	buckets := make([]bandBucket, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		rowStart := w * rowsPerWorker
		rowEnd := rowStart + rowsPerWorker
		if rowEnd > h.rows {
			rowEnd = h.rows
		}
		if rowStart >= rowEnd {
			continue
		}
		buckets[w] = bandBucket{rowStart: rowStart, cells: make(map[int][]Point)}
		wg.Add(1)
		go func(w, rowStart, rowEnd int) {
			defer wg.Done()
			b := &buckets[w]
			for _, p := range points {
				row := h.rowOf(p.Y)
				if row < rowStart || row >= rowEnd {
					continue
				}
				idx := h.cellIndex(p.X, p.Y)
				b.cells[idx] = append(b.cells[idx], p)
			}
		}(w, rowStart, rowEnd)
	}
	wg.Wait()

	for _, b := range buckets {
		for idx, pts := range b.cells {
			h.cells[idx] = append(h.cells[idx], pts...)
		}
	}
}

// QueryCallback visits every point in cells overlapping [center-radius,
// center+radius], filtered by true squared distance, calling fn for each hit.
// fn must be pure (no mutation of shared state); Phase A sensor sampling
// relies on that purity for parallel safety.
func (h *Hash) QueryCallback(cx, cy, radius float64, fn func(Point, float64)) {
	cellRadius := int(radius/h.cellSize) + 1
	centerCol := int(cx / h.cellSize)
	centerRow := int(cy / h.cellSize)
	radiusSq := radius * radius

	for dc := -cellRadius; dc <= cellRadius; dc++ {
		col := centerCol + dc
		if col < 0 || col >= h.cols {
			continue
		}
		for dr := -cellRadius; dr <= cellRadius; dr++ {
			row := centerRow + dr
			if row < 0 || row >= h.rows {
				continue
			}
			idx := row*h.cols + col
			for _, p := range h.cells[idx] {
				dx := p.X - cx
				dy := p.Y - cy
				distSq := dx*dx + dy*dy
				if distSq <= radiusSq {
					fn(p, distSq)
				}
			}
		}
	}
}

// CountInRadius counts the points within radius of (cx,cy) that satisfy
// predicate (every point when predicate is nil), by way of QueryCallback.
func (h *Hash) CountInRadius(cx, cy, radius float64, predicate func(Point) bool) int {
	count := 0
	h.QueryCallback(cx, cy, radius, func(p Point, _ float64) {
		if predicate == nil || predicate(p) {
			count++
		}
	})
	return count
}

// Len returns the grid's column and row counts (for tests/benchmarks).
func (h *Hash) Len() (cols, rows int) { return h.cols, h.rows }
