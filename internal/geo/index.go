package geo

import (
	"bytes"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// cellDeg is the edge of a grid cell in degrees (about 1.1 km of latitude).
const cellDeg = 0.01

const (
	lngCells = int(360 / cellDeg)
	// beyond this latitude a longitude span collapses and the grid stops paying off
	polarLat = 85.0
)

type cell struct{ x, y int }

type entry struct {
	id        uuid.UUID
	point     Point
	createdAt time.Time
	cell      cell
}

// Index answers "which ids are within r meters of p" ordered by recency.
// It is safe for concurrent use.
type Index struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*entry
	cells map[cell]map[uuid.UUID]*entry
}

func NewIndex() *Index {
	return &Index{
		items: make(map[uuid.UUID]*entry),
		cells: make(map[cell]map[uuid.UUID]*entry),
	}
}

func cellOf(p Point) cell {
	x := int(math.Floor((p.Lng + 180) / cellDeg))
	if x >= lngCells {
		x = lngCells - 1
	}
	return cell{x: x, y: int(math.Floor((p.Lat + 90) / cellDeg))}
}

// Put inserts id or moves it to p.
func (ix *Index) Put(id uuid.UUID, p Point, createdAt time.Time) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e := &entry{id: id, point: p, createdAt: createdAt, cell: cellOf(p)}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(id)
	ix.items[id] = e
	bucket := ix.cells[e.cell]
	if bucket == nil {
		bucket = make(map[uuid.UUID]*entry)
		ix.cells[e.cell] = bucket
	}
	bucket[id] = e
	return nil
}

func (ix *Index) Remove(id uuid.UUID) {
	ix.mu.Lock()
	ix.removeLocked(id)
	ix.mu.Unlock()
}

func (ix *Index) removeLocked(id uuid.UUID) {
	old, ok := ix.items[id]
	if !ok {
		return
	}
	delete(ix.items, id)
	if bucket := ix.cells[old.cell]; bucket != nil {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(ix.cells, old.cell)
		}
	}
}

func (ix *Index) Has(id uuid.UUID) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.items[id]
	return ok
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.items)
}

// Query returns the ids within radius meters of center (inclusive), newest
// first with ties broken by id. keep, when non-nil, filters candidates.
// A non-positive radius or an invalid center yields nothing.
func (ix *Index) Query(center Point, radius float64, keep func(uuid.UUID) bool) []uuid.UUID {
	if radius <= 0 || math.IsNaN(radius) || center.Validate() != nil {
		return nil
	}

	ix.mu.RLock()
	var hits []*entry
	consider := func(e *entry) {
		if Distance(center, e.point) <= radius && (keep == nil || keep(e.id)) {
			hits = append(hits, e)
		}
	}
	if cells, ok := ix.coverLocked(center, radius); ok {
		for _, c := range cells {
			for _, e := range ix.cells[c] {
				consider(e)
			}
		}
	} else {
		for _, e := range ix.items {
			consider(e)
		}
	}
	ix.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].createdAt.Equal(hits[j].createdAt) {
			return hits[i].createdAt.After(hits[j].createdAt)
		}
		return bytes.Compare(hits[i].id[:], hits[j].id[:]) < 0
	})
	ids := make([]uuid.UUID, len(hits))
	for i, e := range hits {
		ids[i] = e.id
	}
	return ids
}

// coverLocked lists the grid cells overlapping the bounding box of the
// query circle. ok is false when a full scan is cheaper or the box is
// degenerate (poles, whole-globe spans).
func (ix *Index) coverLocked(center Point, radius float64) ([]cell, bool) {
	dLat, dLng, ok := span(center, radius)
	minLat, maxLat := center.Lat-dLat, center.Lat+dLat
	if !ok || minLat < -polarLat || maxLat > polarLat {
		return nil, false
	}

	// one extra cell on each side absorbs rounding at cell edges
	y0 := int(math.Floor((minLat+90)/cellDeg)) - 1
	y1 := int(math.Floor((maxLat+90)/cellDeg)) + 1
	x0 := int(math.Floor((center.Lng-dLng+180)/cellDeg)) - 1
	x1 := int(math.Floor((center.Lng+dLng+180)/cellDeg)) + 1
	if x1-x0+1 >= lngCells {
		return nil, false
	}

	n := (y1 - y0 + 1) * (x1 - x0 + 1)
	if n > len(ix.items) {
		return nil, false
	}
	cells := make([]cell, 0, n)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			// wrap across the antimeridian
			cells = append(cells, cell{x: ((x % lngCells) + lngCells) % lngCells, y: y})
		}
	}
	return cells, true
}
