// Package vicinity provides the concurrent actor-position spatial hash
// CollisionStage queries every tick to find nearby candidates without
// scanning the whole fleet.
package vicinity

import (
	"math"
	"sync"

	"github.com/bolidehi/trafficmanager/pkg/geom"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
)

type cellKey struct{ X, Y int32 }

func cellOf(loc geom.Location, cellSize float64) cellKey {
	return cellKey{
		X: int32(math.Floor(loc.X / cellSize)),
		Y: int32(math.Floor(loc.Y / cellSize)),
	}
}

// Grid is a concurrent actor-id-to-cell spatial hash. Many readers may call
// GetActors concurrently; UpdateGrid and EraseActor take the exclusive lock
// only for the duration of the map mutation.
type Grid struct {
	mu       sync.RWMutex
	cellSize float64
	cellOf   map[simclient.ActorID]cellKey
	cells    map[cellKey]map[simclient.ActorID]struct{}
}

// New returns an empty Grid with the given square cell size in metres.
func New(cellSize float64) *Grid {
	return &Grid{
		cellSize: cellSize,
		cellOf:   make(map[simclient.ActorID]cellKey),
		cells:    make(map[cellKey]map[simclient.ActorID]struct{}),
	}
}

// UpdateGrid places actor at its current location's cell, moving it from
// its previous cell if it changed, and returns the new cell coordinates.
func (g *Grid) UpdateGrid(id simclient.ActorID, loc geom.Location) (int32, int32) {
	key := cellOf(loc, g.cellSize)

	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.cellOf[id]; ok {
		if old == key {
			return key.X, key.Y
		}
		if set, ok := g.cells[old]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(g.cells, old)
			}
		}
	}

	set, ok := g.cells[key]
	if !ok {
		set = make(map[simclient.ActorID]struct{})
		g.cells[key] = set
	}
	set[id] = struct{}{}
	g.cellOf[id] = key
	return key.X, key.Y
}

// GetActors refreshes id's own cell via UpdateGrid, then returns every
// other actor id found in the 3x3 cell neighbourhood around it.
func (g *Grid) GetActors(id simclient.ActorID, loc geom.Location) []simclient.ActorID {
	g.UpdateGrid(id, loc)

	g.mu.RLock()
	defer g.mu.RUnlock()

	center := g.cellOf[id]
	var out []simclient.ActorID
	for dx := int32(-1); dx <= 1; dx++ {
		for dy := int32(-1); dy <= 1; dy++ {
			key := cellKey{X: center.X + dx, Y: center.Y + dy}
			for other := range g.cells[key] {
				if other != id {
					out = append(out, other)
				}
			}
		}
	}
	return out
}

// EraseActor removes id from both the cell-membership and reverse-lookup
// maps. A no-op if id is not present.
func (g *Grid) EraseActor(id simclient.ActorID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key, ok := g.cellOf[id]
	if !ok {
		return
	}
	delete(g.cellOf, id)
	if set, ok := g.cells[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(g.cells, key)
		}
	}
}
