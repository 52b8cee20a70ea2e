package worldmap

import (
	"math"

	"github.com/bolidehi/trafficmanager/pkg/geom"
)

// cellKey is a 2D grid cell coordinate. Using a struct (rather than the
// original implementation's concatenated-string key) avoids the collision
// a string key invites: cell (11,2) and (1,12) hash identically if the
// coordinates are just pasted together without a separator.
type cellKey struct{ X, Y int32 }

func cellOf(loc geom.Location, cellSize float64) cellKey {
	return cellKey{
		X: int32(math.Floor(loc.X / cellSize)),
		Y: int32(math.Floor(loc.Y / cellSize)),
	}
}

// waypointGrid maps cells to the set of waypoint handles located in them.
type waypointGrid struct {
	cellSize float64
	cells    map[cellKey]map[Handle]struct{}
}

func newWaypointGrid(cellSize float64) *waypointGrid {
	return &waypointGrid{cellSize: cellSize, cells: make(map[cellKey]map[Handle]struct{})}
}

func (g *waypointGrid) insert(h Handle, loc geom.Location) {
	key := cellOf(loc, g.cellSize)
	set, ok := g.cells[key]
	if !ok {
		set = make(map[Handle]struct{})
		g.cells[key] = set
	}
	set[h] = struct{}{}
}

// neighbors9 returns every handle found in the 3x3 block of cells centered
// on loc's own cell.
func (g *waypointGrid) neighbors9(loc geom.Location) []Handle {
	center := cellOf(loc, g.cellSize)
	var out []Handle
	for dx := int32(-1); dx <= 1; dx++ {
		for dy := int32(-1); dy <= 1; dy++ {
			key := cellKey{X: center.X + dx, Y: center.Y + dy}
			for h := range g.cells[key] {
				out = append(out, h)
			}
		}
	}
	return out
}
