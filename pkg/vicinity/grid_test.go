package vicinity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bolidehi/trafficmanager/pkg/geom"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
)

func TestGetActorsFindsNeighboursNotSelf(t *testing.T) {
	g := New(10.0)

	g.UpdateGrid(1, geom.Location{X: 0, Y: 0})
	g.UpdateGrid(2, geom.Location{X: 5, Y: 5})
	g.UpdateGrid(3, geom.Location{X: 500, Y: 500})

	near := g.GetActors(1, geom.Location{X: 0, Y: 0})
	assert.Contains(t, near, simclient.ActorID(2))
	assert.NotContains(t, near, simclient.ActorID(1))
	assert.NotContains(t, near, simclient.ActorID(3))
}

func TestUpdateGridMovesBetweenCells(t *testing.T) {
	g := New(10.0)

	x1, y1 := g.UpdateGrid(1, geom.Location{X: 0, Y: 0})
	assert.EqualValues(t, 0, x1)
	assert.EqualValues(t, 0, y1)

	x2, y2 := g.UpdateGrid(1, geom.Location{X: 100, Y: 0})
	assert.EqualValues(t, 10, x2)
	assert.EqualValues(t, 0, y2)

	assert.Empty(t, g.cells[cellKey{0, 0}])
	assert.Contains(t, g.cells[cellKey{10, 0}], simclient.ActorID(1))
}

func TestEraseActorRemovesFromBothMaps(t *testing.T) {
	g := New(10.0)
	g.UpdateGrid(1, geom.Location{X: 0, Y: 0})

	g.EraseActor(1)

	_, stillTracked := g.cellOf[1]
	assert.False(t, stillTracked)
	assert.NotContains(t, g.cells[cellKey{0, 0}], simclient.ActorID(1))
}

func TestEraseActorNoopWhenAbsent(t *testing.T) {
	g := New(10.0)
	assert.NotPanics(t, func() { g.EraseActor(99) })
}

func TestConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	g := New(10.0)
	var wg sync.WaitGroup
	for i := simclient.ActorID(0); i < 200; i++ {
		wg.Add(1)
		go func(id simclient.ActorID) {
			defer wg.Done()
			g.UpdateGrid(id, geom.Location{X: float64(id), Y: 0})
		}(i)
	}
	wg.Wait()

	assert.Len(t, g.cellOf, 200)
}
