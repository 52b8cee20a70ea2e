package geom

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorBasics(t *testing.T) {
	v := Vector3D{3, 4, 0}
	assert.InDelta(t, 5.0, v.Length(), 1e-9)

	n := v.Normalize()
	assert.InDelta(t, 1.0, n.Length(), 1e-9)

	require.Equal(t, Vector3D{}, Vector3D{}.Normalize())
}

func TestDotAndCross(t *testing.T) {
	heading := Vector3D{1, 0, 0}
	ahead := Vector3D{1, 0, 0}
	left := Vector3D{0, 1, 0}

	assert.InDelta(t, 1.0, Dot(heading, ahead), 1e-9)
	assert.InDelta(t, 1.0, CrossZ(heading, left), 1e-9)
	assert.InDelta(t, -1.0, CrossZ(left, heading), 1e-9)
}

func TestForwardVectorFromYaw(t *testing.T) {
	fwd := Rotation{Yaw: 0}.ForwardVector()
	assert.InDelta(t, 1.0, fwd.X, 1e-9)
	assert.InDelta(t, 0.0, fwd.Y, 1e-6)

	fwd90 := Rotation{Yaw: 90}.ForwardVector()
	assert.InDelta(t, 0.0, fwd90.X, 1e-6)
	assert.InDelta(t, 1.0, fwd90.Y, 1e-6)
}

func TestPolygonOverlapAreaIdenticalSquares(t *testing.T) {
	square := orb.Ring{{0, 0}, {0, 2}, {2, 2}, {2, 0}, {0, 0}}
	area := PolygonOverlapArea(square, square)
	assert.InDelta(t, 4.0, area, 1e-9)
}

func TestPolygonOverlapAreaDisjoint(t *testing.T) {
	a := orb.Ring{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}
	b := orb.Ring{{10, 10}, {10, 11}, {11, 11}, {11, 10}, {10, 10}}
	assert.Equal(t, 0.0, PolygonOverlapArea(a, b))
}

func TestPolygonOverlapAreaPartial(t *testing.T) {
	a := orb.Ring{{0, 0}, {0, 2}, {2, 2}, {2, 0}, {0, 0}}
	b := orb.Ring{{1, 1}, {1, 3}, {3, 3}, {3, 1}, {1, 1}}
	area := PolygonOverlapArea(a, b)
	assert.InDelta(t, 1.0, area, 1e-9)
}

func TestToRingClosesPolygon(t *testing.T) {
	ring := ToRing([]Location{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}})
	require.Len(t, ring, 4)
	assert.Equal(t, ring[0], ring[3])
}
