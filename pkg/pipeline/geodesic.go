package pipeline

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/bolidehi/trafficmanager/pkg/config"
	"github.com/bolidehi/trafficmanager/pkg/geom"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
	"github.com/bolidehi/trafficmanager/pkg/worldmap"
)

// corridorSampleCount returns how many buffer waypoints ahead the geodesic
// boundary should span: the highway branch uses a flat 5 metres of
// corridor per m/s of speed, the urban branch a shorter square-root-scaled
// horizon plus stopping margin.
func corridorSampleCount(cfg config.Parameters, speed float64) int {
	var l float64
	if speed > cfg.HighwaySpeed {
		l = 5 * speed
	} else {
		l = math.Max(math.Sqrt(cfg.BoundaryExtensionSquare*speed), cfg.BoundaryExtensionMin) +
			math.Max(speed*0.5, cfg.BoundaryExtensionMin) + cfg.BoundaryExtensionMin
	}
	n := int(math.Ceil(l))
	if n < 2 {
		n = 2
	}
	return n
}

// geodesicBoundary builds the clockwise corridor polygon for a registered
// vehicle: offset lines at ±half-width perpendicular to the buffered path
// ahead, closed around the vehicle's own bounding box at the near end.
func geodesicBoundary(cfg config.Parameters, wm *worldmap.InMemoryMap, actor simclient.Actor, buf []worldmap.Handle) orb.Ring {
	halfWidth := actor.BoundingBox().Extent.Y
	if halfWidth <= 0 {
		halfWidth = 1.0
	}
	speed := actor.Velocity().Length()
	n := corridorSampleCount(cfg, speed)
	if n > len(buf) {
		n = len(buf)
	}
	if n < 1 {
		return boundingBoxBoundary(actor)
	}

	locs := make([]geom.Location, n)
	for i := 0; i < n; i++ {
		locs[i] = wm.Waypoint(buf[i]).Location
	}

	left := make([]geom.Location, n)
	right := make([]geom.Location, n)
	for i := 0; i < n; i++ {
		var dir geom.Vector3D
		switch {
		case i+1 < n:
			dir = locs[i+1].Sub(locs[i]).Normalize()
		case i > 0:
			dir = locs[i].Sub(locs[i-1]).Normalize()
		default:
			dir = actor.Transform().ForwardVector()
		}
		perp := dir.Perpendicular2D().Normalize().Scale(halfWidth)
		left[i] = locs[i].Add(perp)
		right[i] = locs[i].Sub(perp)
	}

	pts := make([]geom.Location, 0, 2*n)
	pts = append(pts, left...)
	for i := n - 1; i >= 0; i-- {
		pts = append(pts, right[i])
	}

	// Close the near end around the rear corners of the vehicle's own box.
	fwd := actor.Transform().ForwardVector()
	side := fwd.Perpendicular2D().Normalize()
	halfLen := actor.BoundingBox().Extent.X
	if halfLen <= 0 {
		halfLen = 1
	}
	back := actor.Location().Sub(fwd.Scale(halfLen))
	pts = append(pts, back.Sub(side.Scale(halfWidth)), back.Add(side.Scale(halfWidth)))
	return geom.ToRing(pts)
}

// boundingBoxBoundary is the fallback shape used for unregistered actors,
// whose path is unknown: a rectangle around the actor's own bounding box,
// oriented by its current heading.
func boundingBoxBoundary(actor simclient.Actor) orb.Ring {
	pos := actor.Location()
	fwd := actor.Transform().ForwardVector()
	if fwd.LengthSquared() == 0 {
		fwd = geom.Vector3D{X: 1}
	}
	side := fwd.Perpendicular2D().Normalize()
	ext := actor.BoundingBox().Extent
	halfLen, halfWidth := ext.X, ext.Y
	if halfLen <= 0 {
		halfLen = 1
	}
	if halfWidth <= 0 {
		halfWidth = 1
	}

	front := pos.Add(fwd.Scale(halfLen))
	back := pos.Sub(fwd.Scale(halfLen))
	corners := []geom.Location{
		front.Add(side.Scale(halfWidth)),
		back.Add(side.Scale(halfWidth)),
		back.Sub(side.Scale(halfWidth)),
		front.Sub(side.Scale(halfWidth)),
	}
	return geom.ToRing(corners)
}
