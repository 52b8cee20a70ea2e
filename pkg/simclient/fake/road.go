// Package fake provides an in-memory simclient.Client plus the waypoint and
// vehicle implementations needed to drive the pipeline end to end without a
// real simulator attached. It is test and demo scaffolding: straight-line
// roads with optional junction ranges, and vehicles that integrate a simple
// kinematic step per tick.
package fake

import (
	"github.com/bolidehi/trafficmanager/pkg/geom"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
)

// JunctionRange marks [StartS, EndS) along a Road as being inside junction
// JunctionID, so waypoints sampled in that range report IsJunction() true.
type JunctionRange struct {
	StartS, EndS float64
	JunctionID   int32
}

// Road is a polyline road built from a sequence of through-points; distance
// along the road maps linearly between consecutive points. It implements
// the source side of simclient.Waypoint via (*Road).At(s).
type Road struct {
	ID        string
	Points    []geom.Location
	Junctions []JunctionRange
	// LaneLeft/LaneRight point at the parallel road usable for a lane
	// change at any point along this one, if any.
	LaneLeft, LaneRight *Road
	segLengths           []float64
	total                float64
}

// NewStraightRoad builds a single-segment road from a to b.
func NewStraightRoad(id string, a, b geom.Location) *Road {
	return NewRoad(id, []geom.Location{a, b})
}

// NewRoad builds a polyline road through the given points.
func NewRoad(id string, points []geom.Location) *Road {
	r := &Road{ID: id, Points: points}
	r.segLengths = make([]float64, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		l := geom.Distance(points[i], points[i+1])
		r.segLengths[i] = l
		r.total += l
	}
	return r
}

// Length returns the total arc length of the road.
func (r *Road) Length() float64 { return r.total }

// At returns the Waypoint at arc-length s along the road, clamped to
// [0, Length()].
func (r *Road) At(s float64) *Waypoint {
	if s < 0 {
		s = 0
	}
	if s > r.total {
		s = r.total
	}
	return &Waypoint{road: r, s: s}
}

func (r *Road) junctionAt(s float64) (bool, int32) {
	for _, j := range r.Junctions {
		if s >= j.StartS && s < j.EndS {
			return true, j.JunctionID
		}
	}
	return false, 0
}

// locationAt resolves the XYZ position at arc-length s, interpolating
// within the enclosing segment.
func (r *Road) locationAt(s float64) geom.Location {
	if len(r.Points) == 1 {
		return r.Points[0]
	}
	remaining := s
	for i, segLen := range r.segLengths {
		if remaining <= segLen || i == len(r.segLengths)-1 {
			t := 0.0
			if segLen > 1e-9 {
				t = remaining / segLen
			}
			if t > 1 {
				t = 1
			}
			return geom.Lerp(r.Points[i], r.Points[i+1], t)
		}
		remaining -= segLen
	}
	return r.Points[len(r.Points)-1]
}

func (r *Road) forwardAt(s float64) geom.Vector3D {
	if len(r.Points) < 2 {
		return geom.Vector3D{X: 1}
	}
	remaining := s
	for i, segLen := range r.segLengths {
		if remaining <= segLen || i == len(r.segLengths)-1 {
			return r.Points[i+1].Sub(r.Points[i]).Normalize()
		}
		remaining -= segLen
	}
	n := len(r.Points)
	return r.Points[n-1].Sub(r.Points[n-2]).Normalize()
}

// Waypoint is a point along a Road; implements simclient.Waypoint.
type Waypoint struct {
	road *Road
	s    float64
}

func (w *Waypoint) ID() int64 { return int64(1<<40) ^ int64(len(w.road.ID))<<32 ^ int64(w.s*1000) }

func (w *Waypoint) Location() geom.Location { return w.road.locationAt(w.s) }

func (w *Waypoint) ForwardVector() geom.Vector3D { return w.road.forwardAt(w.s) }

func (w *Waypoint) IsJunction() bool {
	ok, _ := w.road.junctionAt(w.s)
	return ok
}

func (w *Waypoint) JunctionID() int32 {
	_, id := w.road.junctionAt(w.s)
	return id
}

// Next advances distance metres along the road (clamped to its end) and
// returns at most one result: branches are not modeled, and a waypoint
// already at the road's end gets nil.
func (w *Waypoint) Next(distance float64) []simclient.Waypoint {
	if w.s >= w.road.total {
		// Already at the segment's exit node; cross-segment stitching is
		// InMemoryMap.SetUp's job, not this primitive's.
		return nil
	}
	news := w.s + distance
	if news <= w.s {
		return nil
	}
	if news > w.road.total {
		news = w.road.total
	}
	return []simclient.Waypoint{w.road.At(news)}
}

func (w *Waypoint) LaneChangeLeft() (simclient.Waypoint, bool) {
	if w.road.LaneLeft == nil {
		return nil, false
	}
	return w.road.LaneLeft.At(w.s), true
}

func (w *Waypoint) LaneChangeRight() (simclient.Waypoint, bool) {
	if w.road.LaneRight == nil {
		return nil, false
	}
	return w.road.LaneRight.At(w.s), true
}
