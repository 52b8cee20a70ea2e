// Package worldmap builds and serves the dense, grid-indexed waypoint graph
// the rest of the pipeline drives against: InMemoryMap.SetUp turns a sparse
// sequence of (begin, end) road segments into an arena of SimpleWaypoints
// connected by successor and lane-change handles.
package worldmap

import "github.com/bolidehi/trafficmanager/pkg/geom"

// Handle is a stable reference to a SimpleWaypoint owned by an InMemoryMap's
// arena. Handles stay valid for the InMemoryMap's lifetime; SimpleWaypoints
// themselves are immutable once SetUp returns.
type Handle int32

// Invalid is the sentinel for "no such waypoint". It is -1, not the zero
// value: Handle 0 is the first node of the arena.
const Invalid Handle = -1

// SimpleWaypoint is a node in the dense topology graph.
type SimpleWaypoint struct {
	Location   geom.Location
	Forward    geom.Vector3D
	Junction   bool
	JunctionID int32

	Successors []Handle
	LaneLeft   Handle
	LaneRight  Handle
}

// HasLaneLeft reports whether a left lane-change link was recorded.
func (w SimpleWaypoint) HasLaneLeft() bool { return w.LaneLeft != Invalid }

// HasLaneRight reports whether a right lane-change link was recorded.
func (w SimpleWaypoint) HasLaneRight() bool { return w.LaneRight != Invalid }
