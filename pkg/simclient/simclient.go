// Package simclient names the simulator RPC surface the traffic manager
// consumes. The simulator itself, the road-description parser, sensor and
// rendering layers, scripting bindings and the recorder are out of scope
// — this package is the seam: a
// narrow interface plus, in the fake subpackage, the minimum in-memory
// implementation needed to exercise the pipeline in tests and the demo CLI.
package simclient

import "github.com/bolidehi/trafficmanager/pkg/geom"

// ActorID identifies an actor (vehicle, pedestrian, ...) in the simulator.
type ActorID uint32

// TrafficLightState mirrors the simulator's signal phase for an actor
// currently waiting at a light.
type TrafficLightState int

const (
	TrafficLightUnknown TrafficLightState = iota
	TrafficLightGreen
	TrafficLightYellow
	TrafficLightRed
)

// Actor is the minimal handle shared by every live entity in the world.
type Actor interface {
	ID() ActorID
	Location() geom.Location
	Velocity() geom.Vector3D
	Transform() geom.Transform
	BoundingBox() geom.BoundingBox
	IsAlive() bool
}

// Vehicle is an Actor that additionally knows its speed limit and signal
// state, i.e. everything the pipeline needs about a drivable actor.
type Vehicle interface {
	Actor
	SpeedLimit() float64
	TrafficLightState() TrafficLightState
	IsAtTrafficLight() bool
}

// Waypoint is the minimal shape the road-description parser must expose for
// InMemoryMap.SetUp to interpolate and stitch a dense topology from it.
type Waypoint interface {
	ID() int64
	Location() geom.Location
	ForwardVector() geom.Vector3D
	IsJunction() bool
	JunctionID() int32
	// Next returns the waypoint(s) reached by advancing distance metres
	// along the road; more than one result means a branch.
	Next(distance float64) []Waypoint
	LaneChangeLeft() (Waypoint, bool)
	LaneChangeRight() (Waypoint, bool)
}

// RoadSegment is one sparse-topology entry: a (begin, end) waypoint pair
// whose arc length is at least the map builder's stitch epsilon.
type RoadSegment struct {
	Begin, End Waypoint
}

// VehicleControlCommand is the actuation triple BatchControlStage submits
// for one actor in a tick.
type VehicleControlCommand struct {
	ActorID         ActorID
	Throttle, Brake float32
	Steer           float32
}

// Client is the simulator RPC surface the pipeline depends on.
type Client interface {
	// Actors returns every live actor whose type name matches pattern
	// (e.g. "vehicle.*"), mirroring the simulator's own actor filter.
	Actors(pattern string) ([]Actor, error)
	// ApplyBatch submits every command in one round-trip.
	ApplyBatch(cmds []VehicleControlCommand) error
	// ResetAllTrafficLightGroups puts every signal group back to a known
	// phase; called once when the pipeline starts.
	ResetAllTrafficLightGroups() error
}
