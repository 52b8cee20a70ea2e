package pipeline

import (
	"github.com/bolidehi/trafficmanager/pkg/simclient"
	"github.com/bolidehi/trafficmanager/pkg/worldmap"
)

// LocalizationToPlanner carries the lateral error signal MotionPlannerStage
// consumes for its lateral PID.
type LocalizationToPlanner struct {
	ActorID   simclient.ActorID
	Deviation float64
}

// LocalizationToCollision hands CollisionStage a copy of the vehicle's
// waypoint buffer as of this tick; Localization never writes to it again.
type LocalizationToCollision struct {
	ActorID simclient.ActorID
	Buffer  []worldmap.Handle
}

// LocalizationToTrafficLight carries the near/far geodesic waypoints
// TrafficLightStage samples to detect an approaching unsignalised junction.
type LocalizationToTrafficLight struct {
	ActorID  simclient.ActorID
	Near     worldmap.Handle
	Far      worldmap.Handle
	HasNear  bool
	HasFar   bool
}

// CollisionToPlanner carries the hazard bit CollisionStage raises.
type CollisionToPlanner struct {
	ActorID simclient.ActorID
	Hazard  bool
}

// TrafficLightToPlanner carries the hazard bit TrafficLightStage raises.
type TrafficLightToPlanner struct {
	ActorID simclient.ActorID
	Hazard  bool
}

// PlannerToControl is the actuation triple BatchControlStage submits.
type PlannerToControl = simclient.VehicleControlCommand

// Frame aliases name the slice types carried over each Messenger edge —
// one slot per vehicle present in that tick's production, ordered however
// the producing stage chose to iterate.
type (
	LocalizationToPlannerFrame      = []LocalizationToPlanner
	LocalizationToCollisionFrame    = []LocalizationToCollision
	LocalizationToTrafficLightFrame = []LocalizationToTrafficLight
	CollisionToPlannerFrame         = []CollisionToPlanner
	TrafficLightToPlannerFrame      = []TrafficLightToPlanner
	PlannerToControlFrame           = []PlannerToControl
)
