package fake

import (
	"math"
	"strings"
	"sync"

	"github.com/bolidehi/trafficmanager/pkg/geom"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
)

const (
	maxAcceleration = 3.0  // m/s^2 at full throttle
	maxDeceleration = 8.0  // m/s^2 at full brake
	maxSteerRate    = 1.2  // rad/s at steer=1, scaled down with speed
)

// Vehicle is a simple kinematic point-mass actor: throttle/brake accelerate
// or decelerate along the current heading, steer rotates the heading at a
// rate proportional to the steer magnitude and to speed up to 5 m/s
// (constant above that).
type Vehicle struct {
	mu sync.RWMutex

	id          simclient.ActorID
	typeName    string
	location    geom.Location
	yawDeg      float64
	speed       float64
	speedLimit  float64
	extent      geom.Vector3D
	alive       bool
	lightState  simclient.TrafficLightState
	atLight     bool

	lastThrottle, lastBrake, lastSteer float32
}

// NewVehicle creates a live vehicle at the given location and heading.
func NewVehicle(id simclient.ActorID, location geom.Location, yawDeg, speed, speedLimit float64) *Vehicle {
	return &Vehicle{
		id:         id,
		typeName:   "vehicle.generic",
		location:   location,
		yawDeg:     yawDeg,
		speed:      speed,
		speedLimit: speedLimit,
		extent:     geom.Vector3D{X: 2.2, Y: 1.0, Z: 0.75},
		alive:      true,
	}
}

func (v *Vehicle) ID() simclient.ActorID { v.mu.RLock(); defer v.mu.RUnlock(); return v.id }

func (v *Vehicle) Location() geom.Location {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.location
}

func (v *Vehicle) Velocity() geom.Vector3D {
	v.mu.RLock()
	defer v.mu.RUnlock()
	fwd := geom.Rotation{Yaw: v.yawDeg}.ForwardVector()
	return fwd.Scale(v.speed)
}

func (v *Vehicle) Transform() geom.Transform {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return geom.Transform{Location: v.location, Rotation: geom.Rotation{Yaw: v.yawDeg}}
}

func (v *Vehicle) BoundingBox() geom.BoundingBox {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return geom.BoundingBox{Extent: v.extent}
}

func (v *Vehicle) IsAlive() bool { v.mu.RLock(); defer v.mu.RUnlock(); return v.alive }

func (v *Vehicle) SpeedLimit() float64 { v.mu.RLock(); defer v.mu.RUnlock(); return v.speedLimit }

func (v *Vehicle) TrafficLightState() simclient.TrafficLightState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lightState
}

func (v *Vehicle) IsAtTrafficLight() bool { v.mu.RLock(); defer v.mu.RUnlock(); return v.atLight }

// SetAlive marks the vehicle dead (e.g. destroyed between ticks).
func (v *Vehicle) SetAlive(alive bool) { v.mu.Lock(); defer v.mu.Unlock(); v.alive = alive }

// SetTrafficLight sets the signal state the vehicle currently observes.
func (v *Vehicle) SetTrafficLight(state simclient.TrafficLightState, atLight bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lightState = state
	v.atLight = atLight
}

// Speed returns the current scalar speed, useful for assertions in tests.
func (v *Vehicle) Speed() float64 { v.mu.RLock(); defer v.mu.RUnlock(); return v.speed }

// LastControl returns the most recently applied control triple.
func (v *Vehicle) LastControl() (throttle, brake, steer float32) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastThrottle, v.lastBrake, v.lastSteer
}

// integrate applies one control step over dt seconds.
func (v *Vehicle) integrate(throttle, brake, steer float32, dt float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.lastThrottle, v.lastBrake, v.lastSteer = throttle, brake, steer

	accel := float64(throttle) * maxAcceleration
	decel := float64(brake) * maxDeceleration
	v.speed += (accel - decel) * dt
	if v.speed < 0 {
		v.speed = 0
	}

	yawRate := float64(steer) * maxSteerRate * math.Min(v.speed/5, 1)
	v.yawDeg += yawRate * dt * 180 / math.Pi

	fwd := geom.Rotation{Yaw: v.yawDeg}.ForwardVector()
	v.location = v.location.Add(fwd.Scale(v.speed * dt))
}

// matches reports whether the vehicle's type name matches a simulator-style
// "category.*" filter pattern (only the "*" suffix wildcard is supported,
// matching the one form the pipeline actually uses).
func (v *Vehicle) matches(pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	prefix := strings.TrimSuffix(pattern, "*")
	return strings.HasPrefix(v.typeName, prefix)
}
