package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bolidehi/trafficmanager/pkg/config"
	"github.com/bolidehi/trafficmanager/pkg/messenger"
	"github.com/bolidehi/trafficmanager/pkg/params"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
)

// pid is a standalone PID controller with its own integral/derivative
// state, one instance kept per actor per axis so hazard resets don't
// disturb other vehicles.
type pid struct {
	integral  float64
	prevError float64
}

func (p *pid) step(gains [3]float64, errVal, dt float64) float64 {
	if dt <= 0 {
		dt = 1e-3
	}
	p.integral += errVal * dt
	derivative := (errVal - p.prevError) / dt
	p.prevError = errVal
	return gains[0]*errVal + gains[1]*p.integral + gains[2]*derivative
}

func (p *pid) reset() {
	p.integral = 0
	p.prevError = 0
}

func clamp01(v float64) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return float32(v)
}

func clampSigned(v float64) float32 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return float32(v)
}

// MotionPlannerStage fuses the deviation signal from Localization with the
// hazard bits from Collision and TrafficLight into a throttle/brake/steer
// command per vehicle.
type MotionPlannerStage struct {
	cfg         config.Parameters
	log         logrus.FieldLogger
	client      simclient.Client
	paramsStore *params.Store

	fromLocalization  *messenger.Messenger[LocalizationToPlannerFrame]
	fromCollision     *messenger.Messenger[CollisionToPlannerFrame]
	fromTrafficLight  *messenger.Messenger[TrafficLightToPlannerFrame]
	toControl         *messenger.Messenger[PlannerToControlFrame]

	locState, collisionState, trafficLightState, sendState uint16

	longitudinal map[simclient.ActorID]*pid
	lateral      map[simclient.ActorID]*pid

	lastTick time.Time

	tick struct {
		frame    LocalizationToPlannerFrame
		hazard   map[simclient.ActorID]bool
		vehicles map[simclient.ActorID]simclient.Vehicle
		outFrame PlannerToControlFrame
		dt       float64
	}
}

// NewMotionPlannerStage builds a MotionPlannerStage.
func NewMotionPlannerStage(
	cfg config.Parameters,
	log logrus.FieldLogger,
	client simclient.Client,
	paramsStore *params.Store,
	fromLocalization *messenger.Messenger[LocalizationToPlannerFrame],
	fromCollision *messenger.Messenger[CollisionToPlannerFrame],
	fromTrafficLight *messenger.Messenger[TrafficLightToPlannerFrame],
	toControl *messenger.Messenger[PlannerToControlFrame],
) *MotionPlannerStage {
	return &MotionPlannerStage{
		cfg:              cfg,
		log:              log,
		client:           client,
		paramsStore:      paramsStore,
		fromLocalization: fromLocalization,
		fromCollision:    fromCollision,
		fromTrafficLight: fromTrafficLight,
		toControl:        toControl,
		longitudinal:     make(map[simclient.ActorID]*pid),
		lateral:          make(map[simclient.ActorID]*pid),
	}
}

func (s *MotionPlannerStage) DataReceiver(ctx context.Context) bool {
	locFrame, ns1, ok := s.fromLocalization.Receive(s.locState)
	if !ok {
		return false
	}
	collisionFrame, ns2, ok := s.fromCollision.Receive(s.collisionState)
	if !ok {
		return false
	}
	trafficFrame, ns3, ok := s.fromTrafficLight.Receive(s.trafficLightState)
	if !ok {
		return false
	}
	s.locState, s.collisionState, s.trafficLightState = ns1, ns2, ns3

	hazard := make(map[simclient.ActorID]bool, len(locFrame))
	for _, c := range collisionFrame {
		if c.Hazard {
			hazard[c.ActorID] = true
		}
	}
	for _, t := range trafficFrame {
		if t.Hazard {
			hazard[t.ActorID] = true
		}
	}

	actors, err := s.client.Actors("vehicle.*")
	if err != nil {
		s.log.WithError(err).Warn("pipeline: motion planner could not list actors")
		actors = nil
	}
	vehicles := make(map[simclient.ActorID]simclient.Vehicle, len(actors))
	for _, a := range actors {
		if v, ok := a.(simclient.Vehicle); ok && v.IsAlive() {
			vehicles[v.ID()] = v
		}
	}

	s.tick.frame = locFrame
	s.tick.hazard = hazard
	s.tick.vehicles = vehicles
	s.tick.outFrame = make(PlannerToControlFrame, len(locFrame))

	now := time.Now()
	if s.lastTick.IsZero() {
		s.tick.dt = 0
	} else {
		s.tick.dt = now.Sub(s.lastTick).Seconds()
	}
	s.lastTick = now

	return ctx.Err() == nil
}

func (s *MotionPlannerStage) NumSlots() int { return len(s.tick.frame) }

func (s *MotionPlannerStage) Action(start, end int) {
	for i := start; i < end; i++ {
		s.tick.outFrame[i] = s.control(s.tick.frame[i])
	}
}

func (s *MotionPlannerStage) control(in LocalizationToPlanner) PlannerToControl {
	id := in.ActorID
	longPID := s.longitudinal[id]
	if longPID == nil {
		longPID = &pid{}
		s.longitudinal[id] = longPID
	}
	latPID := s.lateral[id]
	if latPID == nil {
		latPID = &pid{}
		s.lateral[id] = latPID
	}

	if s.tick.hazard[id] {
		longPID.reset()
		latPID.reset()
		return PlannerToControl{ActorID: id, Throttle: 0, Brake: 1, Steer: 0}
	}

	speed, speedLimit := s.vehicleKinematics(id)

	gains := s.cfg.LongitudinalPID
	if speedLimit > s.cfg.HighwaySpeed {
		gains = s.cfg.LongitudinalHighwayPID
	}

	globalPct := s.paramsStore.GlobalPercentageSpeedDifference()
	actorPct, _ := s.paramsStore.PercentageSpeedDifference(id)
	target := speedLimit * (1 - actorPct/100) * (1 - globalPct/100)

	longErr := target - speed
	longOut := longPID.step(gains, longErr, s.tick.dt)

	var throttle, brake float32
	if longOut >= 0 {
		throttle = clamp01(longOut)
	} else {
		brake = clamp01(-longOut)
	}

	steerOut := latPID.step(s.cfg.LateralPID, in.Deviation, s.tick.dt)
	steer := clampSigned(steerOut)

	return PlannerToControl{ActorID: id, Throttle: throttle, Brake: brake, Steer: steer}
}

func (s *MotionPlannerStage) vehicleKinematics(id simclient.ActorID) (speed, speedLimit float64) {
	v, ok := s.tick.vehicles[id]
	if !ok {
		return 0, 0
	}
	return v.Velocity().Length(), v.SpeedLimit()
}

func (s *MotionPlannerStage) DataSender(ctx context.Context) bool {
	ns, ok := s.toControl.Send(s.sendState, s.tick.outFrame)
	if !ok {
		return false
	}
	s.sendState = ns
	return ctx.Err() == nil
}
