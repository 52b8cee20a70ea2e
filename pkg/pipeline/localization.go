package pipeline

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bolidehi/trafficmanager/pkg/config"
	"github.com/bolidehi/trafficmanager/pkg/geom"
	"github.com/bolidehi/trafficmanager/pkg/messenger"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
	"github.com/bolidehi/trafficmanager/pkg/worldmap"
)

// LocalizationStage is the pipeline's sole producer: every tick it advances
// each managed vehicle's waypoint buffer, derives a lateral deviation
// signal, and fans the result out to the three downstream edges. It owns
// every vehicle's buffer outright; downstream stages only ever see copies.
type LocalizationStage struct {
	cfg      config.Parameters
	log      logrus.FieldLogger
	worldMap *worldmap.InMemoryMap
	client   simclient.Client
	registry *Registry

	toPlanner      *messenger.Messenger[LocalizationToPlannerFrame]
	toCollision    *messenger.Messenger[LocalizationToCollisionFrame]
	toTrafficLight *messenger.Messenger[LocalizationToTrafficLightFrame]

	plannerState, collisionState, trafficLightState uint16

	buffers map[simclient.ActorID][]worldmap.Handle

	lastTick time.Time

	tick struct {
		ids               []simclient.ActorID
		vehicles          map[simclient.ActorID]simclient.Vehicle
		plannerFrame      LocalizationToPlannerFrame
		collisionFrame    LocalizationToCollisionFrame
		trafficLightFrame LocalizationToTrafficLightFrame
	}
}

// NewLocalizationStage builds a LocalizationStage writing to the three
// given downstream edges.
func NewLocalizationStage(
	cfg config.Parameters,
	log logrus.FieldLogger,
	worldMap *worldmap.InMemoryMap,
	client simclient.Client,
	registry *Registry,
	toPlanner *messenger.Messenger[LocalizationToPlannerFrame],
	toCollision *messenger.Messenger[LocalizationToCollisionFrame],
	toTrafficLight *messenger.Messenger[LocalizationToTrafficLightFrame],
) *LocalizationStage {
	return &LocalizationStage{
		cfg:            cfg,
		log:            log,
		worldMap:       worldMap,
		client:         client,
		registry:       registry,
		toPlanner:      toPlanner,
		toCollision:    toCollision,
		toTrafficLight: toTrafficLight,
		buffers:        make(map[simclient.ActorID][]worldmap.Handle),
	}
}

// DataReceiver paces itself at cfg.LocalizationTickPeriod (there is no
// upstream Messenger feeding the first stage) and snapshots the registry
// plus the live vehicle set into s.tick for Action to consume.
func (s *LocalizationStage) DataReceiver(ctx context.Context) bool {
	if !s.lastTick.IsZero() {
		elapsed := time.Since(s.lastTick)
		if wait := s.cfg.LocalizationTickPeriod - elapsed; wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return false
			}
		}
	}
	s.lastTick = time.Now()

	if ctx.Err() != nil {
		return false
	}

	actors, err := s.client.Actors("vehicle.*")
	if err != nil {
		s.log.WithError(err).Warn("pipeline: localization could not list actors")
		actors = nil
	}
	byID := make(map[simclient.ActorID]simclient.Vehicle, len(actors))
	for _, a := range actors {
		if v, ok := a.(simclient.Vehicle); ok && v.IsAlive() {
			byID[v.ID()] = v
		}
	}

	ids := s.registry.Snapshot()
	live := ids[:0:0]
	for _, id := range ids {
		if _, ok := byID[id]; ok {
			live = append(live, id)
		}
	}

	s.tick.ids = live
	s.tick.vehicles = byID
	s.tick.plannerFrame = make(LocalizationToPlannerFrame, len(live))
	s.tick.collisionFrame = make(LocalizationToCollisionFrame, len(live))
	s.tick.trafficLightFrame = make(LocalizationToTrafficLightFrame, len(live))
	return true
}

func (s *LocalizationStage) NumSlots() int { return len(s.tick.ids) }

func (s *LocalizationStage) Action(start, end int) {
	for i := start; i < end; i++ {
		id := s.tick.ids[i]
		v := s.tick.vehicles[id]
		s.stepVehicle(i, id, v)
	}
}

func (s *LocalizationStage) stepVehicle(slot int, id simclient.ActorID, v simclient.Vehicle) {
	buf := s.buffers[id]
	pos := v.Location()
	heading := v.Velocity().Normalize()
	if heading.LengthSquared() == 0 {
		heading = v.Transform().ForwardVector()
	}
	speed := v.Velocity().Length()

	buf = s.advanceBuffer(buf, pos, heading)
	buf = s.extendBuffer(buf, id, speed)
	s.buffers[id] = buf

	deviation := s.deviation(buf, pos, heading, speed)

	s.tick.plannerFrame[slot] = LocalizationToPlanner{ActorID: id, Deviation: deviation}
	s.tick.collisionFrame[slot] = LocalizationToCollision{ActorID: id, Buffer: append([]worldmap.Handle(nil), buf...)}

	near, hasNear := bufferAt(buf, s.cfg.JunctionCheckNear)
	far, hasFar := bufferAt(buf, s.cfg.JunctionCheckFar)
	s.tick.trafficLightFrame[slot] = LocalizationToTrafficLight{
		ActorID: id, Near: near, Far: far, HasNear: hasNear, HasFar: hasFar,
	}
}

func bufferAt(buf []worldmap.Handle, i int) (worldmap.Handle, bool) {
	if i < 0 || i >= len(buf) {
		return worldmap.Invalid, false
	}
	return buf[i], true
}

// advanceBuffer pops every front waypoint the vehicle has already passed
// (heading·(front-pos) <= 0), reseeding from scratch if that empties it.
func (s *LocalizationStage) advanceBuffer(buf []worldmap.Handle, pos, heading geom.Vector3D) []worldmap.Handle {
	for len(buf) > 0 {
		front := s.worldMap.Waypoint(buf[0])
		toFront := front.Location.Sub(pos)
		if geom.Dot(heading, toFront) > 0 {
			break
		}
		buf = buf[1:]
	}
	if len(buf) == 0 {
		var h worldmap.Handle
		var ok bool
		h, ok = s.worldMap.GetWaypointInVicinity(pos)
		if !ok {
			h, ok = s.worldMap.GetWaypoint(pos)
		}
		if ok {
			buf = []worldmap.Handle{h}
		}
	}
	return buf
}

// extendBuffer appends successors until the buffer's arc length covers
// max(v*3s, 25m), picking a deterministic-per-vehicle, diverse-across-fleet
// branch at forks.
func (s *LocalizationStage) extendBuffer(buf []worldmap.Handle, id simclient.ActorID, speed float64) []worldmap.Handle {
	target := math.Max(speed*s.cfg.WaypointTimeHorizon.Seconds(), s.cfg.MinimumHorizonLength)
	for s.arcLength(buf) < target {
		if len(buf) == 0 {
			return buf
		}
		back := s.worldMap.Waypoint(buf[len(buf)-1])
		if len(back.Successors) == 0 {
			break
		}
		prev := buf[len(buf)-1]
		k := int((uint64(id)*31 + uint64(prev) + 1) % uint64(len(back.Successors)))
		buf = append(buf, back.Successors[k])
	}
	return buf
}

func (s *LocalizationStage) arcLength(buf []worldmap.Handle) float64 {
	if len(buf) < 2 {
		return 0
	}
	total := 0.0
	prev := s.worldMap.Waypoint(buf[0]).Location
	for _, h := range buf[1:] {
		loc := s.worldMap.Waypoint(h).Location
		total += geom.Distance(prev, loc)
		prev = loc
	}
	return total
}

// deviation picks the target waypoint at ceil(max(v*0.5s, 2m)) metres
// ahead and returns the signed lateral error between heading and the
// direction to that target.
func (s *LocalizationStage) deviation(buf []worldmap.Handle, pos, heading geom.Vector3D, speed float64) float64 {
	if len(buf) == 0 {
		return 0
	}
	targetDist := math.Max(speed*s.cfg.TargetWaypointTimeHorizon.Seconds(), s.cfg.TargetWaypointHorizon)
	idx := int(math.Ceil(targetDist / math.Max(s.cfg.SamplingResolution, 1e-6)))
	if idx >= len(buf) {
		idx = len(buf) - 1
	}
	target := s.worldMap.Waypoint(buf[idx]).Location
	toTarget := target.Sub(pos).Normalize()
	if heading.LengthSquared() == 0 || toTarget.LengthSquared() == 0 {
		return 0
	}
	dot := geom.Dot(heading, toTarget)
	cross := geom.CrossZ(heading, toTarget)
	sign := 1.0
	if cross < 0 {
		sign = -1.0
	}
	return (1 - dot) * sign
}

// DataSender publishes the three frames built by Action to their
// respective edges. The Messenger's unconditional overwrite-on-Send already
// gives latest-wins semantics, so no separate ping-pong bookkeeping is
// needed here — see DESIGN.md.
func (s *LocalizationStage) DataSender(ctx context.Context) bool {
	if ns, ok := s.toPlanner.Send(s.plannerState, s.tick.plannerFrame); ok {
		s.plannerState = ns
	} else {
		return false
	}
	if ns, ok := s.toCollision.Send(s.collisionState, s.tick.collisionFrame); ok {
		s.collisionState = ns
	} else {
		return false
	}
	if ns, ok := s.toTrafficLight.Send(s.trafficLightState, s.tick.trafficLightFrame); ok {
		s.trafficLightState = ns
	} else {
		return false
	}
	return ctx.Err() == nil
}

// ForgetVehicle drops a vehicle's owned waypoint buffer, called when it is
// unregistered.
func (s *LocalizationStage) ForgetVehicle(id simclient.ActorID) {
	delete(s.buffers, id)
}
