package pipeline

import (
	"context"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/bolidehi/trafficmanager/pkg/config"
	"github.com/bolidehi/trafficmanager/pkg/geom"
	"github.com/bolidehi/trafficmanager/pkg/messenger"
	"github.com/bolidehi/trafficmanager/pkg/params"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
	"github.com/bolidehi/trafficmanager/pkg/vicinity"
	"github.com/bolidehi/trafficmanager/pkg/worldmap"
)

// CollisionStage raises a hazard for any managed vehicle on a yielding
// course with another actor — managed or not — within the search radius.
type CollisionStage struct {
	cfg          config.Parameters
	log          logrus.FieldLogger
	worldMap     *worldmap.InMemoryMap
	vicinityGrid *vicinity.Grid
	paramsStore  *params.Store
	client       simclient.Client
	registry     *Registry

	fromLocalization *messenger.Messenger[LocalizationToCollisionFrame]
	toPlanner        *messenger.Messenger[CollisionToPlannerFrame]

	recvState, sendState uint16

	lastSweep    time.Time
	allActors    map[simclient.ActorID]simclient.Actor
	unregistered map[simclient.ActorID]struct{}

	tick struct {
		frame    LocalizationToCollisionFrame
		outFrame CollisionToPlannerFrame
	}
}

// NewCollisionStage builds a CollisionStage.
func NewCollisionStage(
	cfg config.Parameters,
	log logrus.FieldLogger,
	worldMap *worldmap.InMemoryMap,
	vicinityGrid *vicinity.Grid,
	paramsStore *params.Store,
	client simclient.Client,
	registry *Registry,
	fromLocalization *messenger.Messenger[LocalizationToCollisionFrame],
	toPlanner *messenger.Messenger[CollisionToPlannerFrame],
) *CollisionStage {
	return &CollisionStage{
		cfg:              cfg,
		log:              log,
		worldMap:         worldMap,
		vicinityGrid:     vicinityGrid,
		paramsStore:      paramsStore,
		client:           client,
		registry:         registry,
		fromLocalization: fromLocalization,
		toPlanner:        toPlanner,
		unregistered:     make(map[simclient.ActorID]struct{}),
	}
}

func (s *CollisionStage) DataReceiver(ctx context.Context) bool {
	frame, ns, ok := s.fromLocalization.Receive(s.recvState)
	if !ok {
		return false
	}
	s.recvState = ns
	s.tick.frame = frame
	s.tick.outFrame = make(CollisionToPlannerFrame, len(frame))

	actors, err := s.client.Actors("*")
	if err != nil {
		s.log.WithError(err).Warn("pipeline: collision could not list actors")
		actors = nil
	}
	s.allActors = make(map[simclient.ActorID]simclient.Actor, len(actors))
	for _, a := range actors {
		if a.IsAlive() {
			s.allActors[a.ID()] = a
		}
	}

	if time.Since(s.lastSweep) >= s.cfg.UnregisteredSweepPeriod {
		s.sweepUnregistered()
		s.lastSweep = time.Now()
	}

	return ctx.Err() == nil
}

// sweepUnregistered admits world actors the manager doesn't drive into the
// vicinity grid (so managed vehicles still yield to them), and evicts ones
// that died or were registered since the last sweep.
func (s *CollisionStage) sweepUnregistered() {
	seen := make(map[simclient.ActorID]struct{}, len(s.allActors))
	for id, actor := range s.allActors {
		if s.registry.Contains(id) {
			continue
		}
		seen[id] = struct{}{}
		s.unregistered[id] = struct{}{}
		s.vicinityGrid.UpdateGrid(id, actor.Location())
	}
	for id := range s.unregistered {
		if _, stillUnregistered := seen[id]; !stillUnregistered {
			s.vicinityGrid.EraseActor(id)
			delete(s.unregistered, id)
		}
	}
}

func (s *CollisionStage) NumSlots() int { return len(s.tick.frame) }

func (s *CollisionStage) Action(start, end int) {
	for i := start; i < end; i++ {
		s.tick.outFrame[i] = s.evaluate(s.tick.frame[i])
	}
}

func (s *CollisionStage) evaluate(in LocalizationToCollision) CollisionToPlanner {
	ego, ok := s.allActors[in.ActorID]
	if !ok {
		return CollisionToPlanner{ActorID: in.ActorID}
	}

	egoPos := ego.Location()
	s.vicinityGrid.UpdateGrid(in.ActorID, egoPos)
	candidates := s.vicinityGrid.GetActors(in.ActorID, egoPos)

	egoHeading := ego.Velocity().Normalize()
	if egoHeading.LengthSquared() == 0 {
		egoHeading = ego.Transform().ForwardVector()
	}

	for _, candidateID := range candidates {
		other, ok := s.allActors[candidateID]
		if !ok {
			continue
		}
		if !s.paramsStore.CollisionDetectionEnabled(in.ActorID, candidateID) {
			continue
		}

		otherPos := other.Location()
		if geom.Distance(egoPos, otherPos) > s.cfg.CollisionSearchRadius {
			continue
		}
		if absf(egoPos.Z-otherPos.Z) >= s.cfg.VerticalOverlapLimit {
			continue
		}

		toOther := otherPos.Sub(egoPos).Normalize()
		toEgo := toOther.Scale(-1)
		otherHeading := other.Velocity().Normalize()
		if otherHeading.LengthSquared() == 0 {
			otherHeading = other.Transform().ForwardVector()
		}
		dotEgo := geom.Dot(egoHeading, toOther)
		dotOther := geom.Dot(otherHeading, toEgo)
		if dotEgo <= dotOther {
			// ego is the one yielded to, not the one who must yield.
			continue
		}

		egoBoundary := geodesicBoundary(s.cfg, s.worldMap, ego, in.Buffer)
		otherRing := s.boundaryFor(candidateID, other)

		if geom.PolygonOverlapArea(egoBoundary, otherRing) > s.cfg.ZeroAreaThreshold {
			return CollisionToPlanner{ActorID: in.ActorID, Hazard: true}
		}
	}
	return CollisionToPlanner{ActorID: in.ActorID, Hazard: false}
}

// boundaryFor returns the other actor's geodesic boundary if it is itself a
// managed vehicle with a known buffer, else its bounding box.
func (s *CollisionStage) boundaryFor(id simclient.ActorID, actor simclient.Actor) orb.Ring {
	for _, c := range s.tick.frame {
		if c.ActorID == id {
			return geodesicBoundary(s.cfg, s.worldMap, actor, c.Buffer)
		}
	}
	return boundingBoxBoundary(actor)
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (s *CollisionStage) DataSender(ctx context.Context) bool {
	ns, ok := s.toPlanner.Send(s.sendState, s.tick.outFrame)
	if !ok {
		return false
	}
	s.sendState = ns
	return ctx.Err() == nil
}
