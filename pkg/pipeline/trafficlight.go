package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bolidehi/trafficmanager/pkg/config"
	"github.com/bolidehi/trafficmanager/pkg/messenger"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
	"github.com/bolidehi/trafficmanager/pkg/worldmap"
)

// TrafficLightStage raises a hazard for a vehicle stopped at a red/yellow
// signal, and arbitrates unsignalised junctions with a short-lived ticket
// so exactly one approaching vehicle is admitted at a time.
type TrafficLightStage struct {
	cfg      config.Parameters
	log      logrus.FieldLogger
	worldMap *worldmap.InMemoryMap
	client   simclient.Client

	fromLocalization *messenger.Messenger[LocalizationToTrafficLightFrame]
	toPlanner        *messenger.Messenger[TrafficLightToPlannerFrame]

	recvState, sendState uint16

	// no_signal_negotiation_mutex: serializes ticket issuance so FIFO falls
	// out of mutex acquisition order across goroutines racing to claim a
	// junction.
	negotiationMu        sync.Mutex
	vehicleLastJunction  map[simclient.ActorID]int32
	vehicleLastTicket    map[simclient.ActorID]time.Time
	junctionLastTicket   map[int32]time.Time
	junctionLastHolder   map[int32]simclient.ActorID

	vehiclesByID map[simclient.ActorID]simclient.Vehicle

	tick struct {
		frame    LocalizationToTrafficLightFrame
		outFrame TrafficLightToPlannerFrame
	}
}

// NewTrafficLightStage builds a TrafficLightStage. Pipeline.Start resets
// every simulator traffic-light group to a known phase once, before the
// first tick, per the pipeline-start contract.
func NewTrafficLightStage(
	cfg config.Parameters,
	log logrus.FieldLogger,
	worldMap *worldmap.InMemoryMap,
	client simclient.Client,
	fromLocalization *messenger.Messenger[LocalizationToTrafficLightFrame],
	toPlanner *messenger.Messenger[TrafficLightToPlannerFrame],
) *TrafficLightStage {
	return &TrafficLightStage{
		cfg:                 cfg,
		log:                 log,
		worldMap:            worldMap,
		client:              client,
		fromLocalization:    fromLocalization,
		toPlanner:           toPlanner,
		vehicleLastJunction: make(map[simclient.ActorID]int32),
		vehicleLastTicket:   make(map[simclient.ActorID]time.Time),
		junctionLastTicket:  make(map[int32]time.Time),
		junctionLastHolder:  make(map[int32]simclient.ActorID),
	}
}

func (s *TrafficLightStage) DataReceiver(ctx context.Context) bool {
	frame, ns, ok := s.fromLocalization.Receive(s.recvState)
	if !ok {
		return false
	}
	s.recvState = ns
	s.tick.frame = frame
	s.tick.outFrame = make(TrafficLightToPlannerFrame, len(frame))

	actors, err := s.client.Actors("vehicle.*")
	if err != nil {
		s.log.WithError(err).Warn("pipeline: trafficlight could not list actors")
		actors = nil
	}
	s.vehiclesByID = make(map[simclient.ActorID]simclient.Vehicle, len(actors))
	for _, a := range actors {
		if v, ok := a.(simclient.Vehicle); ok && v.IsAlive() {
			s.vehiclesByID[v.ID()] = v
		}
	}

	return ctx.Err() == nil
}

func (s *TrafficLightStage) NumSlots() int { return len(s.tick.frame) }

func (s *TrafficLightStage) Action(start, end int) {
	for i := start; i < end; i++ {
		s.tick.outFrame[i] = s.evaluate(s.tick.frame[i])
	}
}

func (s *TrafficLightStage) evaluate(in LocalizationToTrafficLight) TrafficLightToPlanner {
	v, ok := s.vehiclesByID[in.ActorID]
	if !ok {
		return TrafficLightToPlanner{ActorID: in.ActorID}
	}

	switch v.TrafficLightState() {
	case simclient.TrafficLightRed, simclient.TrafficLightYellow:
		if v.IsAtTrafficLight() {
			return TrafficLightToPlanner{ActorID: in.ActorID, Hazard: true}
		}
	}

	if !in.HasNear || !in.HasFar {
		return TrafficLightToPlanner{ActorID: in.ActorID}
	}
	near := s.worldMap.Waypoint(in.Near)
	far := s.worldMap.Waypoint(in.Far)
	if near.Junction || !far.Junction {
		return TrafficLightToPlanner{ActorID: in.ActorID}
	}

	hazard := s.negotiate(in.ActorID, far.JunctionID)
	return TrafficLightToPlanner{ActorID: in.ActorID, Hazard: hazard}
}

// negotiate implements the unsignalised-junction ticket protocol: at most
// one ticket per junction is live at a time, expiring after
// cfg.TicketExpiry so a vehicle that never arrives doesn't block the
// junction forever.
func (s *TrafficLightStage) negotiate(ego simclient.ActorID, junction int32) bool {
	s.negotiationMu.Lock()
	defer s.negotiationMu.Unlock()

	if last, ok := s.vehicleLastJunction[ego]; ok && last == junction {
		return false // already admitted this approach
	}

	holder, hasHolder := s.junctionLastHolder[junction]
	issued, hasTicket := s.junctionLastTicket[junction]
	expired := !hasTicket || time.Since(issued) > s.cfg.TicketExpiry

	if !hasHolder || holder == ego || expired {
		s.vehicleLastTicket[ego] = time.Now()
		s.junctionLastTicket[junction] = time.Now()
		s.junctionLastHolder[junction] = ego
		s.vehicleLastJunction[ego] = junction
		return false
	}

	return true
}

func (s *TrafficLightStage) DataSender(ctx context.Context) bool {
	ns, ok := s.toPlanner.Send(s.sendState, s.tick.outFrame)
	if !ok {
		return false
	}
	s.sendState = ns
	return ctx.Err() == nil
}
