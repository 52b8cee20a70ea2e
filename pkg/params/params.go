// Package params holds the per-actor and global behavioural knobs that the
// public TrafficManager API mutates and the pipeline stages read every
// tick: speed-below-limit percentages, leading-distance overrides,
// lane-change commands, and the collision-ignore relation between actors.
package params

import (
	"sync"
	"sync/atomic"

	"github.com/bolidehi/trafficmanager/pkg/simclient"
)

// LaneChangeDirection is a forced lane-change command issued via
// Store.SetForceLaneChange.
type LaneChangeDirection int

const (
	LaneChangeNone LaneChangeDirection = iota
	LaneChangeLeft
	LaneChangeRight
)

// snapshot is the immutable value behind Store.cur. Every write operation
// clones it, mutates the clone, and swaps the pointer atomically, so reads
// never block and never observe a partially-updated map.
type snapshot struct {
	globalSpeedDiffPercent float64
	speedDiffPercent       map[simclient.ActorID]float64
	leadingDistance        map[simclient.ActorID]float64
	forceLaneChange        map[simclient.ActorID]LaneChangeDirection
	autoLaneChange         map[simclient.ActorID]bool
	collisionIgnored       map[simclient.ActorID]map[simclient.ActorID]struct{}
}

func emptySnapshot() *snapshot {
	return &snapshot{
		speedDiffPercent: make(map[simclient.ActorID]float64),
		leadingDistance:  make(map[simclient.ActorID]float64),
		forceLaneChange:  make(map[simclient.ActorID]LaneChangeDirection),
		autoLaneChange:   make(map[simclient.ActorID]bool),
		collisionIgnored: make(map[simclient.ActorID]map[simclient.ActorID]struct{}),
	}
}

// clone returns a deep copy: every map, including each inner
// collision-ignore set, gets a new backing map.
func (s *snapshot) clone() *snapshot {
	n := &snapshot{
		globalSpeedDiffPercent: s.globalSpeedDiffPercent,
		speedDiffPercent:       make(map[simclient.ActorID]float64, len(s.speedDiffPercent)),
		leadingDistance:        make(map[simclient.ActorID]float64, len(s.leadingDistance)),
		forceLaneChange:        make(map[simclient.ActorID]LaneChangeDirection, len(s.forceLaneChange)),
		autoLaneChange:         make(map[simclient.ActorID]bool, len(s.autoLaneChange)),
		collisionIgnored:       make(map[simclient.ActorID]map[simclient.ActorID]struct{}, len(s.collisionIgnored)),
	}
	for k, v := range s.speedDiffPercent {
		n.speedDiffPercent[k] = v
	}
	for k, v := range s.leadingDistance {
		n.leadingDistance[k] = v
	}
	for k, v := range s.forceLaneChange {
		n.forceLaneChange[k] = v
	}
	for k, v := range s.autoLaneChange {
		n.autoLaneChange[k] = v
	}
	for k, set := range s.collisionIgnored {
		cp := make(map[simclient.ActorID]struct{}, len(set))
		for id := range set {
			cp[id] = struct{}{}
		}
		n.collisionIgnored[k] = cp
	}
	return n
}

// Store is the concurrent behavioural-parameters table. All read methods
// are lock-free (they load one atomic pointer and consult the snapshot they
// got); all write methods serialise on mu and install a new snapshot.
type Store struct {
	mu  sync.Mutex
	cur atomic.Pointer[snapshot]
}

// New returns an empty Store with no per-actor overrides and a 0% global
// speed-difference default.
func New() *Store {
	s := &Store{}
	s.cur.Store(emptySnapshot())
	return s
}

// SetGlobalPercentageSpeedDifference sets the fleet-wide speed reduction,
// e.g. 30 means every vehicle targets 30% below its speed limit absent a
// per-actor override.
func (s *Store) SetGlobalPercentageSpeedDifference(percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.cur.Load().clone()
	n.globalSpeedDiffPercent = percent
	s.cur.Store(n)
}

// GlobalPercentageSpeedDifference reads the fleet-wide default, lock-free.
func (s *Store) GlobalPercentageSpeedDifference() float64 {
	return s.cur.Load().globalSpeedDiffPercent
}

// SetPercentageSpeedDifference overrides id's speed-below-limit percentage.
func (s *Store) SetPercentageSpeedDifference(id simclient.ActorID, percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.cur.Load().clone()
	n.speedDiffPercent[id] = percent
	s.cur.Store(n)
}

// PercentageSpeedDifference returns id's override and whether one is set.
func (s *Store) PercentageSpeedDifference(id simclient.ActorID) (float64, bool) {
	v, ok := s.cur.Load().speedDiffPercent[id]
	return v, ok
}

// SetDistanceToLeadingVehicle overrides the minimum following distance, in
// metres, MotionPlannerStage should target for id.
func (s *Store) SetDistanceToLeadingVehicle(id simclient.ActorID, metres float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.cur.Load().clone()
	n.leadingDistance[id] = metres
	s.cur.Store(n)
}

// DistanceToLeadingVehicle returns id's override and whether one is set.
func (s *Store) DistanceToLeadingVehicle(id simclient.ActorID) (float64, bool) {
	v, ok := s.cur.Load().leadingDistance[id]
	return v, ok
}

// SetForceLaneChange commands a one-shot lane change for id. LaneChangeNone
// clears any pending command.
func (s *Store) SetForceLaneChange(id simclient.ActorID, dir LaneChangeDirection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.cur.Load().clone()
	if dir == LaneChangeNone {
		delete(n.forceLaneChange, id)
	} else {
		n.forceLaneChange[id] = dir
	}
	s.cur.Store(n)
}

// ForceLaneChange returns id's pending forced lane-change command, if any.
func (s *Store) ForceLaneChange(id simclient.ActorID) LaneChangeDirection {
	return s.cur.Load().forceLaneChange[id]
}

// SetAutoLaneChange enables or disables automatic, opportunistic lane
// changes for id.
func (s *Store) SetAutoLaneChange(id simclient.ActorID, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.cur.Load().clone()
	n.autoLaneChange[id] = enabled
	s.cur.Store(n)
}

// AutoLaneChange reports whether id has automatic lane changes enabled.
// Defaults to false for actors never registered.
func (s *Store) AutoLaneChange(id simclient.ActorID) bool {
	return s.cur.Load().autoLaneChange[id]
}

// SetCollisionDetection enables or disables hazard detection between a and
// b. The relation is symmetric: ignoring collisions between a and b means
// neither yields to the other.
func (s *Store) SetCollisionDetection(a, b simclient.ActorID, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.cur.Load().clone()
	if enabled {
		if set, ok := n.collisionIgnored[a]; ok {
			delete(set, b)
		}
		if set, ok := n.collisionIgnored[b]; ok {
			delete(set, a)
		}
	} else {
		addIgnored(n.collisionIgnored, a, b)
		addIgnored(n.collisionIgnored, b, a)
	}
	s.cur.Store(n)
}

func addIgnored(m map[simclient.ActorID]map[simclient.ActorID]struct{}, from, to simclient.ActorID) {
	set, ok := m[from]
	if !ok {
		set = make(map[simclient.ActorID]struct{})
		m[from] = set
	}
	set[to] = struct{}{}
}

// CollisionDetectionEnabled reports whether CollisionStage should consider
// hazards between a and b. True unless explicitly disabled.
func (s *Store) CollisionDetectionEnabled(a, b simclient.ActorID) bool {
	set, ok := s.cur.Load().collisionIgnored[a]
	if !ok {
		return true
	}
	_, ignored := set[b]
	return !ignored
}

// ForgetActor removes every per-actor override recorded for id, called from
// TrafficManager.UnregisterVehicles.
func (s *Store) ForgetActor(id simclient.ActorID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.cur.Load().clone()
	delete(n.speedDiffPercent, id)
	delete(n.leadingDistance, id)
	delete(n.forceLaneChange, id)
	delete(n.autoLaneChange, id)
	delete(n.collisionIgnored, id)
	for _, set := range n.collisionIgnored {
		delete(set, id)
	}
	s.cur.Store(n)
}
