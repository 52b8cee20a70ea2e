package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolidehi/trafficmanager/pkg/config"
	"github.com/bolidehi/trafficmanager/pkg/geom"
	"github.com/bolidehi/trafficmanager/pkg/params"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
	"github.com/bolidehi/trafficmanager/pkg/simclient/fake"
	"github.com/bolidehi/trafficmanager/pkg/vicinity"
)

func newCollisionStageForEvaluate(t *testing.T, actors map[simclient.ActorID]simclient.Actor) *CollisionStage {
	t.Helper()
	cfg := config.Default()
	s := &CollisionStage{
		cfg:          cfg,
		vicinityGrid: vicinity.New(cfg.VicinityCellSize),
		paramsStore:  params.New(),
		registry:     NewRegistry(),
		allActors:    actors,
		unregistered: make(map[simclient.ActorID]struct{}),
	}
	s.tick.frame = nil
	// Admit the actors to the vicinity grid the way DataReceiver's sweep
	// does, so evaluate can find them as candidates.
	s.sweepUnregistered()
	return s
}

func TestEvaluateHazardWhenEgoIsTheOneForcedToYield(t *testing.T) {
	// Ego drives straight at a stationary actor 3m dead ahead: ego's dot
	// product towards the other exceeds the other's dot product towards
	// ego (the other faces away from it), so ego — and only ego — must
	// consider yielding.
	ego := fake.NewVehicle(1, geom.Location{X: 0}, 0, 5, 10)
	other := fake.NewVehicle(2, geom.Location{X: 3}, 0, 0, 10)

	actors := map[simclient.ActorID]simclient.Actor{1: ego, 2: other}
	s := newCollisionStageForEvaluate(t, actors)

	out := s.evaluate(LocalizationToCollision{ActorID: 1, Buffer: nil})
	assert.True(t, out.Hazard)
}

func TestEvaluateNoHazardWhenOtherIsTheOneForcedToYield(t *testing.T) {
	// From the other actor's perspective, it is the one approaching ego
	// (which is stationary and faces away), so it should be the one
	// flagged, not ego.
	ego := fake.NewVehicle(1, geom.Location{X: 0}, 0, 5, 10)
	other := fake.NewVehicle(2, geom.Location{X: 3}, 0, 0, 10)
	actors := map[simclient.ActorID]simclient.Actor{1: ego, 2: other}
	s := newCollisionStageForEvaluate(t, actors)

	out := s.evaluate(LocalizationToCollision{ActorID: 2, Buffer: nil})
	assert.False(t, out.Hazard)
}

func TestEvaluateIgnoresPairWithCollisionDetectionDisabled(t *testing.T) {
	ego := fake.NewVehicle(1, geom.Location{X: 0}, 0, 5, 10)
	other := fake.NewVehicle(2, geom.Location{X: 3}, 0, 0, 10)
	actors := map[simclient.ActorID]simclient.Actor{1: ego, 2: other}
	s := newCollisionStageForEvaluate(t, actors)
	s.paramsStore.SetCollisionDetection(1, 2, false)

	out := s.evaluate(LocalizationToCollision{ActorID: 1, Buffer: nil})
	assert.False(t, out.Hazard)
}

func TestEvaluateIgnoresActorsBeyondSearchRadius(t *testing.T) {
	ego := fake.NewVehicle(1, geom.Location{X: 0}, 0, 5, 10)
	far := fake.NewVehicle(2, geom.Location{X: 1000}, 0, 0, 10)
	actors := map[simclient.ActorID]simclient.Actor{1: ego, 2: far}
	s := newCollisionStageForEvaluate(t, actors)

	out := s.evaluate(LocalizationToCollision{ActorID: 1, Buffer: nil})
	assert.False(t, out.Hazard)
}

func TestEvaluateStaleActorReturnsNoHazard(t *testing.T) {
	actors := map[simclient.ActorID]simclient.Actor{}
	s := newCollisionStageForEvaluate(t, actors)

	out := s.evaluate(LocalizationToCollision{ActorID: 99, Buffer: nil})
	require.Equal(t, simclient.ActorID(99), out.ActorID)
	assert.False(t, out.Hazard)
}
