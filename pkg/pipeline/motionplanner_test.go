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
)

func newMotionPlannerStageForControl(t *testing.T, store *params.Store) *MotionPlannerStage {
	t.Helper()
	return &MotionPlannerStage{
		cfg:          config.Default(),
		paramsStore:  store,
		longitudinal: make(map[simclient.ActorID]*pid),
		lateral:      make(map[simclient.ActorID]*pid),
	}
}

func TestControlAcceleratesBelowTargetOnStraightRoad(t *testing.T) {
	s := newMotionPlannerStageForControl(t, params.New())
	s.tick.hazard = map[simclient.ActorID]bool{}
	s.tick.vehicles = map[simclient.ActorID]simclient.Vehicle{
		1: fake.NewVehicle(1, geom.Location{}, 0, 5, 10),
	}
	s.tick.dt = 0.1

	out := s.control(LocalizationToPlanner{ActorID: 1, Deviation: 0})

	assert.Greater(t, out.Throttle, float32(0))
	assert.Equal(t, float32(0), out.Brake)
	assert.Less(t, out.Steer, float32(0.05))
	assert.Greater(t, out.Steer, float32(-0.05))
}

func TestControlAppliesHazardOverrideAndResetsIntegrators(t *testing.T) {
	s := newMotionPlannerStageForControl(t, params.New())
	s.tick.vehicles = map[simclient.ActorID]simclient.Vehicle{
		1: fake.NewVehicle(1, geom.Location{}, 0, 5, 10),
	}
	s.tick.dt = 0.1

	// First prime the integrator with a non-hazard tick so there is state to
	// reset.
	s.tick.hazard = map[simclient.ActorID]bool{}
	s.control(LocalizationToPlanner{ActorID: 1, Deviation: 0.2})
	require.NotZero(t, s.longitudinal[1].integral+s.lateral[1].integral)

	s.tick.hazard = map[simclient.ActorID]bool{1: true}
	out := s.control(LocalizationToPlanner{ActorID: 1, Deviation: 0.2})

	assert.Equal(t, float32(0), out.Throttle)
	assert.Equal(t, float32(1), out.Brake)
	assert.Equal(t, float32(0), out.Steer)
	assert.Zero(t, s.longitudinal[1].integral)
	assert.Zero(t, s.lateral[1].integral)
}

func TestControlHonoursPerActorSpeedDifferenceOverride(t *testing.T) {
	store := params.New()
	store.SetPercentageSpeedDifference(1, 50)
	s := newMotionPlannerStageForControl(t, store)
	s.tick.hazard = map[simclient.ActorID]bool{}
	s.tick.vehicles = map[simclient.ActorID]simclient.Vehicle{
		// Already at the reduced target (5 m/s = 50% of a 10 m/s limit):
		// the longitudinal error should be ~0 rather than driving hard to
		// reach the un-reduced speed limit.
		1: fake.NewVehicle(1, geom.Location{}, 0, 5, 10),
	}
	s.tick.dt = 0.1

	out := s.control(LocalizationToPlanner{ActorID: 1, Deviation: 0})

	assert.Less(t, out.Throttle, float32(0.2))
}
