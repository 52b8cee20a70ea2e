// Package trafficmanager is the public façade: one InMemoryMap, one
// params.Store, one vicinity.Grid and the pipeline.Pipeline wired
// together behind the registration and behavioural-tuning API a caller
// actually drives.
package trafficmanager

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bolidehi/trafficmanager/pkg/config"
	"github.com/bolidehi/trafficmanager/pkg/params"
	"github.com/bolidehi/trafficmanager/pkg/pipeline"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
	"github.com/bolidehi/trafficmanager/pkg/vicinity"
	"github.com/bolidehi/trafficmanager/pkg/worldmap"
)

// LaneChangeDirection re-exports params.LaneChangeDirection so callers
// never need to import pkg/params directly.
type LaneChangeDirection = params.LaneChangeDirection

const (
	LaneChangeNone  = params.LaneChangeNone
	LaneChangeLeft  = params.LaneChangeLeft
	LaneChangeRight = params.LaneChangeRight
)

// TrafficManager is the entry point: build an InMemoryMap from the road
// network via New, then RegisterVehicles and Start to begin driving them.
type TrafficManager struct {
	cfg config.Parameters
	log logrus.FieldLogger

	worldMap     *worldmap.InMemoryMap
	vicinityGrid *vicinity.Grid
	params       *params.Store
	pipeline     *pipeline.Pipeline

	mu      sync.Mutex
	running bool
}

// New builds a TrafficManager over the given sparse road topology and
// simulator client. It is ready to RegisterVehicles immediately; call
// Start to begin running the pipeline.
func New(cfg config.Parameters, log logrus.FieldLogger, client simclient.Client, segments []simclient.RoadSegment) (*TrafficManager, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	wm := worldmap.New(cfg, log)
	if err := wm.SetUp(segments); err != nil {
		return nil, fmt.Errorf("trafficmanager: building world map: %w", err)
	}

	grid := vicinity.New(cfg.VicinityCellSize)
	store := params.New()
	pipe := pipeline.New(cfg, log, wm, grid, store, client)

	return &TrafficManager{
		cfg:          cfg,
		log:          log,
		worldMap:     wm,
		vicinityGrid: grid,
		params:       store,
		pipeline:     pipe,
	}, nil
}

// RegisterVehicles adds ids to the set of vehicles the manager drives.
// Safe to call before or after Start, and safe to call with ids already
// registered.
func (tm *TrafficManager) RegisterVehicles(ids []simclient.ActorID) error {
	tm.pipeline.Registry.Register(ids...)
	return nil
}

// UnregisterVehicles removes ids from the managed set and drops every
// per-actor state the manager held for them.
func (tm *TrafficManager) UnregisterVehicles(ids []simclient.ActorID) {
	tm.pipeline.Registry.Unregister(ids...)
	for _, id := range ids {
		tm.pipeline.ForgetVehicle(id)
		tm.params.ForgetActor(id)
		tm.vicinityGrid.EraseActor(id)
	}
}

// SetGlobalPercentageSpeedDifference sets the fleet-wide speed reduction
// below each vehicle's speed limit, absent a per-actor override.
func (tm *TrafficManager) SetGlobalPercentageSpeedDifference(percent float64) {
	tm.params.SetGlobalPercentageSpeedDifference(percent)
}

// SetPercentageSpeedDifference overrides id's speed-below-limit percentage.
func (tm *TrafficManager) SetPercentageSpeedDifference(id simclient.ActorID, percent float64) {
	tm.params.SetPercentageSpeedDifference(id, percent)
}

// SetCollisionDetection enables or disables hazard detection between a
// and b.
func (tm *TrafficManager) SetCollisionDetection(a, b simclient.ActorID, enable bool) {
	tm.params.SetCollisionDetection(a, b, enable)
}

// SetForceLaneChange commands a one-shot lane change for id.
func (tm *TrafficManager) SetForceLaneChange(id simclient.ActorID, dir LaneChangeDirection) {
	tm.params.SetForceLaneChange(id, dir)
}

// SetAutoLaneChange enables or disables automatic, opportunistic lane
// changes for id.
func (tm *TrafficManager) SetAutoLaneChange(id simclient.ActorID, on bool) {
	tm.params.SetAutoLaneChange(id, on)
}

// SetDistanceToLeadingVehicle overrides id's minimum following distance.
func (tm *TrafficManager) SetDistanceToLeadingVehicle(id simclient.ActorID, metres float64) {
	tm.params.SetDistanceToLeadingVehicle(id, metres)
}

// Start resets the simulator's traffic-light groups and begins running the
// pipeline. Cancelling ctx stops the pipeline exactly like an explicit
// Stop() call, giving callers idiomatic Go cancellation alongside the
// explicit lifecycle method.
func (tm *TrafficManager) Start(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.running {
		return nil
	}
	if err := tm.pipeline.Start(ctx); err != nil {
		return err
	}
	tm.running = true

	go func() {
		<-ctx.Done()
		tm.Stop()
	}()

	return nil
}

// Stop halts the pipeline and joins every stage goroutine. Safe to call
// more than once.
func (tm *TrafficManager) Stop() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if !tm.running {
		return
	}
	tm.pipeline.Stop()
	tm.running = false
}

// WorldMap exposes the built InMemoryMap, mainly for tests and tooling
// that want to inspect the topology the manager drives vehicles over.
func (tm *TrafficManager) WorldMap() *worldmap.InMemoryMap { return tm.worldMap }
