// Package pipeline assembles the five concurrent stages — Localization,
// Collision, TrafficLight, MotionPlanner, BatchControl — and the
// Messenger edges connecting them into the traffic manager's running
// pipeline.
package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bolidehi/trafficmanager/pkg/config"
	"github.com/bolidehi/trafficmanager/pkg/messenger"
	"github.com/bolidehi/trafficmanager/pkg/params"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
	"github.com/bolidehi/trafficmanager/pkg/vicinity"
	"github.com/bolidehi/trafficmanager/pkg/worldmap"
)

// Pipeline owns every edge and stage and drives their lifecycle together.
type Pipeline struct {
	cfg    config.Parameters
	log    logrus.FieldLogger
	client simclient.Client

	Registry *Registry

	localization  *LocalizationStage
	collision     *CollisionStage
	trafficLight  *TrafficLightStage
	motionPlanner *MotionPlannerStage
	batchControl  *BatchControlStage

	stages []*Stage

	locToPlanner       *messenger.Messenger[LocalizationToPlannerFrame]
	locToCollision     *messenger.Messenger[LocalizationToCollisionFrame]
	locToTrafficLight  *messenger.Messenger[LocalizationToTrafficLightFrame]
	collisionToPlanner *messenger.Messenger[CollisionToPlannerFrame]
	trafficToPlanner   *messenger.Messenger[TrafficLightToPlannerFrame]
	plannerToControl   *messenger.Messenger[PlannerToControlFrame]

	started bool
}

// defaultPoolSize is how many Action workers each stage's pool (except
// BatchControl's, which gets 1) spawns per tick.
// The spec's own guidance (cores / number of stages) is left to the
// caller; a fixed, small pool keeps the demo CLI and tests predictable.
const defaultPoolSize = 4

// New wires every Messenger edge and stage around the given shared
// resources. Call Start to begin running ticks.
func New(
	cfg config.Parameters,
	log logrus.FieldLogger,
	worldMap *worldmap.InMemoryMap,
	vicinityGrid *vicinity.Grid,
	paramsStore *params.Store,
	client simclient.Client,
) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	registry := NewRegistry()

	p := &Pipeline{
		cfg:                cfg,
		log:                log,
		client:             client,
		Registry:           registry,
		locToPlanner:       messenger.New[LocalizationToPlannerFrame](),
		locToCollision:     messenger.New[LocalizationToCollisionFrame](),
		locToTrafficLight:  messenger.New[LocalizationToTrafficLightFrame](),
		collisionToPlanner: messenger.New[CollisionToPlannerFrame](),
		trafficToPlanner:   messenger.New[TrafficLightToPlannerFrame](),
		plannerToControl:   messenger.New[PlannerToControlFrame](),
	}

	p.localization = NewLocalizationStage(cfg, log, worldMap, client, registry,
		p.locToPlanner, p.locToCollision, p.locToTrafficLight)
	p.collision = NewCollisionStage(cfg, log, worldMap, vicinityGrid, paramsStore, client, registry,
		p.locToCollision, p.collisionToPlanner)
	p.trafficLight = NewTrafficLightStage(cfg, log, worldMap, client,
		p.locToTrafficLight, p.trafficToPlanner)
	p.motionPlanner = NewMotionPlannerStage(cfg, log, client, paramsStore,
		p.locToPlanner, p.collisionToPlanner, p.trafficToPlanner, p.plannerToControl)
	p.batchControl = NewBatchControlStage(cfg, log, client, p.plannerToControl)

	p.stages = []*Stage{
		NewStage("localization", defaultPoolSize, p.localization),
		NewStage("collision", defaultPoolSize, p.collision),
		NewStage("trafficlight", defaultPoolSize, p.trafficLight),
		NewStage("motionplanner", defaultPoolSize, p.motionPlanner),
		NewStage("batchcontrol", 1, p.batchControl),
	}

	return p
}

// Start resets every simulator traffic-light group to a known phase, then
// starts all five stages. Calling Start twice without an intervening Stop
// is a no-op.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.started {
		return nil
	}
	if err := p.client.ResetAllTrafficLightGroups(); err != nil {
		return fmt.Errorf("pipeline: resetting traffic light groups: %w", err)
	}

	p.locToPlanner.Reset()
	p.locToCollision.Reset()
	p.locToTrafficLight.Reset()
	p.collisionToPlanner.Reset()
	p.trafficToPlanner.Reset()
	p.plannerToControl.Reset()

	for _, s := range p.stages {
		s.Start(ctx)
	}
	p.started = true
	return nil
}

// Stop terminates every Messenger (waking any stage blocked on one) and
// joins all stage goroutines in reverse DAG order: BatchControl first,
// Localization last.
func (p *Pipeline) Stop() {
	if !p.started {
		return
	}
	p.locToPlanner.Terminate()
	p.locToCollision.Terminate()
	p.locToTrafficLight.Terminate()
	p.collisionToPlanner.Terminate()
	p.trafficToPlanner.Terminate()
	p.plannerToControl.Terminate()

	for i := len(p.stages) - 1; i >= 0; i-- {
		p.stages[i].Stop()
	}
	p.started = false
}

// ForgetVehicle drops per-vehicle state owned by the pipeline (the
// Localization waypoint buffer), called when a vehicle is unregistered.
func (p *Pipeline) ForgetVehicle(id simclient.ActorID) {
	p.localization.ForgetVehicle(id)
}
