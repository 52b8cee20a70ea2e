// Command tmctl runs a small demo world: a handful of vehicles spread over
// two straight roads joined by a junction, driven by the traffic manager for
// a fixed five-second wall-clock window, printing each vehicle's final
// position and speed.
package main

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/bolidehi/trafficmanager/pkg/config"
	"github.com/bolidehi/trafficmanager/pkg/geom"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
	"github.com/bolidehi/trafficmanager/pkg/simclient/fake"
	"github.com/bolidehi/trafficmanager/pkg/trafficmanager"
)

const demoTickPeriod = 20 * time.Millisecond

func main() {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)

	client := fake.NewClient(demoTickPeriod)
	segments, vehicles := buildDemoWorld(client)

	cfg := config.New(config.WithLocalizationTickPeriod(demoTickPeriod))
	tm, err := trafficmanager.New(cfg, log, client, segments)
	if err != nil {
		log.WithError(err).Fatal("tmctl: building traffic manager")
	}

	ids := lo.Uniq(lo.Map(vehicles, func(v *fake.Vehicle, _ int) simclient.ActorID { return v.ID() }))
	if err := tm.RegisterVehicles(ids); err != nil {
		log.WithError(err).Fatal("tmctl: registering vehicles")
	}
	tm.SetGlobalPercentageSpeedDifference(10)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tm.Start(ctx); err != nil {
		log.WithError(err).Fatal("tmctl: starting pipeline")
	}

	<-ctx.Done()
	tm.Stop()

	for _, v := range vehicles {
		loc := v.Location()
		log.WithFields(logrus.Fields{
			"actor": v.ID(),
			"x":     loc.X,
			"y":     loc.Y,
			"speed": v.Speed(),
		}).Info("tmctl: final vehicle state")
	}
}

// buildDemoWorld wires a two-road junction with three vehicles approaching
// it from two directions (two eastbound, one northbound) and returns the
// sparse topology plus the
// fake vehicles registered on client.
func buildDemoWorld(client *fake.Client) ([]simclient.RoadSegment, []*fake.Vehicle) {
	eastbound := fake.NewRoad("eastbound", []geom.Location{{X: 0}, {X: 100}})
	eastbound.Junctions = []fake.JunctionRange{{StartS: 45, EndS: 55, JunctionID: 1}}

	northbound := fake.NewRoad("northbound", []geom.Location{{X: 50, Y: -50}, {X: 50, Y: 50}})
	northbound.Junctions = []fake.JunctionRange{{StartS: 45, EndS: 55, JunctionID: 1}}

	segments := []simclient.RoadSegment{
		{Begin: eastbound.At(0), End: eastbound.At(eastbound.Length())},
		{Begin: northbound.At(0), End: northbound.At(northbound.Length())},
	}

	vehicles := []*fake.Vehicle{
		fake.NewVehicle(1, geom.Location{X: 5}, 0, 6, 11),
		fake.NewVehicle(2, geom.Location{X: 20}, 0, 8, 11),
		fake.NewVehicle(3, geom.Location{X: 50, Y: -45}, 90, 6, 11),
	}
	for _, v := range vehicles {
		client.AddVehicle(v)
	}

	return segments, vehicles
}
