package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolidehi/trafficmanager/pkg/config"
	"github.com/bolidehi/trafficmanager/pkg/geom"
	"github.com/bolidehi/trafficmanager/pkg/params"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
	"github.com/bolidehi/trafficmanager/pkg/simclient/fake"
	"github.com/bolidehi/trafficmanager/pkg/vicinity"
	"github.com/bolidehi/trafficmanager/pkg/worldmap"
)

func silentLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register(1, 2, 3)
	assert.True(t, r.Contains(2))
	assert.ElementsMatch(t, []simclient.ActorID{1, 2, 3}, r.Snapshot())

	r.Unregister(2)
	assert.False(t, r.Contains(2))
	assert.ElementsMatch(t, []simclient.ActorID{1, 3}, r.Snapshot())
}

func buildStraightWorld(t *testing.T, length float64) (*worldmap.InMemoryMap, *fake.Client, *fake.Vehicle) {
	t.Helper()
	road := fake.NewStraightRoad("r1", geom.Location{}, geom.Location{X: length})
	wm := worldmap.New(config.Default(), silentLogger())
	require.NoError(t, wm.SetUp([]simclient.RoadSegment{{Begin: road.At(0), End: road.At(road.Length())}}))

	client := fake.NewClient(10 * time.Millisecond)
	v := fake.NewVehicle(1, geom.Location{X: 1}, 0, 5, 10)
	client.AddVehicle(v)

	return wm, client, v
}

func TestPipelineRunsTicksAndAppliesControl(t *testing.T) {
	wm, client, v := buildStraightWorld(t, 200)

	cfg := config.New(config.WithLocalizationTickPeriod(5 * time.Millisecond))
	grid := vicinity.New(cfg.VicinityCellSize)
	store := params.New()

	p := New(cfg, silentLogger(), wm, grid, store, client)
	p.Registry.Register(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))

	assert.Eventually(t, func() bool {
		throttle, _, _ := v.LastControl()
		return throttle > 0 || v.Speed() > 0
	}, 2*time.Second, 10*time.Millisecond, "vehicle never received a moving control command")

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline.Stop() did not return promptly")
	}

	assert.EqualValues(t, 1, client.ResetCallCount())
}

func TestPipelineStartIsIdempotent(t *testing.T) {
	wm, client, _ := buildStraightWorld(t, 50)
	cfg := config.Default()
	grid := vicinity.New(cfg.VicinityCellSize)
	store := params.New()

	p := New(cfg, silentLogger(), wm, grid, store, client)
	ctx := context.Background()
	require.NoError(t, p.Start(ctx))
	require.NoError(t, p.Start(ctx))
	assert.EqualValues(t, 1, client.ResetCallCount())

	p.Stop()
}

func TestForgetVehicleDropsLocalizationBuffer(t *testing.T) {
	wm, client, _ := buildStraightWorld(t, 50)
	cfg := config.Default()
	grid := vicinity.New(cfg.VicinityCellSize)
	store := params.New()

	p := New(cfg, silentLogger(), wm, grid, store, client)
	p.localization.buffers[1] = []worldmap.Handle{0, 1, 2}
	p.ForgetVehicle(1)
	_, ok := p.localization.buffers[1]
	assert.False(t, ok)
}
