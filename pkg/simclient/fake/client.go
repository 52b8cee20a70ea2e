package fake

import (
	"fmt"
	"sync"
	"time"

	"github.com/bolidehi/trafficmanager/pkg/simclient"
)

// Client is an in-memory simclient.Client backed by a fixed vehicle set.
// ApplyBatch integrates every named vehicle by the tick period given to
// NewClient (the period the caller is driving at).
type Client struct {
	mu             sync.RWMutex
	vehicles       map[simclient.ActorID]*Vehicle
	tick           time.Duration
	resetCallCount int
}

// NewClient creates a Client that integrates vehicles over the given tick
// period each time ApplyBatch is called.
func NewClient(tick time.Duration) *Client {
	return &Client{vehicles: make(map[simclient.ActorID]*Vehicle), tick: tick}
}

// AddVehicle registers v with the client's world.
func (c *Client) AddVehicle(v *Vehicle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vehicles[v.id] = v
}

// Vehicle returns the vehicle by id, for test assertions.
func (c *Client) Vehicle(id simclient.ActorID) (*Vehicle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vehicles[id]
	return v, ok
}

func (c *Client) Actors(pattern string) ([]simclient.Actor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]simclient.Actor, 0, len(c.vehicles))
	for _, v := range c.vehicles {
		if v.IsAlive() && v.matches(pattern) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *Client) ApplyBatch(cmds []simclient.VehicleControlCommand) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cmd := range cmds {
		v, ok := c.vehicles[cmd.ActorID]
		if !ok {
			return fmt.Errorf("fake client: unknown actor %d", cmd.ActorID)
		}
		v.integrate(cmd.Throttle, cmd.Brake, cmd.Steer, c.tick.Seconds())
	}
	return nil
}

func (c *Client) ResetAllTrafficLightGroups() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetCallCount++
	return nil
}

// ResetCallCount returns how many times ResetAllTrafficLightGroups ran.
func (c *Client) ResetCallCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetCallCount
}
