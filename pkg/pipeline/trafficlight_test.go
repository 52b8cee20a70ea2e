package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bolidehi/trafficmanager/pkg/config"
	"github.com/bolidehi/trafficmanager/pkg/simclient"
)

func newTrafficLightStageForNegotiation(cfg config.Parameters) *TrafficLightStage {
	return &TrafficLightStage{
		cfg:                 cfg,
		vehicleLastJunction: make(map[simclient.ActorID]int32),
		vehicleLastTicket:   make(map[simclient.ActorID]time.Time),
		junctionLastTicket:  make(map[int32]time.Time),
		junctionLastHolder:  make(map[int32]simclient.ActorID),
	}
}

func TestNegotiateGrantsExactlyOneTicketUnderConcurrency(t *testing.T) {
	s := newTrafficLightStageForNegotiation(config.Default())

	const n = 50
	var wg sync.WaitGroup
	results := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.negotiate(simclient.ActorID(i+1), 1)
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, hazard := range results {
		if !hazard {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted, "exactly one concurrent approach should be admitted without a hazard")
}

func TestNegotiateReadmitsSameVehicleSameJunction(t *testing.T) {
	s := newTrafficLightStageForNegotiation(config.Default())

	assert.False(t, s.negotiate(1, 1))
	assert.False(t, s.negotiate(1, 1), "the ticket holder's own approach to the same junction is never a hazard")
}

func TestNegotiateGrantsExactlyOneTicketAtJunctionZero(t *testing.T) {
	// Junction id 0 is a legitimate id, not a sentinel — a vehicle that has
	// never approached any junction also zero-values to
	// vehicleLastJunction[ego]==0, so a naive equality check against
	// junction 0 would misread "never approached" as "already admitted".
	s := newTrafficLightStageForNegotiation(config.Default())

	assert.False(t, s.negotiate(1, 0))
	assert.True(t, s.negotiate(2, 0), "second vehicle must still be issued a hazard at junction 0")
}

func TestNegotiateIssuesTicketToSecondVehicleAfterExpiry(t *testing.T) {
	cfg := config.New(config.WithTicketExpiry(10 * time.Millisecond))
	s := newTrafficLightStageForNegotiation(cfg)

	assert.False(t, s.negotiate(1, 1))
	assert.True(t, s.negotiate(2, 1), "second vehicle must wait while the first holds the ticket")

	time.Sleep(20 * time.Millisecond)
	assert.False(t, s.negotiate(2, 1), "ticket holder's expiry should free the junction for a waiting vehicle")
}
