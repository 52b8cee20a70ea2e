package pipeline

import (
	"sync"

	"github.com/bolidehi/trafficmanager/pkg/simclient"
)

// Registry is the live set of actor ids the traffic manager currently
// drives. LocalizationStage consults it at the start of every tick; every
// other stage derives its working set solely from the frames it receives,
// per the no-stop-the-world registration contract. Registration can happen
// from any goroutine at any time between ticks, hence the mutex.
type Registry struct {
	mu  sync.RWMutex
	ids map[simclient.ActorID]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[simclient.ActorID]struct{})}
}

// Register adds ids to the managed set. Safe to call with ids already
// present; duplicates are absorbed silently.
func (r *Registry) Register(ids ...simclient.ActorID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.ids[id] = struct{}{}
	}
}

// Unregister removes ids from the managed set. A no-op for ids not present.
func (r *Registry) Unregister(ids ...simclient.ActorID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.ids, id)
	}
}

// Snapshot returns the managed ids at the moment of the call. The caller
// owns the returned slice.
func (r *Registry) Snapshot() []simclient.ActorID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]simclient.ActorID, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	return out
}

// Contains reports whether id is currently managed.
func (r *Registry) Contains(id simclient.ActorID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}
