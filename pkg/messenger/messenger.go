// Package messenger implements the single-slot, state-stamped rendezvous
// that couples adjacent pipeline stages while letting them run at
// independent rates. Each edge in the pipeline DAG is one Messenger.
package messenger

import "sync"

// Messenger is a single-cell mailbox holding the latest payload of type T
// plus a monotonically advancing 16-bit state counter. A sender observes
// exactly one state per Send; a receiver that presents the current state
// blocks until the counter advances, then returns the new payload and
// counter (a receiver presenting an older state returns at once).
//
// Crossing the sender against state-1 and the receiver against the current
// state means at most one side is ever blocked waiting on the other — there
// is never a queue, only the latest frame.
type Messenger[T any] struct {
	mu        sync.Mutex
	cond      *sync.Cond
	payload   T
	state     uint16
	terminate bool
}

// New returns a Messenger with its counter at zero and no payload set.
func New[T any]() *Messenger[T] {
	m := &Messenger[T]{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Send blocks until the messenger's counter equals expected, then stores
// data, advances the counter, wakes every waiter and returns the new counter.
// If the messenger is terminated while waiting, it returns immediately with
// ok=false and no write takes place.
func (m *Messenger[T]) Send(expected uint16, data T) (newState uint16, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.state != expected && !m.terminate {
		m.cond.Wait()
	}
	if m.terminate {
		return m.state, false
	}
	m.payload = data
	m.state++
	m.cond.Broadcast()
	return m.state, true
}

// Receive blocks until the messenger's counter differs from state, then
// returns the current payload and counter. If the messenger is terminated
// while waiting, it returns immediately with ok=false.
func (m *Messenger[T]) Receive(state uint16) (payload T, newState uint16, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.state == state && !m.terminate {
		m.cond.Wait()
	}
	if m.terminate && m.state == state {
		var zero T
		return zero, m.state, false
	}
	return m.payload, m.state, true
}

// GetState returns the current counter without blocking.
func (m *Messenger[T]) GetState() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Terminate sets the shutdown flag and wakes every blocked Send/Receive so
// they can return promptly. Idempotent.
func (m *Messenger[T]) Terminate() {
	m.mu.Lock()
	m.terminate = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Reset clears the terminate flag, allowing the messenger to be reused
// after a Stop/Start cycle on the owning pipeline.
func (m *Messenger[T]) Reset() {
	m.mu.Lock()
	m.terminate = false
	m.mu.Unlock()
}
