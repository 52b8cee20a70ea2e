package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
)

// Hooks is what a concrete stage implements; Stage supplies the
// receiver/action-pool/sender orchestration around it.
type Hooks interface {
	// DataReceiver may block on an upstream Messenger (or, for Localization,
	// on nothing at all — it free-runs off the Registry). Returns false once
	// the stage should stop, e.g. because the upstream messenger terminated.
	DataReceiver(ctx context.Context) bool
	// NumSlots returns how many index-addressable work items this tick's
	// received frame produced. Action partitions [0, NumSlots()).
	NumSlots() int
	// Action processes the half-open partition [start, end) of the current
	// tick's work. Called concurrently by up to PoolSize goroutines with
	// disjoint partitions; must not touch another worker's slots.
	Action(start, end int)
	// DataSender may block on a downstream Messenger (or on BatchControl's
	// 10ms cap). Returns false once the stage should stop.
	DataSender(ctx context.Context) bool
}

// Stage is the base pipeline-stage runtime: a receiver goroutine, a sender
// goroutine, and a pool of Action workers spawned fresh each tick and
// joined by a barrier before the sender runs. Receiver and sender run as
// independent goroutines coupled only by the frameReady/actionDone
// channels, so the receiver may start pulling the next tick's data while
// the sender is still flushing the previous one — latency hiding across
// ticks, the same effect the three-long-lived-threads design gets from
// per-role condition variables, expressed with Go's native coupling
// primitive instead of a hand-rolled mutex-plus-three-condvars scheme.
type Stage struct {
	Name     string
	PoolSize int
	Hooks    Hooks

	running    atomic.Bool
	frameReady chan struct{}
	actionDone chan struct{}
	wg         sync.WaitGroup
	cancel     context.CancelFunc
}

// NewStage constructs a Stage around the given Hooks. poolSize is clamped
// to at least 1.
func NewStage(name string, poolSize int, hooks Hooks) *Stage {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Stage{
		Name:       name,
		PoolSize:   poolSize,
		Hooks:      hooks,
		frameReady: make(chan struct{}, 1),
		actionDone: make(chan struct{}, 1),
	}
}

// Start spawns the receiver, action-dispatch and sender goroutines. Calling
// Start on an already-running Stage is a no-op.
func (s *Stage) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(3)
	go s.receiveLoop(ctx)
	go s.actionLoop(ctx)
	go s.sendLoop(ctx)
}

func (s *Stage) receiveLoop(ctx context.Context) {
	defer s.wg.Done()
	for s.running.Load() {
		if !s.Hooks.DataReceiver(ctx) {
			s.running.Store(false)
			select {
			case s.frameReady <- struct{}{}:
			default:
			}
			return
		}
		select {
		case s.frameReady <- struct{}{}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Stage) actionLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.frameReady:
		case <-ctx.Done():
			return
		}
		if !s.running.Load() {
			select {
			case s.actionDone <- struct{}{}:
			default:
			}
			return
		}
		s.runActionPool()
		select {
		case s.actionDone <- struct{}{}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Stage) sendLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.actionDone:
		case <-ctx.Done():
			return
		}
		if !s.running.Load() {
			return
		}
		if !s.Hooks.DataSender(ctx) {
			s.running.Store(false)
			return
		}
	}
}

// runActionPool partitions [0, NumSlots()) into up to PoolSize contiguous,
// evenly-sized ranges and runs Action over each in its own goroutine,
// barrier-waiting for all to finish before returning.
func (s *Stage) runActionPool() {
	n := s.Hooks.NumSlots()
	if n == 0 {
		return
	}
	workers := s.PoolSize
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= n {
			break
		}
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			s.Hooks.Action(start, end)
		}(start, end)
	}
	wg.Wait()
}

// Stop clears the running flag, cancels the stage's context so any
// goroutine parked on ctx.Done() wakes, and joins all three goroutines.
// Callers are responsible for terminating the Messengers this stage reads
// from and writes to before or alongside Stop, since DataReceiver/
// DataSender block on those independently of ctx.
func (s *Stage) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
