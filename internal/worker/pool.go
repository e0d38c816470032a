package worker

import (
	"sync"
	"time"

	"github.com/watchkit/dirwatcher/internal/waitutil"
	"github.com/watchkit/dirwatcher/internal/wlog"
)

// Pool is the C8 Worker Pool: one control goroutine drives a dynamic set of
// Workers under a minimum-tick throttle, cooperatively, with safe add/stop
// semantics while running. Grounded on
// myoddweb.directorywatcher.win/utils/Threads/WorkerPool.cpp.
type Pool struct {
	throttle time.Duration

	pendingMu sync.Mutex
	pending   []*Handle

	activeMu sync.Mutex
	active   []*Handle

	running  int32
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewPool creates a Pool with the given minimum elapsed time between
// dispatch ticks (the "tick throttle" of spec §4.8).
func NewPool(throttle time.Duration) *Pool {
	return &Pool{
		throttle: throttle,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Add submits a worker to the pool. Safe to call before or after Run has
// been started: additions made before Run starts begin with the pool;
// additions made while the pool is running become visible on the next
// tick (spec §4.8 add semantics).
func (p *Pool) Add(w Worker) *Handle {
	h := NewHandle(w)
	p.pendingMu.Lock()
	p.pending = append(p.pending, h)
	p.pendingMu.Unlock()
	return h
}

// Run starts the control loop. It blocks until Stop (or StopAndWait) is
// called; callers typically invoke Run in its own goroutine.
func (p *Pool) Run() {
	ticker := time.NewTicker(p.throttle)
	defer ticker.Stop()
	defer close(p.doneCh)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick performs one dispatch cycle: absorb pending additions, run a start
// or update on each active worker, then sweep completed workers.
func (p *Pool) tick() {
	p.absorbPending()

	p.activeMu.Lock()
	active := append([]*Handle(nil), p.active...)
	p.activeMu.Unlock()

	for _, h := range active {
		if !h.Started() {
			h.runStart()
			continue
		}
		if h.Completed() {
			continue
		}
		h.runUpdate()
	}

	p.sweepCompleted()
}

func (p *Pool) absorbPending() {
	p.pendingMu.Lock()
	if len(p.pending) == 0 {
		p.pendingMu.Unlock()
		return
	}
	newlyPending := p.pending
	p.pending = nil
	p.pendingMu.Unlock()

	p.activeMu.Lock()
	p.active = append(p.active, newlyPending...)
	p.activeMu.Unlock()
}

func (p *Pool) sweepCompleted() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()

	kept := p.active[:0:0]
	for _, h := range p.active {
		if !h.Completed() {
			kept = append(kept, h)
		}
	}
	p.active = kept
}

// Stop sets the pool's must-stop flag; it does not wait for workers to
// finish. Use StopAndWait for the authoritative join.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// StopAndWait sets must-stop on all active workers, waits up to timeoutMs
// for them to reach Complete, force-ends any stragglers, clears the active
// set, and stops the control loop. Returns Complete if everything finished
// within the budget, Timeout otherwise.
func (p *Pool) StopAndWait(timeoutMs int64) waitutil.Result {
	p.absorbPending()

	p.activeMu.Lock()
	workers := append([]*Handle(nil), p.active...)
	p.activeMu.Unlock()

	for _, h := range workers {
		h.Stop()
	}

	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	result := waitutil.Complete
	for _, h := range workers {
		remaining := time.Until(deadline).Milliseconds()
		if remaining < 0 {
			remaining = 0
		}
		if h.WaitFor(remaining) == waitutil.Timeout {
			result = waitutil.Timeout
		}
	}

	for _, h := range workers {
		if !h.Completed() {
			wlog.Warningf("worker pool: forcing end of straggling worker after stop_and_wait timeout")
			h.forceEnd()
		}
	}

	p.activeMu.Lock()
	p.active = nil
	p.activeMu.Unlock()

	p.Stop()
	return result
}

// Stats reports a snapshot of the pool's bookkeeping, grounded on
// WorkerPool.h's three-container split (waiting-to-start vs running vs
// waiting-to-end), exposed per SPEC_FULL.md §4 for the stats callback.
func (p *Pool) Stats() (running, pendingAdd int) {
	p.pendingMu.Lock()
	pendingAdd = len(p.pending)
	p.pendingMu.Unlock()

	p.activeMu.Lock()
	running = len(p.active)
	p.activeMu.Unlock()
	return
}

// Wait blocks until the control loop itself has returned (after Stop or
// StopAndWait), useful for tests asserting no goroutine leak.
func (p *Pool) Wait() {
	<-p.doneCh
}
