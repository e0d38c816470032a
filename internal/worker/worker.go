// Package worker implements the cooperative Worker (C7) and the
// single-dispatcher Worker Pool (C8) that drives everything else in this
// module, grounded on
// myoddweb.directorywatcher.win/utils/Threads/Worker.h and WorkerPool.h.
package worker

import (
	"sync"

	"github.com/watchkit/dirwatcher/internal/waitutil"
)

// State is a Worker's lifecycle state.
type State int

const (
	StateUnknown State = iota
	StateStarting
	StateStarted
	StateStopping
	StateStopped
	StateComplete
)

// Worker is the capability set the pool drives: on_start, on_update,
// on_end, on_stop, expressed as a Go interface instead of the source's
// inheritance hierarchy (spec §9 design notes).
type Worker interface {
	// OnStart is called exactly once before any OnUpdate. Returning false
	// marks the worker Complete without ever receiving an update.
	OnStart() bool
	// OnUpdate is called repeatedly with the elapsed time since the last
	// call. Returning false requests the worker end.
	OnUpdate(elapsedMs float32) bool
	// OnEnd is called exactly once, after the last OnUpdate returns,
	// whether shutdown was cooperative or forced by pool stop.
	OnEnd()
	// OnStop is called when the worker is externally asked to stop; it may
	// arrive concurrently with an in-flight OnUpdate and must not block.
	OnStop()
}

// Handle wraps a Worker with the lifecycle bookkeeping the pool needs:
// state, must-stop flag, last-tick timestamp, and the completion signal
// StopAndWait/WaitFor block on.
type Handle struct {
	worker Worker

	mu         sync.Mutex
	state      State
	mustStop   bool
	lastTickMs int64

	started   bool
	completed bool
	done      chan struct{}
}

// NewHandle wraps a Worker for submission to a Pool.
func NewHandle(w Worker) *Handle {
	return &Handle{
		worker: w,
		state:  StateUnknown,
		done:   make(chan struct{}),
	}
}

// Started reports whether OnStart has been called.
func (h *Handle) Started() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

// Completed reports whether the worker has reached StateComplete.
func (h *Handle) Completed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completed
}

// MustStop reports whether Stop has been requested. Safe to call
// concurrently with a running OnUpdate; callers' OnUpdate implementations
// should poll this to cooperate with Stop.
func (h *Handle) MustStop() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mustStop
}

// Stop is a non-blocking request that the worker end at its next
// opportunity. It is safe to call from any goroutine.
func (h *Handle) Stop() {
	h.mu.Lock()
	already := h.mustStop
	h.mustStop = true
	h.mu.Unlock()
	if !already {
		h.worker.OnStop()
	}
}

// StopAndWait calls Stop and blocks until the worker reaches Complete or
// the timeout elapses.
func (h *Handle) StopAndWait(timeoutMs int64) waitutil.Result {
	h.Stop()
	return h.WaitFor(timeoutMs)
}

// WaitFor blocks until the worker completes or the timeout elapses. A worker
// that has not started yet is waited on like any other.
func (h *Handle) WaitFor(timeoutMs int64) waitutil.Result {
	if h.Completed() {
		return waitutil.Complete
	}
	return waitutil.SpinUntilChan(h.done, timeoutMs)
}

func (h *Handle) markComplete() {
	h.mu.Lock()
	if h.completed {
		h.mu.Unlock()
		return
	}
	h.completed = true
	h.state = StateComplete
	h.mu.Unlock()
	close(h.done)
}

// runStart invokes OnStart once. Returns whether the worker should proceed
// to receive updates.
func (h *Handle) runStart() bool {
	h.mu.Lock()
	h.state = StateStarting
	h.started = true
	h.mu.Unlock()

	ok := h.worker.OnStart()

	h.mu.Lock()
	if ok {
		h.state = StateStarted
		h.lastTickMs = waitutil.NowUTCMillis()
	}
	h.mu.Unlock()

	if !ok {
		h.worker.OnEnd()
		h.markComplete()
	}
	return ok
}

// runUpdate invokes OnUpdate once with the elapsed time since the previous
// tick, ending the worker if requested.
func (h *Handle) runUpdate() {
	now := waitutil.NowUTCMillis()
	h.mu.Lock()
	elapsed := float32(now - h.lastTickMs)
	h.lastTickMs = now
	h.mu.Unlock()
	if elapsed < 0 {
		elapsed = 0
	}

	continue_ := h.worker.OnUpdate(elapsed)
	if !continue_ {
		h.worker.OnEnd()
		h.markComplete()
	}
}

// forceEnd is used by StopAndWait-at-the-pool-level to end a worker that
// did not finish in its own timeout budget.
func (h *Handle) forceEnd() {
	h.mu.Lock()
	already := h.completed
	h.mu.Unlock()
	if already {
		return
	}
	h.worker.OnEnd()
	h.markComplete()
}
