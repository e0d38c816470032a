package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/watchkit/dirwatcher/internal/waitutil"
)

// fakeWorker is a minimal Worker for exercising Handle's state machine
// directly, without a Pool driving it.
type fakeWorker struct {
	startOK    bool
	updatesLeft int32

	starts  int32
	updates int32
	ends    int32
	stops   int32
}

func (w *fakeWorker) OnStart() bool {
	atomic.AddInt32(&w.starts, 1)
	return w.startOK
}

func (w *fakeWorker) OnUpdate(elapsedMs float32) bool {
	atomic.AddInt32(&w.updates, 1)
	return atomic.AddInt32(&w.updatesLeft, -1) > 0
}

func (w *fakeWorker) OnEnd()  { atomic.AddInt32(&w.ends, 1) }
func (w *fakeWorker) OnStop() { atomic.AddInt32(&w.stops, 1) }

func TestHandleRunStartFailureEndsImmediately(t *testing.T) {
	fw := &fakeWorker{startOK: false}
	h := NewHandle(fw)

	if ok := h.runStart(); ok {
		t.Fatalf("runStart() = true, want false")
	}
	if !h.Completed() {
		t.Errorf("handle not completed after a failed start")
	}
	if atomic.LoadInt32(&fw.ends) != 1 {
		t.Errorf("OnEnd called %d times, want 1", fw.ends)
	}
}

func TestHandleRunUpdateUntilDone(t *testing.T) {
	fw := &fakeWorker{startOK: true, updatesLeft: 3}
	h := NewHandle(fw)

	h.runStart()
	for i := 0; i < 3; i++ {
		h.runUpdate()
	}

	if !h.Completed() {
		t.Errorf("handle not completed after update budget exhausted")
	}
	if atomic.LoadInt32(&fw.updates) != 3 {
		t.Errorf("OnUpdate called %d times, want 3", fw.updates)
	}
	if atomic.LoadInt32(&fw.ends) != 1 {
		t.Errorf("OnEnd called %d times, want 1", fw.ends)
	}
}

func TestHandleStopInvokesOnStopOnce(t *testing.T) {
	fw := &fakeWorker{startOK: true, updatesLeft: 100}
	h := NewHandle(fw)
	h.runStart()

	h.Stop()
	h.Stop()
	if atomic.LoadInt32(&fw.stops) != 1 {
		t.Errorf("OnStop called %d times, want 1", fw.stops)
	}
	if !h.MustStop() {
		t.Errorf("MustStop() = false after Stop")
	}
}

func TestHandleWaitForTimesOutWhileRunning(t *testing.T) {
	fw := &fakeWorker{startOK: true, updatesLeft: 100}
	h := NewHandle(fw)
	h.runStart()

	if got := h.WaitFor(5); got != waitutil.Timeout {
		t.Errorf("WaitFor = %v, want Timeout", got)
	}
}

func TestHandleForceEndIsIdempotent(t *testing.T) {
	fw := &fakeWorker{startOK: true, updatesLeft: 100}
	h := NewHandle(fw)
	h.runStart()

	h.forceEnd()
	h.forceEnd()
	if atomic.LoadInt32(&fw.ends) != 1 {
		t.Errorf("OnEnd called %d times, want 1", fw.ends)
	}
}

// cooperativeWorker stops itself once mustStop (signaled via OnStop) is
// observed, the pattern the package doc tells real Workers to follow.
type cooperativeWorker struct {
	stopped atomic.Bool
	ticks   atomic.Int32
}

func (w *cooperativeWorker) OnStart() bool { return true }
func (w *cooperativeWorker) OnUpdate(elapsedMs float32) bool {
	w.ticks.Add(1)
	return !w.stopped.Load()
}
func (w *cooperativeWorker) OnEnd()  {}
func (w *cooperativeWorker) OnStop() { w.stopped.Store(true) }

func TestHandleStopAndWaitCooperative(t *testing.T) {
	cw := &cooperativeWorker{}
	h := NewHandle(cw)
	h.runStart()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for !h.Completed() {
			h.runUpdate()
			time.Sleep(time.Millisecond)
		}
	}()

	time.Sleep(5 * time.Millisecond)
	if got := h.StopAndWait(1000); got != waitutil.Complete {
		t.Errorf("StopAndWait = %v, want Complete", got)
	}
	<-done
}
