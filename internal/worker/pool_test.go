package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/watchkit/dirwatcher/internal/waitutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingWorker runs forever until stopped, counting OnUpdate calls.
type countingWorker struct {
	stopped atomic.Bool
	ticks   atomic.Int32
}

func (w *countingWorker) OnStart() bool { return true }
func (w *countingWorker) OnUpdate(elapsedMs float32) bool {
	w.ticks.Add(1)
	return !w.stopped.Load()
}
func (w *countingWorker) OnEnd()  {}
func (w *countingWorker) OnStop() { w.stopped.Store(true) }

func TestPoolRunsAddedWorkers(t *testing.T) {
	p := NewPool(time.Millisecond)
	go p.Run()

	cw := &countingWorker{}
	p.Add(cw)

	deadline := time.Now().Add(time.Second)
	for cw.ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if cw.ticks.Load() < 3 {
		t.Fatalf("worker only ticked %d times", cw.ticks.Load())
	}

	p.StopAndWait(1000)
	p.Wait()
}

func TestPoolStopAndWaitStopsActiveWorkers(t *testing.T) {
	p := NewPool(time.Millisecond)
	go p.Run()

	cw := &countingWorker{}
	h := p.Add(cw)

	for !h.Started() {
		time.Sleep(time.Millisecond)
	}

	if got := p.StopAndWait(1000); got != waitutil.Complete {
		t.Fatalf("StopAndWait = %v, want Complete", got)
	}
	if !cw.stopped.Load() {
		t.Errorf("worker was not signaled to stop")
	}
	p.Wait()
}

func TestPoolStatsReportsRunningAndPending(t *testing.T) {
	p := NewPool(time.Millisecond)

	cw := &countingWorker{}
	p.Add(cw)

	running, pending := p.Stats()
	if running != 0 || pending != 1 {
		t.Errorf("Stats before Run() = running=%d pending=%d, want 0,1", running, pending)
	}

	go p.Run()
	deadline := time.Now().Add(time.Second)
	for {
		running, pending = p.Stats()
		if running == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker never became active: running=%d pending=%d", running, pending)
		}
		time.Sleep(time.Millisecond)
	}

	p.StopAndWait(1000)
	p.Wait()
}

func TestPoolForceEndsStragglersOnTimeout(t *testing.T) {
	p := NewPool(time.Millisecond)
	go p.Run()

	// ignoresStop never honors OnStop, forcing StopAndWait to fall back to
	// forceEnd after its budget expires.
	w := &ignoresStopWorker{}
	h := p.Add(w)
	for !h.Started() {
		time.Sleep(time.Millisecond)
	}

	got := p.StopAndWait(20)
	if got != waitutil.Timeout {
		t.Errorf("StopAndWait = %v, want Timeout", got)
	}
	if !h.Completed() {
		t.Errorf("straggling worker was not force-completed")
	}
	p.Wait()
}

type ignoresStopWorker struct{}

func (w *ignoresStopWorker) OnStart() bool                  { return true }
func (w *ignoresStopWorker) OnUpdate(elapsedMs float32) bool { return true }
func (w *ignoresStopWorker) OnEnd()                          {}
func (w *ignoresStopWorker) OnStop()                         {}
