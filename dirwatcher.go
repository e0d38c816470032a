// Package dirwatcher is a long-running directory-change watcher: callers
// register a directory path (optionally recursive) and receive a stream of
// add/remove/touch/rename events for files and subdirectories underneath
// it. This is the public surface (spec §6); everything else lives under
// internal/.
package dirwatcher

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/watchkit/dirwatcher/internal/collector"
	"github.com/watchkit/dirwatcher/internal/monitor"
	"github.com/watchkit/dirwatcher/internal/registry"
	"github.com/watchkit/dirwatcher/internal/wlog"
	"github.com/watchkit/dirwatcher/internal/worker"
)

// Action is the kind of change an Event records, C1 of the design.
type Action int

const (
	Unknown Action = iota
	Added
	Removed
	Touched
	Renamed
)

// ErrorCode is the closed event-stream error taxonomy, spec §7.
type ErrorCode int

const (
	ErrorNone ErrorCode = iota
	ErrorGeneral
	ErrorMemory
	ErrorOverflow
	ErrorAborted
	ErrorCannotStart
	ErrorAccess
	ErrorNoFileData
)

// Event is an immutable record of a single change.
type Event struct {
	TimeMillisecondsUTC int64
	Action              Action
	Error               ErrorCode
	Name                string
	OldName             string
	IsFile              bool
}

// EventCallback is invoked for each delivered event; its return value is
// ignored, matching the managed-interop boundary spec §6 describes.
type EventCallback func(id int64, isFile bool, name, oldName string, action Action, errCode ErrorCode, timeMs int64) int32

// Stats is the payload reported through StatsCallback, grounded on
// original_source's Instrumentor.h (SPEC_FULL.md §4).
type Stats struct {
	EventsCollected int64
	EventsAgedOut   int64
	WorkersRunning  int
	WorkersPending  int
}

// StatsCallback is invoked on StatsIntervalMs with a Stats snapshot for the
// watch.
type StatsCallback func(id int64, stats Stats)

// Request is captured immutably at Start time (spec §3).
type Request struct {
	Path      string
	Recursive bool

	EventCallback   EventCallback
	EventIntervalMs int

	StatsCallback   StatsCallback
	StatsIntervalMs int
}

// watch is the common surface of monitor.Monitor and monitor.MultiMonitor.
type watch interface {
	Start() error
	Stop()
	GetEvents() []collector.Event
	Counts() (collected, agedOut int64)
}

// watchEntry is what the Registry actually stores: the underlying watch
// plus the per-watch dispatcher workers and bookkeeping Stop needs to tear
// everything down.
type watchEntry struct {
	id      int64
	request Request
	w       watch

	eventHandle *worker.Handle
	statsHandle *worker.Handle
}

func (e *watchEntry) GetEvents() []collector.Event {
	return e.w.GetEvents()
}

// Stop implements registry.Entry: stop the dispatcher workers first (so no
// further callback fires once streams start tearing down), then stop the
// underlying watch.
func (e *watchEntry) Stop() {
	const stopTimeoutMs = 2000
	if e.eventHandle != nil {
		e.eventHandle.StopAndWait(stopTimeoutMs)
	}
	if e.statsHandle != nil {
		e.statsHandle.StopAndWait(stopTimeoutMs)
	}
	e.w.Stop()
}

var (
	poolOnce sync.Once
	pool     *worker.Pool
)

// dispatcherThrottle is the minimum elapsed time between pool ticks, spec
// §5/§4.8: "default 10 ms for the dispatcher pool".
const dispatcherThrottle = 10 * time.Millisecond

func sharedPool() *worker.Pool {
	poolOnce.Do(func() {
		pool = worker.NewPool(dispatcherThrottle)
		go pool.Run()
	})
	return pool
}

// Start registers a new watch and returns its id. A positive id means
// success; -1 means the watch root does not exist or is not a directory (the only start-time
// failure surfaced through the return value rather than the event stream,
// per spec §6).
func Start(req Request) int64 {
	info, err := os.Stat(req.Path)
	if err != nil || !info.IsDir() {
		return -1
	}

	w, hasChildren := newWatch(req)
	wlog.Debugf("dirwatcher: starting watch on %q recursive=%v multi=%v", req.Path, req.Recursive, hasChildren)

	entry := &watchEntry{request: req, w: w}

	if err := w.Start(); err != nil {
		wlog.Warningf("dirwatcher: watch on %q failed to start: %v", req.Path, err)
	}

	id := registry.Instance().Register(entry)
	entry.id = id

	p := sharedPool()
	entry.eventHandle = p.Add(newEventPublisher(id, entry, req.EventCallback, req.EventIntervalMs))
	if req.StatsCallback != nil {
		entry.statsHandle = p.Add(newStatsPublisher(id, entry, p, req.StatsCallback, req.StatsIntervalMs))
	}

	return id
}

// newWatch decides between a plain Monitor and a decomposed MultiMonitor,
// per spec §2's "creates a Monitor (or Multi-Monitor if recursive and the
// subtree is large)".
func newWatch(req Request) (watch, bool) {
	mreq := monitor.Request{Path: req.Path, Recursive: req.Recursive}
	if !req.Recursive {
		return monitor.New(mreq), false
	}
	if !hasSubfolders(req.Path) {
		return monitor.New(mreq), false
	}
	return monitor.NewMultiWithDepth(mreq, monitor.DefaultMaxDepth), true
}

func hasSubfolders(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			return true
		}
	}
	return false
}

// Stop stops and removes the watch for id. Returns true if the id was
// known.
func Stop(id int64) bool {
	return registry.Instance().Stop(id)
}

// GetEvents drains the events currently buffered for id. count is -1 for
// an unknown id, matching spec §6's get_events contract.
func GetEvents(id int64) (events []Event, count int64) {
	entry, ok := registry.Instance().Get(id)
	if !ok {
		return nil, -1
	}
	we, ok := entry.(*watchEntry)
	if !ok {
		return nil, -1
	}
	raw := we.GetEvents()
	out := make([]Event, 0, len(raw))
	for _, e := range raw {
		out = append(out, toPublicEvent(e))
	}
	return out, int64(len(out))
}

func toPublicEvent(e collector.Event) Event {
	return Event{
		TimeMillisecondsUTC: e.TimeMillisecondsUTC,
		Action:              Action(e.Action),
		Error:               ErrorCode(e.Error),
		Name:                e.Name,
		OldName:             e.OldName,
		IsFile:              e.IsFile,
	}
}

// eventPublisher is the per-watch periodic publisher worker (C7 variant
// "PublishCallbackWorker", spec §9): it drains the watch's Collector on
// EventIntervalMs and invokes the caller's EventCallback. An interval of 0
// disables callbacks — events still accumulate up to the Collector's age
// bound, per spec §6.
type eventPublisher struct {
	id         int64
	entry      *watchEntry
	callback   EventCallback
	intervalMs float32
	accumMs    float32
	stopped    atomic.Bool
}

func newEventPublisher(id int64, entry *watchEntry, cb EventCallback, intervalMs int) *eventPublisher {
	return &eventPublisher{id: id, entry: entry, callback: cb, intervalMs: float32(intervalMs)}
}

func (p *eventPublisher) OnStart() bool { return true }

func (p *eventPublisher) OnUpdate(elapsedMs float32) bool {
	if p.stopped.Load() {
		return false
	}
	if p.intervalMs <= 0 || p.callback == nil {
		return true
	}
	p.accumMs += elapsedMs
	if p.accumMs < p.intervalMs {
		return true
	}
	p.accumMs = 0

	events := p.entry.GetEvents()
	for _, e := range events {
		pub := toPublicEvent(e)
		p.callback(p.id, pub.IsFile, pub.Name, pub.OldName, pub.Action, pub.Error, pub.TimeMillisecondsUTC)
	}
	return true
}

func (p *eventPublisher) OnEnd()  {}
func (p *eventPublisher) OnStop() { p.stopped.Store(true) }

// statsPublisher is the per-watch periodic stats worker, SPEC_FULL.md §4.
type statsPublisher struct {
	id         int64
	entry      *watchEntry
	pool       *worker.Pool
	callback   StatsCallback
	intervalMs float32
	accumMs    float32
	stopped    atomic.Bool
}

func newStatsPublisher(id int64, entry *watchEntry, pool *worker.Pool, cb StatsCallback, intervalMs int) *statsPublisher {
	return &statsPublisher{id: id, entry: entry, pool: pool, callback: cb, intervalMs: float32(intervalMs)}
}

func (p *statsPublisher) OnStart() bool { return true }

func (p *statsPublisher) OnUpdate(elapsedMs float32) bool {
	if p.stopped.Load() {
		return false
	}
	if p.intervalMs <= 0 || p.callback == nil {
		return true
	}
	p.accumMs += elapsedMs
	if p.accumMs < p.intervalMs {
		return true
	}
	p.accumMs = 0

	running, pending := p.pool.Stats()
	collected, agedOut := p.entry.w.Counts()
	p.callback(p.id, Stats{
		EventsCollected: collected,
		EventsAgedOut:   agedOut,
		WorkersRunning:  running,
		WorkersPending:  pending,
	})
	return true
}

func (p *statsPublisher) OnEnd()  {}
func (p *statsPublisher) OnStop() { p.stopped.Store(true) }
