// Package monitor implements the Monitor (C5) and Multi-Monitor (C6)
// components: a single watch (one Files stream + one Directories stream
// feeding a Collector) and its decomposition into several Monitors for a
// large recursive request. Grounded on
// myoddweb.directorywatcher.win/monitors/{Monitor,MultipleWinMonitor}.cpp.
package monitor

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/watchkit/dirwatcher/internal/collector"
	"github.com/watchkit/dirwatcher/internal/ntchange"
	"github.com/watchkit/dirwatcher/internal/werrors"
)

// State is the Monitor/Multi-Monitor lifecycle state, spec §4.5/§4.6.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateStarted
	StateStopping
)

// Request is the subset of the public Request this package needs: a path
// and a recursion flag. The root dirwatcher package owns the full Request
// shape (callbacks, intervals); Monitor only needs these two fields to
// drive its streams.
type Request struct {
	Path      string
	Recursive bool
}

// Monitor owns one Files Stream and one Directories Stream that share a
// Collector, spec §4.5.
type Monitor struct {
	request Request

	mu          sync.Mutex
	state       State
	collector   *collector.Collector
	filesStream *ntchange.Stream
	dirStream   *ntchange.Stream
}

// New creates a Monitor in the Stopped state; call Start to begin
// watching.
func New(req Request) *Monitor {
	return &Monitor{
		request:   req,
		state:     StateStopped,
		collector: collector.New(),
	}
}

// Start creates and starts both streams. If either fails to start, a
// CannotStart error is recorded in the Collector and the Monitor is left
// Stopped (spec §4.5).
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.state != StateStopped {
		m.mu.Unlock()
		return nil
	}
	m.state = StateStarting
	m.mu.Unlock()

	filesStream := ntchange.NewStream(ntchange.Options{
		Root:      m.request.Path,
		Recursive: m.request.Recursive,
		Filter:    ntchange.FilesFilter,
		Sink:      m,
	})
	dirStream := ntchange.NewStream(ntchange.Options{
		Root:      m.request.Path,
		Recursive: m.request.Recursive,
		Filter:    ntchange.DirectoriesFilter,
		Sink:      m,
	})

	var startErr error
	if err := filesStream.Start(); err != nil {
		startErr = errors.Wrap(err, "unable to start files stream")
	} else if err := dirStream.Start(); err != nil {
		filesStream.Stop()
		startErr = errors.Wrap(err, "unable to start directories stream")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if startErr != nil {
		m.collector.AddError(werrors.CannotStart)
		m.state = StateStopped
		return startErr
	}
	m.filesStream = filesStream
	m.dirStream = dirStream
	m.state = StateStarted
	return nil
}

// Stop stops both streams, releasing kernel resources. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state == StateStopped || m.state == StateStopping {
		m.mu.Unlock()
		return
	}
	m.state = StateStopping
	files, dirs := m.filesStream, m.dirStream
	m.mu.Unlock()

	if files != nil {
		files.Stop()
	}
	if dirs != nil {
		dirs.Stop()
	}

	m.mu.Lock()
	m.state = StateStopped
	m.filesStream = nil
	m.dirStream = nil
	m.mu.Unlock()
}

// GetEvents drains the Collector, spec §4.5.
func (m *Monitor) GetEvents() []collector.Event {
	return m.collector.Drain()
}

// Counts returns the Collector's lifetime collected/aged-out counters.
func (m *Monitor) Counts() (collected, agedOut int64) {
	return m.collector.Counts()
}

// State reports the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AddEvent implements ntchange.Sink. name is relative to the watch root, as
// parsed from the kernel's FILE_NOTIFY_INFORMATION record; the Collector
// composes it with the Monitor's root path.
func (m *Monitor) AddEvent(action collector.Action, name string, isFile bool) {
	m.collector.Add(action, m.request.Path, name, isFile, werrors.None)
}

// AddRenameEvent implements ntchange.Sink.
func (m *Monitor) AddRenameEvent(newName, oldName string, isFile bool) {
	m.collector.AddRename(m.request.Path, newName, oldName, isFile, werrors.None)
}

// AddError implements ntchange.Sink.
func (m *Monitor) AddError(code werrors.Code) {
	m.collector.AddError(code)
}
