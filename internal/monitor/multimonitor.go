package monitor

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/watchkit/dirwatcher/internal/collector"
	"github.com/watchkit/dirwatcher/internal/werrors"
	"github.com/watchkit/dirwatcher/internal/wlog"
)

// DefaultMaxDepth is the decomposition depth cap (spec §3, §9: "hard-coded
// to 2 with no documented rationale beyond 'thread-count'").
const DefaultMaxDepth = 2

// MultiMonitor decomposes a recursive watch into several Monitors when the
// root has subfolders, to bound per-watch thread/handle count (spec §4.6).
// Construction is only valid for recursive requests.
type MultiMonitor struct {
	request  Request
	maxDepth int

	mu       sync.Mutex
	state    State
	children []*Monitor
	// parents holds the non-recursive Monitors created at each
	// decomposition level; each one's Directories stream is what notices a
	// new top-level subtree appearing under its root after start (spec
	// §3's "non-recursive 'parent' watchers"). In this implementation
	// every decomposition level's non-recursive root Monitor already plays
	// this role, so parents is a view over the subset of children created
	// non-recursively rather than a separately-allocated watcher set — see
	// DESIGN.md for the reasoning.
	parents []*Monitor
}

// NewMulti decomposes req into a tree of Monitors and returns a
// MultiMonitor ready to Start. req.Recursive must be true.
func NewMulti(req Request) (*MultiMonitor, error) {
	if !req.Recursive {
		return nil, errors.New("multi-monitor decomposition requires a recursive request")
	}
	return NewMultiWithDepth(req, DefaultMaxDepth), nil
}

// NewMultiWithDepth is NewMulti with an explicit depth cap, exposed for
// tests that want to exercise decomposition without deep directory trees.
func NewMultiWithDepth(req Request, maxDepth int) *MultiMonitor {
	mm := &MultiMonitor{request: req, maxDepth: maxDepth, state: StateStopped}
	mm.decompose()
	return mm
}

type monitorSpec struct {
	path      string
	recursive bool
}

// decompose walks the directory tree depth-first, producing one
// non-recursive Monitor per intermediate level plus one recursive child
// Monitor per subfolder, capped at maxDepth, per spec §3's decomposition
// rule.
func (mm *MultiMonitor) decompose() {
	specs := decomposePath(mm.request.Path, 0, mm.maxDepth)
	for _, sp := range specs {
		mon := New(Request{Path: sp.path, Recursive: sp.recursive})
		mm.children = append(mm.children, mon)
		if !sp.recursive {
			mm.parents = append(mm.parents, mon)
		}
	}
}

func decomposePath(path string, depth, maxDepth int) []monitorSpec {
	if depth >= maxDepth {
		return []monitorSpec{{path: path, recursive: true}}
	}

	subdirs, err := listSubdirs(path)
	if err != nil || len(subdirs) == 0 {
		return []monitorSpec{{path: path, recursive: true}}
	}

	specs := []monitorSpec{{path: path, recursive: false}}
	for _, sd := range subdirs {
		specs = append(specs, decomposePath(sd, depth+1, maxDepth)...)
	}
	return specs
}

func listSubdirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(path, e.Name()))
		}
	}
	return dirs, nil
}

// Start starts every child Monitor. On partial failure it stops the children
// that did start and records a CannotStart error in the first of them (its
// Collector stays readable, so the error is visible to GetEvents), per spec
// §4.6.
func (mm *MultiMonitor) Start() error {
	mm.mu.Lock()
	if mm.state != StateStopped {
		mm.mu.Unlock()
		return nil
	}
	mm.state = StateStarting
	children := append([]*Monitor(nil), mm.children...)
	mm.mu.Unlock()

	var firstErr error
	started := make([]*Monitor, 0, len(children))
	for _, child := range children {
		if err := child.Start(); err != nil {
			wlog.Warningf("multi-monitor: child %q failed to start: %v", child.request.Path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		started = append(started, child)
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()
	if firstErr != nil {
		for _, child := range started {
			child.Stop()
		}
		if len(started) > 0 {
			started[0].collector.AddError(werrors.CannotStart)
		}
		mm.state = StateStopped
		return firstErr
	}
	mm.state = StateStarted
	return nil
}

// Stop stops every child Monitor. Idempotent.
func (mm *MultiMonitor) Stop() {
	mm.mu.Lock()
	if mm.state == StateStopped || mm.state == StateStopping {
		mm.mu.Unlock()
		return
	}
	mm.state = StateStopping
	children := append([]*Monitor(nil), mm.children...)
	mm.mu.Unlock()

	for _, child := range children {
		child.Stop()
	}

	mm.mu.Lock()
	mm.state = StateStopped
	mm.mu.Unlock()
}

// GetEvents concatenates every child's drained events. The order among
// siblings is unspecified, per spec §4.6.
func (mm *MultiMonitor) GetEvents() []collector.Event {
	mm.mu.Lock()
	children := append([]*Monitor(nil), mm.children...)
	mm.mu.Unlock()

	var out []collector.Event
	for _, child := range children {
		out = append(out, child.GetEvents()...)
	}
	return out
}

// State reports the current lifecycle state.
func (mm *MultiMonitor) State() State {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.state
}

// Counts sums every child's lifetime collected/aged-out counters.
func (mm *MultiMonitor) Counts() (collected, agedOut int64) {
	mm.mu.Lock()
	children := append([]*Monitor(nil), mm.children...)
	mm.mu.Unlock()

	for _, child := range children {
		c, a := child.Counts()
		collected += c
		agedOut += a
	}
	return
}
