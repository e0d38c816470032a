//go:build windows

package ntchange

import (
	"path/filepath"
	"sync"

	"github.com/watchkit/dirwatcher/internal/collector"
	"github.com/watchkit/dirwatcher/internal/werrors"
)

// rootRecycleWatch is the secondary, non-recursive directory-name stream
// held by a Files-filter Stream as a fail-safe: the Files notify-filter
// never reports directory-name changes, so deletion of the watched root
// itself would otherwise be invisible. Grounded on spec §4.3's "Root
// recycle" paragraph and
// myoddweb.directorywatcher.win/monitors/MonitorReadDirectoryChangesCommon.cpp's
// parent-folder watch.
type rootRecycleWatch struct {
	root       string
	owner      *ntStream
	rootLeaf   string
	underlying *ntStream

	mu      sync.Mutex
	stopped bool
}

func newRootRecycleWatch(root string, owner *ntStream) *rootRecycleWatch {
	return &rootRecycleWatch{
		root:     root,
		owner:    owner,
		rootLeaf: filepath.Base(filepath.Clean(root)),
	}
}

// recycleSink adapts the generic Sink interface to watch only for the
// watched root's own removal, discarding everything else: this secondary
// stream exists purely as a fail-safe trigger, not a source of delivered
// events.
type recycleSink struct {
	watch *rootRecycleWatch
}

func (rs *recycleSink) AddEvent(action collector.Action, name string, isFile bool) {
	if action != collector.Removed {
		return
	}
	if filepath.Base(filepath.Clean(name)) != rs.watch.rootLeaf {
		return
	}
	rs.watch.trigger()
}

func (rs *recycleSink) AddRenameEvent(newName, oldName string, isFile bool) {}
func (rs *recycleSink) AddError(code werrors.Code)                          {}

func (w *rootRecycleWatch) start() {
	parent := filepath.Dir(filepath.Clean(w.root))
	w.underlying = &ntStream{opts: Options{
		Root:      parent,
		Recursive: false,
		Filter:    DirectoriesFilter,
		Sink:      &recycleSink{watch: w},
	}}
	// Best-effort: if the parent can't be watched (e.g. root is a volume
	// root with no parent), the fail-safe simply does not trigger; the
	// primary stream still works for every change except deletion of its
	// own root, which matches spec §4.3's framing of this as a fail-safe,
	// not a correctness requirement of the primary stream.
	_ = w.underlying.start()
}

// trigger recycles the owning primary stream: cancels its in-flight read so
// the run loop fails over to the Aborted/reopen path.
func (w *rootRecycleWatch) trigger() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	// Cancel the primary's in-flight read without tearing it down: the
	// run loop observes ERROR_OPERATION_ABORTED and takes the normal
	// Aborted/reopen-after-5000ms path (spec §4.3/§7), so recycling reuses
	// the same retry machinery a genuine handle invalidation would.
	w.owner.cancelForRecycle()
}

func (w *rootRecycleWatch) stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	if w.underlying != nil {
		w.underlying.stop()
	}
}
