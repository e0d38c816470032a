// Package collector implements the time-ordered, de-duplicating,
// rename-stitching, aging event buffer attached to each Monitor (spec §4.2,
// component C2). It is grounded on
// myoddweb.directorywatcher.win/utils/Collector.cpp from original_source.
package collector

import (
	"sync"

	"github.com/watchkit/dirwatcher/internal/pathutil"
	"github.com/watchkit/dirwatcher/internal/waitutil"
	"github.com/watchkit/dirwatcher/internal/werrors"
)

// DefaultMaxAgeMillis is the default event lifetime before a drain ages it
// out, per spec §3.
const DefaultMaxAgeMillis = 5000

// Collector is a thread-safe, append-ordered buffer of Events for one
// watch. The zero value is not usable; use New.
type Collector struct {
	mu sync.Mutex

	maxAgeMillis int64
	events       []Event
	cleanupAt    int64 // 0 means "not armed"

	// collected and agedOut are lifetime counters surfaced through Counts
	// for the stats callback (SPEC_FULL.md §4); they never reset on Drain.
	collected int64
	agedOut   int64
}

// New creates a Collector with the default max event age.
func New() *Collector {
	return NewWithMaxAge(DefaultMaxAgeMillis)
}

// NewWithMaxAge creates a Collector with an explicit max event age, mostly
// useful for tests that want a tight aging window.
func NewWithMaxAge(maxAgeMillis int64) *Collector {
	return &Collector{maxAgeMillis: maxAgeMillis}
}

// Add records a non-rename event. root and name are combined with
// pathutil.Join exactly as the Collector::Add original does via
// Io::Combine; name may be empty for a pure error event.
func (c *Collector) Add(action Action, root, name string, isFile bool, errCode werrors.Code) {
	combined := ""
	if name != "" {
		combined = pathutil.Join(root, name)
	}
	c.addEvent(Event{
		Action:              action,
		Error:               errCode,
		Name:                combined,
		IsFile:              isFile,
		TimeMillisecondsUTC: waitutil.NowUTCMillis(),
	})
}

// AddRename records a rename event: newName and oldName are each combined
// with root independently.
func (c *Collector) AddRename(root, newName, oldName string, isFile bool, errCode werrors.Code) {
	var combinedNew, combinedOld string
	if newName != "" {
		combinedNew = pathutil.Join(root, newName)
	}
	if oldName != "" {
		combinedOld = pathutil.Join(root, oldName)
	}
	c.addEvent(Event{
		Action:              Renamed,
		Error:               errCode,
		Name:                combinedNew,
		OldName:             combinedOld,
		IsFile:              isFile,
		TimeMillisecondsUTC: waitutil.NowUTCMillis(),
	})
}

// AddError records a pure error event: empty names, action Unknown.
func (c *Collector) AddError(errCode werrors.Code) {
	c.addEvent(Event{
		Action:              Unknown,
		Error:               errCode,
		TimeMillisecondsUTC: waitutil.NowUTCMillis(),
	})
}

func (c *Collector) addEvent(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.collected++
	if c.cleanupAt == 0 {
		c.cleanupAt = e.TimeMillisecondsUTC + c.maxAgeMillis
	}
	c.mu.Unlock()

	c.cleanupIfDue()
}

// cleanupIfDue erases events older than maxAgeMillis once the armed
// deadline has passed, then disarms it, mirroring
// Collector::CleanupEvents's outside-lock-then-inside-lock double check.
func (c *Collector) cleanupIfDue() {
	now := waitutil.NowUTCMillis()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cleanupAt == 0 || now < c.cleanupAt {
		return
	}
	c.cleanupAt = 0

	oldest := now - c.maxAgeMillis
	cut := 0
	for cut < len(c.events) && c.events[cut].TimeMillisecondsUTC <= oldest {
		cut++
	}
	if cut > 0 {
		c.agedOut += int64(cut)
		c.events = append([]Event(nil), c.events[cut:]...)
	}
}

// Counts returns the lifetime collected and aged-out-without-delivery
// event counts, for the stats callback.
func (c *Collector) Counts() (collected, agedOut int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collected, c.agedOut
}

// Drain atomically copies out all recorded events and clears internal
// state, applying de-duplication and rename-pair stitching, per spec
// §4.2's drain policy.
func (c *Collector) Drain() []Event {
	clone := c.cloneAndClear()

	out := make([]Event, 0, len(clone))
	for i := len(clone) - 1; i >= 0; i-- {
		e := clone[i]
		if isOlderDuplicate(out, e) {
			continue
		}
		out = append([]Event{e}, out...)
	}

	validateRenames(out)
	return out
}

func (c *Collector) cloneAndClear() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	clone := c.events
	c.events = nil
	c.cleanupAt = 0
	return clone
}

// isOlderDuplicate reports whether an event with the same (action, isFile,
// name) triple is already present in out (the newer events seen so far).
func isOlderDuplicate(out []Event, e Event) bool {
	for _, existing := range out {
		if existing.IsFile != e.IsFile {
			continue
		}
		if existing.Action != e.Action {
			continue
		}
		if existing.Name == e.Name {
			return true
		}
	}
	return false
}

// validateRenames reconciles Renamed events that ended up with only one
// half of the pair present.
func validateRenames(events []Event) {
	for i := range events {
		e := &events[i]
		if e.Action != Renamed {
			continue
		}

		switch {
		case e.OldName == "" && e.Name != "":
			e.Action = Added
		case e.Name == "" && e.OldName != "":
			e.Name, e.OldName = e.OldName, ""
			e.Action = Removed
		case e.Name == "" && e.OldName == "":
			e.Action = Unknown
			e.Error = werrors.NoFileData
		}
	}
}
