// Package registry implements the process-wide id -> Monitor table (C9),
// grounded on myoddweb.directorywatcher.win/utils/MonitorsManager.cpp.
package registry

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/google/uuid"

	"github.com/watchkit/dirwatcher/internal/wlog"
)

// Entry is anything the Registry can track by id: a Monitor or
// Multi-Monitor in this module's terms.
type Entry interface {
	Stop()
}

// Registry is the lazily-initialized, process-wide id -> Entry table.
// Ids are random positive 63-bit integers, re-rolled on collision.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]Entry
	// tags carries a uuid correlation tag per id for debug log lines only;
	// it is never part of the public contract (spec §6's id stays the
	// sole public handle).
	tags map[int64]uuid.UUID
}

var (
	instMu   sync.Mutex
	instance *Registry
)

// Instance returns the single process-wide Registry, creating it on first
// use. The lazy init takes one mutex on every call, in place of
// MonitorsManager::Instance's double-checked locking.
func Instance() *Registry {
	instMu.Lock()
	defer instMu.Unlock()
	if instance == nil {
		instance = &Registry{
			entries: make(map[int64]Entry),
			tags:    make(map[int64]uuid.UUID),
		}
	}
	return instance
}

// reset tears down the process-wide instance. Exposed for tests only; the
// real lifecycle keeps the container alive and empty rather than tearing
// it down, per SPEC_FULL.md §1.3 / spec §9's design note on global state.
func reset() {
	instMu.Lock()
	instance = nil
	instMu.Unlock()
}

// randomID draws a positive 63-bit random integer.
func randomID() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failure is effectively unrecoverable entropy
		// starvation; fall back to a fixed non-zero value rather than
		// panicking the process (spec §7: never panic).
		return 1
	}
	id := int64(binary.BigEndian.Uint64(b[:]) &^ (1 << 63))
	if id == 0 {
		id = 1
	}
	return id
}

// Register allocates a fresh id for entry and stores it, re-rolling on
// collision.
func (r *Registry) Register(entry Entry) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id int64
	for {
		id = randomID()
		if _, taken := r.entries[id]; !taken {
			break
		}
	}
	r.entries[id] = entry
	r.tags[id] = uuid.New()
	wlog.Debugf("registry: registered id=%d tag=%s", id, r.tags[id])
	return id
}

// Stop stops and removes the entry for id. Returns false for an unknown
// id, per spec §8's idempotence property.
func (r *Registry) Stop(id int64) bool {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
		delete(r.tags, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	entry.Stop()
	wlog.Debugf("registry: stopped id=%d", id)
	return true
}

// Get returns the entry for id, if any.
func (r *Registry) Get(id int64) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

// Len returns the number of registered entries. Useful for tests asserting
// empty-after-stop behavior.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
