// Package ntchange implements the Change-Buffer (C3) and Stream (C4)
// components: the asynchronous change-notification engine that reads
// kernel-level directory change records into user buffers and parses them
// into typed events. The Windows engine is grounded on fsnotify/fsnotify's
// windows.go (ReadDirectoryChangesW over an I/O completion port); the
// notify-filter split (Files vs Directories) and root-recycle fail-safe
// are grounded on original_source's
// myoddweb.directorywatcher.win/monitors/win/{Files,Directories,Common}.cpp.
package ntchange

import (
	"github.com/watchkit/dirwatcher/internal/collector"
	"github.com/watchkit/dirwatcher/internal/werrors"
)

// Filter selects which filesystem-change classes the kernel reports for a
// Stream, C4 of the design.
type Filter int

const (
	// FilesFilter watches file-name, attribute, size, last-write,
	// last-access, creation, and security changes.
	FilesFilter Filter = iota
	// DirectoriesFilter watches directory-name changes only (create/delete
	// of a child directory).
	DirectoriesFilter
)

func (f Filter) String() string {
	if f == DirectoriesFilter {
		return "Directories"
	}
	return "Files"
}

// DefaultBufferSize is the default receive buffer size; MaxBufferSize is
// the kernel-imposed ceiling (spec §3/§4.3).
const (
	DefaultBufferSize = 64 * 1024
	MaxBufferSize     = 64 * 1024
)

// Sink receives parsed events from a Stream. Monitor implements this.
type Sink interface {
	AddEvent(action collector.Action, name string, isFile bool)
	AddRenameEvent(newName, oldName string, isFile bool)
	AddError(code werrors.Code)
}

// Stream is one kernel async read cycle for a specific notify-filter. The
// concrete engine lives in ntchange_windows.go (build-tagged) and
// ntchange_unsupported.go; both implement this same exported surface so
// Monitor never branches on OS.
type Stream struct {
	impl streamImpl
}

// streamImpl is the OS-specific engine surface.
type streamImpl interface {
	start() error
	stop()
}

// Options configures a Stream at construction, C3/C4.
type Options struct {
	// Root is the absolute directory path being watched.
	Root string
	// Recursive asks the kernel to report changes in subdirectories too.
	Recursive bool
	// Filter selects Files or Directories notify-filter.
	Filter Filter
	// BufferSize is the receive buffer size in bytes; 0 selects
	// DefaultBufferSize. Values above MaxBufferSize are clamped to it.
	BufferSize uint32
	// Sink receives parsed events and errors.
	Sink Sink
}

// NewStream constructs a Stream. It does not start reading until Start is
// called.
func NewStream(opts Options) *Stream {
	if opts.BufferSize == 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.BufferSize > MaxBufferSize {
		opts.BufferSize = MaxBufferSize
	}
	return &Stream{impl: newStreamImpl(opts)}
}

// Start opens the watched directory and issues the first asynchronous
// read. On failure the Stream stays unstarted and the returned error carries
// a werrors code (Access when the directory cannot be opened); Monitor then
// records a CannotStart error in its Collector.
func (s *Stream) Start() error {
	return s.impl.start()
}

// Stop stops the stream: cancels any in-flight read, closes the handle,
// frees the buffer. Idempotent.
func (s *Stream) Stop() {
	s.impl.stop()
}
