//go:build windows

package ntchange

import (
	"path/filepath"
	"reflect"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/windows"

	"github.com/watchkit/dirwatcher/internal/collector"
	"github.com/watchkit/dirwatcher/internal/werrors"
	"github.com/watchkit/dirwatcher/internal/wlog"
)

// reopenRetryInterval is how long the engine waits before re-opening a
// handle that was invalidated (Aborted) or recycled (root deletion),
// per spec §4.3/§7.
const reopenRetryInterval = 5 * time.Second

// notifyFilterMask converts a Filter into the FILE_NOTIFY_CHANGE_* mask
// the kernel expects, grounded on windows.go's toWindowsFlags.
func notifyFilterMask(f Filter) uint32 {
	if f == DirectoriesFilter {
		return windows.FILE_NOTIFY_CHANGE_DIR_NAME
	}
	return windows.FILE_NOTIFY_CHANGE_FILE_NAME |
		windows.FILE_NOTIFY_CHANGE_ATTRIBUTES |
		windows.FILE_NOTIFY_CHANGE_SIZE |
		windows.FILE_NOTIFY_CHANGE_LAST_WRITE |
		windows.FILE_NOTIFY_CHANGE_LAST_ACCESS |
		windows.FILE_NOTIFY_CHANGE_CREATION |
		windows.FILE_NOTIFY_CHANGE_SECURITY
}

// ntStream is the Windows engine: one ChangeBuffer (handle + buffer +
// overlapped) plus the Stream-level notify-filter and classification
// logic, and — when watching Files at the root — a secondary,
// non-recursive root-recycle watch.
type ntStream struct {
	opts Options

	mu      sync.Mutex
	handle  windows.Handle
	port    windows.Handle
	ov      *windows.Overlapped
	buf     []byte
	started bool
	closing bool

	stopCh chan struct{}
	doneCh chan struct{}

	recycle *rootRecycleWatch
}

func newStreamImpl(opts Options) streamImpl {
	return &ntStream{opts: opts}
}

func (s *ntStream) start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.openAndArm(); err != nil {
		close(s.doneCh)
		return err
	}

	if s.opts.Filter == FilesFilter && s.recycle == nil {
		s.recycle = newRootRecycleWatch(s.opts.Root, s)
		s.recycle.start()
	}

	go s.run()
	return nil
}

func (s *ntStream) openAndArm() error {
	pathPtr, err := windows.UTF16PtrFromString(s.opts.Root)
	if err != nil {
		return werrors.Wrap(werrors.Access, "UTF16PtrFromString", err)
	}

	handle, err := windows.CreateFile(pathPtr,
		windows.FILE_LIST_DIRECTORY,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OVERLAPPED, 0)
	if err != nil {
		return werrors.Wrap(werrors.Access, "CreateFile", err)
	}

	port, err := windows.CreateIoCompletionPort(handle, 0, 0, 0)
	if err != nil {
		windows.CloseHandle(handle)
		return werrors.Wrap(werrors.Access, "CreateIoCompletionPort", err)
	}

	s.mu.Lock()
	s.handle = handle
	s.port = port
	s.ov = &windows.Overlapped{}
	s.buf = make([]byte, s.opts.BufferSize)
	s.mu.Unlock()

	if err := s.issueRead(); err != nil {
		windows.CloseHandle(handle)
		return werrors.Wrap(werrors.Access, "ReadDirectoryChanges", err)
	}
	wlog.Debugf("ntchange: opened %s stream on %q with a %s buffer",
		s.opts.Filter, s.opts.Root, humanize.Bytes(uint64(s.opts.BufferSize)))
	return nil
}

// issueRead arms the next asynchronous read. Must be called with no lock
// held by the caller other than what's needed to read s.handle/buf/ov.
func (s *ntStream) issueRead() error {
	s.mu.Lock()
	handle, buf, ov := s.handle, s.buf, s.ov
	s.mu.Unlock()

	return windows.ReadDirectoryChanges(handle, &buf[0], uint32(len(buf)),
		s.opts.Recursive, notifyFilterMask(s.opts.Filter), nil, ov, 0)
}

// run is the completion-port drain loop: the entry point to the stream's
// alertable-wait equivalent (spec §9 design notes).
func (s *ntStream) run() {
	defer close(s.doneCh)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		s.mu.Lock()
		port := s.port
		s.mu.Unlock()

		var n uint32
		var key uintptr
		var ov *windows.Overlapped
		err := windows.GetQueuedCompletionStatus(port, &n, &key, &ov, 500)

		select {
		case <-s.stopCh:
			return
		default:
		}

		if err != nil {
			if err == windows.WAIT_TIMEOUT { //nolint:staticcheck // sentinel compare mirrors windows.go style
				continue
			}
			if err == windows.ERROR_OPERATION_ABORTED {
				s.opts.Sink.AddError(werrors.Aborted)
				s.reopenAfterDelay()
				return
			}
			wlog.Warningf("ntchange: GetQueuedCompletionStatus failed: %v", err)
			s.opts.Sink.AddError(werrors.General)
			continue
		}

		if n == 0 {
			// Kernel notification queue overflow: reissue immediately, no
			// backoff (spec §4.3/§7).
			s.opts.Sink.AddError(werrors.Overflow)
			if err := s.issueRead(); err != nil {
				s.opts.Sink.AddError(werrors.General)
				return
			}
			continue
		}

		wlog.Verbosef("ntchange: %s stream on %q received %s of change records",
			s.opts.Filter, s.opts.Root, humanize.Bytes(uint64(n)))

		s.mu.Lock()
		clone := make([]byte, n)
		copy(clone, s.buf[:n])
		s.mu.Unlock()

		// Reissue the read before parsing, to minimize the overflow
		// window (spec §4.3 contract #3).
		if err := s.issueRead(); err != nil {
			s.opts.Sink.AddError(werrors.General)
			return
		}

		s.parse(clone)
	}
}

// cancelForRecycle cancels the in-flight read so the run loop observes
// ERROR_OPERATION_ABORTED and takes the Aborted/reopen path, without
// marking the stream as closing.
func (s *ntStream) cancelForRecycle() {
	s.mu.Lock()
	handle := s.handle
	closing := s.closing
	s.mu.Unlock()
	if closing {
		return
	}
	windows.CancelIo(handle)
}

func (s *ntStream) reopenAfterDelay() {
	select {
	case <-s.stopCh:
		return
	case <-time.After(reopenRetryInterval):
	}
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()
	if err := s.start(); err != nil {
		wlog.Warningf("ntchange: reopen after abort failed: %v", err)
	}
}

func (s *ntStream) parse(buf []byte) {
	offset := uint32(0)

	// FILE_ACTION_RENAMED_OLD_NAME is always immediately followed (in the
	// same batch) by FILE_ACTION_RENAMED_NEW_NAME when both halves exist,
	// so a single "current rename" slot suffices, mirroring
	// windows.go's watch.rename field.
	var currentOld string
	haveOld := false

	for {
		if int(offset) >= len(buf) {
			break
		}
		raw := (*windows.FileNotifyInformation)(unsafe.Pointer(&buf[offset]))

		nameLen := int(raw.FileNameLength / 2)
		var units []uint16
		sh := (*reflect.SliceHeader)(unsafe.Pointer(&units))
		sh.Data = uintptr(unsafe.Pointer(&raw.FileName))
		sh.Len = nameLen
		sh.Cap = nameLen
		name := windows.UTF16ToString(units)

		switch raw.Action {
		case windows.FILE_ACTION_ADDED:
			s.emit(collector.Added, name, "")
		case windows.FILE_ACTION_REMOVED:
			s.emit(collector.Removed, name, "")
		case windows.FILE_ACTION_MODIFIED:
			s.emit(collector.Touched, name, "")
		case windows.FILE_ACTION_RENAMED_OLD_NAME:
			if haveOld {
				// A dangling old half with no pairing new half: emit as
				// Removed per spec §4.3's half-pair-at-walk-end rule.
				s.emit(collector.Removed, currentOld, "")
			}
			currentOld = name
			haveOld = true
		case windows.FILE_ACTION_RENAMED_NEW_NAME:
			if haveOld {
				s.emitRename(name, currentOld)
				haveOld = false
				currentOld = ""
			} else {
				s.emit(collector.Added, name, "")
			}
		}

		if raw.NextEntryOffset == 0 {
			break
		}
		offset += raw.NextEntryOffset
	}

	if haveOld {
		s.emit(collector.Removed, currentOld, "")
	}
}

func (s *ntStream) emit(action collector.Action, name, oldName string) {
	isFile := s.classify(action, name)
	s.opts.Sink.AddEvent(action, name, isFile)
}

func (s *ntStream) emitRename(newName, oldName string) {
	isFile := s.classify(collector.Renamed, newName)
	s.opts.Sink.AddRenameEvent(newName, oldName, isFile)
}

// classify determines is_file for a parsed record, per spec §4.3 point 4:
// Files-stream Added/Renamed/Removed are always files; Touched/Unknown
// probe the filesystem attribute bit. Directories-stream is always false.
func (s *ntStream) classify(action collector.Action, name string) bool {
	if s.opts.Filter == DirectoriesFilter {
		return false
	}
	switch action {
	case collector.Added, collector.Renamed, collector.Removed:
		return true
	default:
		full := filepath.Join(s.opts.Root, name)
		attrs, err := windows.GetFileAttributes(windowsPtr(full))
		if err != nil {
			// Object already gone by the time we probe it; treat as a
			// file, the common case for a Touched/last-write event.
			return true
		}
		return attrs&windows.FILE_ATTRIBUTE_DIRECTORY == 0
	}
}

func windowsPtr(path string) *uint16 {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil
	}
	return p
}

func (s *ntStream) stop() {
	s.mu.Lock()
	if s.closing || !s.started {
		s.mu.Unlock()
		return
	}
	s.closing = true
	handle := s.handle
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	close(stopCh)
	windows.CancelIo(handle)
	windows.CloseHandle(handle)

	if s.recycle != nil {
		s.recycle.stop()
	}

	<-doneCh
}
