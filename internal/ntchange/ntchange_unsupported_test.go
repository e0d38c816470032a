//go:build !windows

package ntchange

import (
	"testing"

	"github.com/watchkit/dirwatcher/internal/collector"
	"github.com/watchkit/dirwatcher/internal/werrors"
)

type recordingSink struct {
	errors []werrors.Code
}

func (s *recordingSink) AddEvent(action collector.Action, name string, isFile bool) {}
func (s *recordingSink) AddRenameEvent(newName, oldName string, isFile bool)        {}
func (s *recordingSink) AddError(code werrors.Code) {
	s.errors = append(s.errors, code)
}

func TestStreamRefusesToStartWithoutNativeEngine(t *testing.T) {
	sink := &recordingSink{}
	s := NewStream(Options{Root: t.TempDir(), Filter: FilesFilter, Sink: sink})

	err := s.Start()
	if err == nil {
		t.Fatal("Start() = nil error, want CannotStart")
	}
	if len(sink.errors) != 1 || sink.errors[0] != werrors.CannotStart {
		t.Errorf("sink errors = %v, want [CannotStart]", sink.errors)
	}

	// Stop must be safe to call even though Start never armed anything.
	s.Stop()
}

func TestNewStreamClampsBufferSize(t *testing.T) {
	s := NewStream(Options{Root: ".", Filter: DirectoriesFilter, BufferSize: MaxBufferSize * 4})
	us, ok := s.impl.(*unsupportedStream)
	if !ok {
		t.Fatalf("impl is %T, want *unsupportedStream", s.impl)
	}
	if us.opts.BufferSize != MaxBufferSize {
		t.Errorf("BufferSize = %d, want clamped to %d", us.opts.BufferSize, MaxBufferSize)
	}
}

func TestFilterString(t *testing.T) {
	if FilesFilter.String() != "Files" {
		t.Errorf("FilesFilter.String() = %q", FilesFilter.String())
	}
	if DirectoriesFilter.String() != "Directories" {
		t.Errorf("DirectoriesFilter.String() = %q", DirectoriesFilter.String())
	}
}
