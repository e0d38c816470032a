//go:build !windows

package ntchange

import (
	"github.com/watchkit/dirwatcher/internal/werrors"
	"github.com/watchkit/dirwatcher/internal/wlog"
)

// unsupportedStream is the non-Windows engine. The platform lacks the
// async directory-change-notification primitive this system depends on
// (spec §6: "the binding must refuse start with an error"), so start
// always fails with CannotStart. See platform_unsupported.go for the
// capability-probe debug line this path logs before failing.
type unsupportedStream struct {
	opts Options
}

func newStreamImpl(opts Options) streamImpl {
	return &unsupportedStream{opts: opts}
}

func (s *unsupportedStream) start() error {
	explainUnsupported(s.opts.Root)
	if s.opts.Sink != nil {
		s.opts.Sink.AddError(werrors.CannotStart)
	}
	return werrors.Wrap(werrors.CannotStart, "ReadDirectoryChangesW",
		errUnsupportedPlatform)
}

func (s *unsupportedStream) stop() {}

var errUnsupportedPlatform = platformError{}

type platformError struct{}

func (platformError) Error() string {
	return "this platform has no supported async directory-change-notification primitive"
}

func init() {
	wlog.Debugf("ntchange: compiled without a native change-notification engine")
}
