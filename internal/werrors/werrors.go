// Package werrors defines the closed error taxonomy carried on event-stream
// errors (never exceptions) and the wrapping helpers used at OS boundaries.
package werrors

import "fmt"

// Code is one of the event-stream error classes a watch can surface.
type Code int

const (
	// None is the success marker; it is never attached to a delivered event.
	None Code = iota
	// General covers unspecified runtime failure.
	General
	// Memory covers allocation failure during buffer clone or event construction.
	Memory
	// Overflow covers a kernel notification queue overflow.
	Overflow
	// Aborted covers monitoring torn down by the OS (handle invalidated).
	Aborted
	// CannotStart covers initial setup failure (bad path, permission, handle exhaustion).
	CannotStart
	// Access covers failure to open the directory for monitoring.
	Access
	// NoFileData covers a rename event that arrived with neither old nor new name.
	NoFileData
)

func (c Code) String() string {
	switch c {
	case None:
		return "None"
	case General:
		return "General"
	case Memory:
		return "Memory"
	case Overflow:
		return "Overflow"
	case Aborted:
		return "Aborted"
	case CannotStart:
		return "CannotStart"
	case Access:
		return "Access"
	case NoFileData:
		return "NoFileData"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Wrapped pairs a taxonomy Code with the underlying cause, for logging at
// the point of occurrence. The Code is what travels on the Event; the error
// is what goes to the log.
type Wrapped struct {
	Code  Code
	Cause error
}

func (w *Wrapped) Error() string {
	if w.Cause == nil {
		return w.Code.String()
	}
	return fmt.Sprintf("%s: %v", w.Code, w.Cause)
}

func (w *Wrapped) Unwrap() error { return w.Cause }

// Wrap attaches a taxonomy Code to a lower-level cause, following the
// windows.go pattern of os.NewSyscallError at every OS-boundary failure.
func Wrap(code Code, op string, cause error) *Wrapped {
	if op == "" {
		return &Wrapped{Code: code, Cause: cause}
	}
	return &Wrapped{Code: code, Cause: fmt.Errorf("%s: %w", op, cause)}
}
