package collector

import "github.com/watchkit/dirwatcher/internal/werrors"

// Action is the kind of change an Event records.
type Action int

const (
	Unknown Action = iota
	Added
	Removed
	Touched
	Renamed
)

func (a Action) String() string {
	switch a {
	case Added:
		return "Added"
	case Removed:
		return "Removed"
	case Touched:
		return "Touched"
	case Renamed:
		return "Renamed"
	default:
		return "Unknown"
	}
}

// Event is an immutable record of a single change, C1 of the design.
type Event struct {
	TimeMillisecondsUTC int64
	Action              Action
	Error               werrors.Code
	Name                string
	OldName             string
	IsFile              bool
}
