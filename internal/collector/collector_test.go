package collector

import (
	"fmt"
	"strings"
	"testing"

	"github.com/watchkit/dirwatcher/internal/werrors"
	"github.com/watchkit/dirwatcher/internal/ztest"
)

func dump(events []Event) string {
	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "%s %s %s\n", e.Action, e.Name, e.OldName)
	}
	return b.String()
}

func TestDrainDedupKeepsNewest(t *testing.T) {
	c := New()
	c.Add(Touched, `C:\root`, "a.txt", true, werrors.None)
	c.Add(Touched, `C:\root`, "a.txt", true, werrors.None)
	c.Add(Touched, `C:\root`, "a.txt", true, werrors.None)

	got := c.Drain()
	if len(got) != 1 {
		t.Fatalf("want 1 event after dedup, got %d: %v", len(got), got)
	}

	want := "Touched C:\\root\\a.txt \n"
	if d := ztest.Diff(dump(got), want); d != "" {
		t.Error(d)
	}
}

func TestDrainKeepsDistinctNames(t *testing.T) {
	c := New()
	c.Add(Added, `C:\root`, "a.txt", true, werrors.None)
	c.Add(Added, `C:\root`, "b.txt", true, werrors.None)

	got := c.Drain()
	if len(got) != 2 {
		t.Fatalf("want 2 events, got %d", len(got))
	}
}

func TestDrainIsEmptyAfterDrain(t *testing.T) {
	c := New()
	c.Add(Added, `C:\root`, "a.txt", true, werrors.None)
	_ = c.Drain()

	if got := c.Drain(); len(got) != 0 {
		t.Fatalf("want empty second drain, got %v", got)
	}
}

func TestRenamePairStitchedNormally(t *testing.T) {
	c := New()
	c.AddRename(`C:\root`, "new.txt", "old.txt", true, werrors.None)

	got := c.Drain()
	if len(got) != 1 {
		t.Fatalf("want 1 event, got %d", len(got))
	}
	if got[0].Action != Renamed {
		t.Errorf("want Renamed, got %v", got[0].Action)
	}
	if got[0].Name != `C:\root\new.txt` || got[0].OldName != `C:\root\old.txt` {
		t.Errorf("unexpected names: %+v", got[0])
	}
}

func TestRenameDanglingNewHalfBecomesAdded(t *testing.T) {
	c := New()
	c.AddRename(`C:\root`, "new.txt", "", true, werrors.None)

	got := c.Drain()
	if len(got) != 1 || got[0].Action != Added {
		t.Fatalf("want single Added event, got %v", got)
	}
}

func TestRenameDanglingOldHalfBecomesRemoved(t *testing.T) {
	c := New()
	c.AddRename(`C:\root`, "", "old.txt", true, werrors.None)

	got := c.Drain()
	if len(got) != 1 || got[0].Action != Removed {
		t.Fatalf("want single Removed event, got %v", got)
	}
	if got[0].Name != `C:\root\old.txt` {
		t.Errorf("want removed name to carry the old path, got %q", got[0].Name)
	}
}

func TestCleanupAgesOutOldEvents(t *testing.T) {
	c := NewWithMaxAge(0)
	c.Add(Added, `C:\root`, "a.txt", true, werrors.None)
	// With max age 0 the deadline each Add arms is already due, so each
	// Add's own cleanupIfDue ages out what it finds.
	c.Add(Added, `C:\root`, "b.txt", true, werrors.None)

	collected, agedOut := c.Counts()
	if collected != 2 {
		t.Fatalf("want 2 collected, got %d", collected)
	}
	if agedOut == 0 {
		t.Errorf("want at least one event aged out with max age 0, got 0")
	}
}

func TestAddErrorHasNoName(t *testing.T) {
	c := New()
	c.AddError(werrors.Overflow)

	got := c.Drain()
	if len(got) != 1 {
		t.Fatalf("want 1 event, got %d", len(got))
	}
	if got[0].Name != "" || got[0].Action != Unknown || got[0].Error != werrors.Overflow {
		t.Errorf("unexpected error event: %+v", got[0])
	}
}
