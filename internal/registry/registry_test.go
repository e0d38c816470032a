package registry

import (
	"sync"
	"testing"
)

type fakeEntry struct {
	stops int
}

func (e *fakeEntry) Stop() { e.stops++ }

func TestRegisterAssignsUniqueIDs(t *testing.T) {
	defer reset()
	r := Instance()

	a := r.Register(&fakeEntry{})
	b := r.Register(&fakeEntry{})
	if a == b {
		t.Fatalf("Register returned the same id twice: %d", a)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestStopRemovesAndCallsEntry(t *testing.T) {
	defer reset()
	r := Instance()

	e := &fakeEntry{}
	id := r.Register(e)

	if ok := r.Stop(id); !ok {
		t.Fatalf("Stop(id) = false, want true")
	}
	if e.stops != 1 {
		t.Errorf("entry.Stop called %d times, want 1", e.stops)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after stop, want 0", r.Len())
	}
}

func TestStopUnknownIDIsFalse(t *testing.T) {
	defer reset()
	r := Instance()
	if ok := r.Stop(123456); ok {
		t.Errorf("Stop(unknown) = true, want false")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	defer reset()
	r := Instance()
	id := r.Register(&fakeEntry{})

	if ok := r.Stop(id); !ok {
		t.Fatalf("first Stop = false")
	}
	if ok := r.Stop(id); ok {
		t.Errorf("second Stop = true, want false (already removed)")
	}
}

func TestInstanceIsASingleton(t *testing.T) {
	defer reset()
	if Instance() != Instance() {
		t.Errorf("Instance() returned different Registrys")
	}
}

func TestRegisterConcurrentUse(t *testing.T) {
	defer reset()
	r := Instance()

	var wg sync.WaitGroup
	ids := make([]int64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = r.Register(&fakeEntry{})
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d under concurrent registration", id)
		}
		seen[id] = true
	}
}
