package waitutil

import "testing"

func TestSpinUntilCompletesImmediately(t *testing.T) {
	if got := SpinUntil(func() bool { return true }, 100); got != Complete {
		t.Errorf("SpinUntil = %v, want Complete", got)
	}
}

func TestSpinUntilTimesOut(t *testing.T) {
	if got := SpinUntil(func() bool { return false }, 5); got != Timeout {
		t.Errorf("SpinUntil = %v, want Timeout", got)
	}
}

func TestSpinUntilBecomesTrue(t *testing.T) {
	n := 0
	got := SpinUntil(func() bool {
		n++
		return n >= 3
	}, 1000)
	if got != Complete {
		t.Errorf("SpinUntil = %v, want Complete", got)
	}
}

func TestSpinUntilNilCondition(t *testing.T) {
	if got := SpinUntil(nil, 100); got != Timeout {
		t.Errorf("SpinUntil(nil, ...) = %v, want Timeout", got)
	}
}

func TestSpinUntilChanClosed(t *testing.T) {
	done := make(chan struct{})
	close(done)
	if got := SpinUntilChan(done, 100); got != Complete {
		t.Errorf("SpinUntilChan = %v, want Complete", got)
	}
}

func TestSpinUntilChanTimesOut(t *testing.T) {
	done := make(chan struct{})
	if got := SpinUntilChan(done, 5); got != Timeout {
		t.Errorf("SpinUntilChan = %v, want Timeout", got)
	}
}
