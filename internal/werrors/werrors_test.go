package werrors

import (
	"errors"
	"testing"
)

func TestWrapFormatsOpAndCause(t *testing.T) {
	cause := errors.New("access is denied")
	w := Wrap(Access, "CreateFile", cause)

	want := "Access: CreateFile: access is denied"
	if got := w.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(w, cause) {
		t.Errorf("errors.Is(w, cause) = false, want true")
	}
}

func TestWrapWithoutOp(t *testing.T) {
	cause := errors.New("boom")
	w := Wrap(General, "", cause)
	if got := w.Error(); got != "General: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCodeStringUnknown(t *testing.T) {
	if got := Code(99).String(); got != "Code(99)" {
		t.Errorf("String() = %q", got)
	}
}
