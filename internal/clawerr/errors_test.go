package clawerr

import (
	"errors"
	"testing"
)

func TestWrapNil(t *testing.T) {
	if err := Wrap(KindTimeout, nil); err != nil {
		t.Fatalf("Wrap(kind, nil) = %v, want nil", err)
	}
}

func TestWrapUnwrapsToSentinel(t *testing.T) {
	err := Wrap(KindProtocolError, ErrFrameTooLarge)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("errors.Is(%v, ErrFrameTooLarge) = false, want true", err)
	}
}

func TestKindOf(t *testing.T) {
	err := Wrap(KindBounds, ErrScanRangeTooLarge)
	kind, ok := KindOf(err)
	if !ok || kind != KindBounds {
		t.Fatalf("KindOf() = (%v, %v), want (KindBounds, true)", kind, ok)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatal("KindOf(plain error) reported ok=true")
	}
}

func TestErrorMessageIsSingleLine(t *testing.T) {
	err := Wrapf(KindInvalidInput, "bad cidr %q", "not-a-cidr")
	got := err.Error()
	want := "invalid_input: bad cidr \"not-a-cidr\""
	if got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
