package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWalksWrapChain(t *testing.T) {
	t.Parallel()

	base := New(KindNotFound, "event not found")
	wrapped := fmt.Errorf("lookup failed: %w", base)

	if got := KindOf(wrapped); got != KindNotFound {
		t.Errorf("KindOf(wrapped) = %v, want KindNotFound", got)
	}
	if !Is(wrapped, KindNotFound) {
		t.Error("Is(wrapped, KindNotFound) = false")
	}
}

func TestKindOfUntypedError(t *testing.T) {
	t.Parallel()

	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("KindOf(plain) = %v, want KindInternal", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := Wrap(KindModelLoad, "failed to save model", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped error lost its cause")
	}
	if err.Error() != "failed to save model: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{New(KindValidation, "bad input"), 400},
		{New(KindUnauthenticated, "no token"), 401},
		{New(KindForbidden, "wrong role"), 403},
		{New(KindNotFound, "missing"), 404},
		{New(KindModelLoad, "corrupt model"), 500},
		{New(KindConfiguration, "no vocabulary"), 500},
		{errors.New("untyped"), 500},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
