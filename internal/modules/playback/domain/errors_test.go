package domain

import (
	"errors"
	"testing"
)

func TestNewFailure(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewFailure(ErrAdmission, cause)

	if !errors.Is(err, ErrAdmission) {
		t.Error("expected error to match its kind")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to match its cause")
	}
	if FailureKind(err) != ErrAdmission {
		t.Errorf("expected ErrAdmission, got %v", FailureKind(err))
	}
	if got := NewFailure(ErrPlayback, nil); got != ErrPlayback {
		t.Errorf("expected bare kind for nil cause, got %v", got)
	}
	if FailureKind(cause) != nil {
		t.Error("expected no kind for a plain error")
	}
}
