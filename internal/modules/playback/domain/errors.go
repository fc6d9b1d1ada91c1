package domain

import (
	"errors"
	"fmt"
)

// Failure kinds. Every failed Outcome wraps exactly one of these.
var (
	// ErrAdmission means the destination could not be connected to or moved into.
	ErrAdmission = errors.New("destination unavailable")
	// ErrResolution means a stream source could not be resolved to a playable URL.
	ErrResolution = errors.New("failed to resolve stream")
	// ErrPlayback means the decoder or transport rejected a start or died mid-stream.
	ErrPlayback = errors.New("playback failed")
	// ErrBestEffort marks side effects whose failure is logged and never surfaced to callers.
	ErrBestEffort = errors.New("best-effort operation failed")
)

// NewFailure wraps cause with a failure kind so both match errors.Is.
func NewFailure(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// FailureKind returns the failure kind err wraps, or nil.
func FailureKind(err error) error {
	for _, kind := range []error{ErrAdmission, ErrResolution, ErrPlayback, ErrBestEffort} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
