package domain

import "time"

// WaitAction is what the session runner does after one poll of the wait loop.
type WaitAction int

const (
	// WaitContinue keeps waiting for the next poll.
	WaitContinue WaitAction = iota
	// WaitSkip stops playback and ends the request.
	WaitSkip
	// WaitSeek restarts playback at a new offset.
	WaitSeek
	// WaitEnded means the source finished on its own.
	WaitEnded
	// WaitDisconnected means the transport lost its connection.
	WaitDisconnected
)

// String returns a lowercase name for logging.
func (a WaitAction) String() string {
	switch a {
	case WaitContinue:
		return "continue"
	case WaitSkip:
		return "skip"
	case WaitSeek:
		return "seek"
	case WaitEnded:
		return "ended"
	case WaitDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// WaitObservation is one sample of the transport and control signals.
type WaitObservation struct {
	Connected     bool
	Playing       bool
	SkipRequested bool
	SeekDelta     time.Duration
}

// NextWaitAction decides the wait-loop transition for one observation.
// Priority: lost connection, skip, seek, natural end.
func NextWaitAction(obs WaitObservation) WaitAction {
	switch {
	case !obs.Connected:
		return WaitDisconnected
	case obs.SkipRequested:
		return WaitSkip
	case obs.SeekDelta != 0:
		return WaitSeek
	case !obs.Playing:
		return WaitEnded
	default:
		return WaitContinue
	}
}
