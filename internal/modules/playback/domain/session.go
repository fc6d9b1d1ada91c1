package domain

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// MessageHandle identifies a posted progress message.
type MessageHandle struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

// Session describes what is currently playing on a destination.
// It is a value: seeking produces a new Session rather than mutating one.
type Session struct {
	RequestID   RequestID
	Destination Destination
	RequesterID snowflake.ID

	// StartTime is the wall-clock instant at which position zero would have played.
	StartTime time.Time
	Offset    time.Duration

	Duration   time.Duration
	Title      string
	DisplayURL string
	IsLive     bool

	Message *MessageHandle
}

// Elapsed returns the playback position at now.
func (s Session) Elapsed(now time.Time) time.Duration {
	elapsed := now.Sub(s.StartTime)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Seekable reports whether seeking is meaningful for the session.
func (s Session) Seekable() bool {
	return !s.IsLive && s.Duration > 0
}

// ClampPosition bounds a position to [0, duration-1s] when the duration is known,
// and to [0, inf) otherwise.
func (s Session) ClampPosition(pos time.Duration) time.Duration {
	if pos < 0 {
		pos = 0
	}
	if s.Duration > 0 {
		last := max(s.Duration-time.Second, 0)
		if pos > last {
			pos = last
		}
	}
	return pos.Truncate(time.Second)
}

// SeekTarget returns the clamped absolute position a seek of delta applied at now would land on.
func (s Session) SeekTarget(now time.Time, delta time.Duration) time.Duration {
	return s.ClampPosition(s.Elapsed(now) + delta)
}

// Restarted returns a copy of the session restarted at offset at now.
func (s Session) Restarted(now time.Time, offset time.Duration) Session {
	s.Offset = offset
	s.StartTime = now.Add(-offset)
	return s
}
