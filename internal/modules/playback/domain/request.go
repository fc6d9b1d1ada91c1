package domain

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// RequestID identifies a single playback request.
type RequestID string

// NewRequestID returns a fresh random RequestID.
func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}

// PlaybackRequest is one playback intent for a destination.
type PlaybackRequest struct {
	ID RequestID

	// Source is a local file path, or for streams the original identifier
	// (page URL) that must be re-resolved before every play.
	Source   string
	IsStream bool
	// StreamURL optionally carries a playable URL the producer already resolved.
	// It is only used for the first iteration of a non-live request.
	StreamURL string

	Destination       Destination
	AnnounceChannelID snowflake.ID
	RequesterID       snowflake.ID

	Title      string
	DisplayURL string
	Duration   time.Duration // zero when unknown

	Announce bool
	Loop     bool
	IsLive   bool

	SeekOffset time.Duration
	EnqueuedAt time.Time

	completion *Completion
}

// NewPlaybackRequest prepares req for enqueueing: it assigns an ID if missing,
// stamps the enqueue time and attaches a fresh completion.
func NewPlaybackRequest(req PlaybackRequest) *PlaybackRequest {
	if req.ID == "" {
		req.ID = NewRequestID()
	}
	if req.SeekOffset < 0 {
		req.SeekOffset = 0
	}
	req.EnqueuedAt = time.Now().UTC()
	req.completion = NewCompletion()
	return &req
}

// Completion returns the completion handle of the request.
func (r *PlaybackRequest) Completion() *Completion {
	return r.completion
}
