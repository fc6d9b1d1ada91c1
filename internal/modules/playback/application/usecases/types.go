package usecases

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

// EnqueueInput contains the input for the Enqueue use case.
type EnqueueInput struct {
	Destination       domain.Destination
	AnnounceChannelID snowflake.ID // 0 disables announcing regardless of Announce
	RequesterID       snowflake.ID

	Source    string
	IsStream  bool
	StreamURL string // optional pre-resolved URL for the first play

	Title      string
	DisplayURL string
	Duration   time.Duration

	Announce   bool
	Loop       bool
	IsLive     bool
	SeekOffset time.Duration
}

// EnqueueOutput contains the result of the Enqueue use case.
type EnqueueOutput struct {
	RequestID domain.RequestID
	// Position is the number of requests ahead of this one, including the playing one.
	Position   int
	Completion *domain.Completion
}

// QueueItem describes a pending request for display.
type QueueItem struct {
	RequestID   domain.RequestID
	Title       string
	DisplayURL  string
	RequesterID snowflake.ID
	Duration    time.Duration
	IsLive      bool
	Loop        bool
	EnqueuedAt  time.Time
}

// NowPlayingOutput describes the session currently playing on a guild.
type NowPlayingOutput struct {
	RequestID   domain.RequestID
	Title       string
	DisplayURL  string
	RequesterID snowflake.ID
	Elapsed     time.Duration
	Duration    time.Duration
	IsLive      bool
	Seekable    bool
}

// SelectVoiceChannelInput contains the input for SelectVoiceChannel.
type SelectVoiceChannelInput struct {
	GuildID        snowflake.ID
	UserID         snowflake.ID
	VoiceChannelID snowflake.ID // Optional: explicit channel (0 means use user's channel)
}

func queueItemFromRequest(r domain.PlaybackRequest) QueueItem {
	return QueueItem{
		RequestID:   r.ID,
		Title:       r.Title,
		DisplayURL:  r.DisplayURL,
		RequesterID: r.RequesterID,
		Duration:    r.Duration,
		IsLive:      r.IsLive,
		Loop:        r.Loop,
		EnqueuedAt:  r.EnqueuedAt,
	}
}
