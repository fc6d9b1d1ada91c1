package domain

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Event is a playback lifecycle event.
type Event interface {
	isEvent()
}

// RequestEnqueuedEvent is published when a request joins a destination queue.
type RequestEnqueuedEvent struct {
	GuildID       snowflake.ID
	RequestID     RequestID
	Title         string
	Position      int // 0 means it will be served next
	SpawnedRunner bool
}

// SessionStartedEvent is published every time a source starts playing,
// including loop restarts and seek restarts.
type SessionStartedEvent struct {
	GuildID   snowflake.ID
	RequestID RequestID
	Title     string
	Offset    time.Duration
	Iteration int
}

// SessionEndedEvent is published when a loop iteration stops playing.
type SessionEndedEvent struct {
	GuildID   snowflake.ID
	RequestID RequestID
	Reason    WaitAction
	Elapsed   time.Duration
}

// RequestFinishedEvent is published once per request, after its completion resolved.
type RequestFinishedEvent struct {
	GuildID   snowflake.ID
	RequestID RequestID
	Outcome   Outcome
}

// BestEffortFailedEvent reports a swallowed side-effect failure.
type BestEffortFailedEvent struct {
	GuildID   snowflake.ID
	RequestID RequestID
	Operation string
	Err       error
}

func (RequestEnqueuedEvent) isEvent()  {}
func (SessionStartedEvent) isEvent()   {}
func (SessionEndedEvent) isEvent()     {}
func (RequestFinishedEvent) isEvent()  {}
func (BestEffortFailedEvent) isEvent() {}
