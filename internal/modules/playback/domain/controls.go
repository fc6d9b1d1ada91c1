package domain

import "time"

// Control identifiers attached to progress messages.
const (
	ControlSeekBack    = "playback_seek_back"
	ControlSeekForward = "playback_seek_forward"
	ControlStop        = "playback_stop"
)

// SeekStep is how far the seek controls move playback.
const SeekStep = 10 * time.Second
