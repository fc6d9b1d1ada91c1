package usecases

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

// destinationState is everything the registry tracks for one guild.
type destinationState struct {
	queue   domain.RequestQueue
	active  bool
	current *domain.PlaybackRequest
	session *domain.Session
	signals domain.ControlSignals
}

// PlaybackRegistry owns per-destination queues, runner flags, sessions and control signals.
// Entries are created on first use. No collaborator is ever called under its lock.
type PlaybackRegistry struct {
	mu           sync.Mutex
	destinations map[snowflake.ID]*destinationState
}

// NewPlaybackRegistry creates an empty registry.
func NewPlaybackRegistry() *PlaybackRegistry {
	return &PlaybackRegistry{
		destinations: make(map[snowflake.ID]*destinationState),
	}
}

// entry returns the state for key, creating it. Caller must hold r.mu.
func (r *PlaybackRegistry) entry(key snowflake.ID) *destinationState {
	st, ok := r.destinations[key]
	if !ok {
		st = &destinationState{}
		r.destinations[key] = st
	}
	return st
}

// Enqueue appends req to its destination queue. It returns the number of
// requests ahead of req and whether the caller must start a runner; in that
// case the destination has already been marked active.
func (r *PlaybackRegistry) Enqueue(req *domain.PlaybackRequest) (position int, spawn bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.entry(req.Destination.Key())
	position = st.queue.Len()
	if st.current != nil {
		position++
	}
	st.queue.Push(req)

	if st.active {
		return position, false
	}
	st.active = true
	return position, true
}

// Next pops the next request for key. When the queue is empty it releases the
// runner flag in the same critical section and returns false, so an Enqueue
// racing with the release always observes an inactive destination and spawns.
func (r *PlaybackRegistry) Next(key snowflake.ID) (*domain.PlaybackRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.entry(key)
	req := st.queue.Pop()
	if req == nil {
		st.active = false
		st.current = nil
		return nil, false
	}
	st.current = req
	return req, true
}

// Finish marks the current request of key as done.
func (r *PlaybackRegistry) Finish(key snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(key).current = nil
}

// IsActive reports whether a runner currently drains key.
func (r *PlaybackRegistry) IsActive(key snowflake.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entry(key).active
}

// Pending returns a copy of the queued requests for key.
func (r *PlaybackRegistry) Pending(key snowflake.ID) []domain.PlaybackRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entry(key).queue.Snapshot()
}

// Current returns a copy of the request being served for key.
func (r *PlaybackRegistry) Current(key snowflake.ID) (domain.PlaybackRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.entry(key).current
	if cur == nil {
		return domain.PlaybackRequest{}, false
	}
	return *cur, true
}

// PublishSession replaces the session for key.
func (r *PlaybackRegistry) PublishSession(key snowflake.ID, s domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(key).session = &s
}

// Session returns the live session for key.
func (r *PlaybackRegistry) Session(key snowflake.ID) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.entry(key).session
	if s == nil {
		return domain.Session{}, false
	}
	return *s, true
}

// ClearSession deletes the session for key.
func (r *PlaybackRegistry) ClearSession(key snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(key).session = nil
}

// Signals returns the pending control signals for key.
func (r *PlaybackRegistry) Signals(key snowflake.ID) domain.ControlSignals {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entry(key).signals
}

// ResetSignals clears the pending control signals for key.
func (r *PlaybackRegistry) ResetSignals(key snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(key).signals.Reset()
}

// TakeSeek returns and clears the pending seek delta for key.
func (r *PlaybackRegistry) TakeSeek(key snowflake.ID) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entry(key).signals.TakeSeek()
}

// RequestSkip flags a skip iff key has a live session.
func (r *PlaybackRegistry) RequestSkip(key snowflake.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.entry(key)
	if st.session == nil {
		return false
	}
	st.signals.SkipRequested = true
	return true
}

// RequestSeek records delta for the live session of key and returns the
// position it would land on at now. It refuses live and unknown-length sessions.
func (r *PlaybackRegistry) RequestSeek(
	key snowflake.ID,
	now time.Time,
	delta time.Duration,
) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.entry(key)
	if st.session == nil || !st.session.Seekable() {
		return 0, false
	}
	target := st.session.SeekTarget(now, delta)
	if delta != 0 {
		st.signals.SeekDelta = delta
	}
	return target, true
}
