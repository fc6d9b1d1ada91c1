package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

// PlaybackService serializes playback requests per guild and exposes the
// control operations for active sessions.
type PlaybackService struct {
	registry  *PlaybackRegistry
	transport ports.AudioTransport
	decoder   ports.StreamDecoder
	resolver  ports.MediaResolver
	announcer ports.Announcer
	publisher ports.EventPublisher
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool
}

// NewPlaybackService creates a new PlaybackService.
// publisher may be nil, in which case lifecycle events are only logged.
func NewPlaybackService(
	registry *PlaybackRegistry,
	transport ports.AudioTransport,
	decoder ports.StreamDecoder,
	resolver ports.MediaResolver,
	announcer ports.Announcer,
	publisher ports.EventPublisher,
	opts Options,
) *PlaybackService {
	ctx, cancel := context.WithCancel(context.Background())
	return &PlaybackService{
		registry:  registry,
		transport: transport,
		decoder:   decoder,
		resolver:  resolver,
		announcer: announcer,
		publisher: publisher,
		opts:      opts.withDefaults(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Enqueue validates input and appends a request to its destination queue,
// starting a runner for the destination if none is active.
// It never waits for playback; callers wait on the returned completion.
func (s *PlaybackService) Enqueue(input EnqueueInput) (*EnqueueOutput, error) {
	if input.Source == "" {
		return nil, ErrEmptySource
	}
	if input.Destination.GuildID == 0 || input.Destination.ChannelID == 0 {
		return nil, ErrInvalidDestination
	}
	if !input.IsStream && !domain.IsRemote(input.Source) {
		if _, err := os.Stat(input.Source); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, input.Source)
		}
	}

	req := domain.NewPlaybackRequest(domain.PlaybackRequest{
		Source:            input.Source,
		IsStream:          input.IsStream,
		StreamURL:         input.StreamURL,
		Destination:       input.Destination,
		AnnounceChannelID: input.AnnounceChannelID,
		RequesterID:       input.RequesterID,
		Title:             input.Title,
		DisplayURL:        input.DisplayURL,
		Duration:          input.Duration,
		Announce:          input.Announce,
		Loop:              input.Loop,
		IsLive:            input.IsLive,
		SeekOffset:        input.SeekOffset,
	})

	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return nil, ErrServiceClosed
	}

	position, spawn := s.registry.Enqueue(req)
	s.publish(domain.RequestEnqueuedEvent{
		GuildID:       req.Destination.GuildID,
		RequestID:     req.ID,
		Title:         req.Title,
		Position:      position,
		SpawnedRunner: spawn,
	})
	if spawn {
		s.wg.Add(1)
		go s.runDestination(req.Destination.Key())
	}

	return &EnqueueOutput{
		RequestID:  req.ID,
		Position:   position,
		Completion: req.Completion(),
	}, nil
}

// RequestSkip asks the active session of a guild to stop and end its request.
// It reports whether a connected session was found.
func (s *PlaybackService) RequestSkip(guildID snowflake.ID) bool {
	if !s.transport.IsConnected(guildID) {
		return false
	}
	return s.registry.RequestSkip(guildID)
}

// RequestSeek asks the active session of a guild to move by delta.
// It returns the clamped position the seek is expected to land on, or false if
// nothing seekable is playing. The runner recomputes the target when applying it.
func (s *PlaybackService) RequestSeek(guildID snowflake.ID, delta time.Duration) (time.Duration, bool) {
	return s.registry.RequestSeek(guildID, s.opts.Now(), delta)
}

// Leave ends the guild's current request and leaves its voice channel. The
// runner disconnects when the skipped request finalizes; a connection without
// an active runner is closed directly. Pending requests stay queued.
// It reports whether there was anything to leave.
func (s *PlaybackService) Leave(ctx context.Context, guildID snowflake.ID) (bool, error) {
	if s.RequestSkip(guildID) {
		return true, nil
	}
	if s.registry.IsActive(guildID) || !s.transport.IsConnected(guildID) {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.DisconnectTimeout)
	defer cancel()
	if err := s.transport.Disconnect(ctx, guildID); err != nil {
		return true, fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return true, nil
}

// QueueSnapshot lists the pending requests of a guild without consuming them.
func (s *PlaybackService) QueueSnapshot(guildID snowflake.ID) []QueueItem {
	pending := s.registry.Pending(guildID)
	items := make([]QueueItem, len(pending))
	for i, r := range pending {
		items[i] = queueItemFromRequest(r)
	}
	return items
}

// NowPlaying describes the session currently playing on a guild.
func (s *PlaybackService) NowPlaying(guildID snowflake.ID) (NowPlayingOutput, bool) {
	session, ok := s.registry.Session(guildID)
	if !ok {
		return NowPlayingOutput{}, false
	}
	return NowPlayingOutput{
		RequestID:   session.RequestID,
		Title:       session.Title,
		DisplayURL:  session.DisplayURL,
		RequesterID: session.RequesterID,
		Elapsed:     session.Elapsed(s.opts.Now()),
		Duration:    session.Duration,
		IsLive:      session.IsLive,
		Seekable:    session.Seekable(),
	}, true
}

// Shutdown stops accepting requests, cancels running sessions and waits for
// every runner to finalize its requests, or for ctx to expire.
func (s *PlaybackService) Shutdown(ctx context.Context) error {
	s.closeMu.Lock()
	s.closed = true
	s.closeMu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for session runners: %w", ctx.Err())
	}
}

// runDestination drains the queue of one guild until it is empty.
func (s *PlaybackService) runDestination(key snowflake.ID) {
	defer s.wg.Done()

	slog.Debug("started session runner", "guild", key)
	for {
		req, ok := s.registry.Next(key)
		if !ok {
			slog.Debug("stopped session runner", "guild", key)
			return
		}
		s.serve(req)
		s.registry.Finish(key)
	}
}

func (s *PlaybackService) publish(event domain.Event) {
	if s.publisher == nil {
		if e, ok := event.(domain.BestEffortFailedEvent); ok {
			slog.Warn("best-effort operation failed",
				"guild", e.GuildID,
				"request", e.RequestID,
				"operation", e.Operation,
				"error", e.Err,
			)
		}
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		slog.Debug("failed to publish event", "error", err)
	}
}

// reportBestEffort records a swallowed failure of a side effect.
func (s *PlaybackService) reportBestEffort(req *domain.PlaybackRequest, operation string, err error) {
	s.publish(domain.BestEffortFailedEvent{
		GuildID:   req.Destination.GuildID,
		RequestID: req.ID,
		Operation: operation,
		Err:       domain.NewFailure(domain.ErrBestEffort, err),
	})
}

// isCancellation reports whether err stems from the service shutting down.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
