package usecases

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

// requestRun is the runner-local state of one request. It is only touched by
// the runner goroutine serving the request.
type requestRun struct {
	req *domain.PlaybackRequest
	log *slog.Logger

	title      string
	displayURL string
	duration   time.Duration
	live       bool

	message   *domain.MessageHandle
	source    ports.DecodedSource
	iteration int
	// elapsed is the position at the moment playback last stopped.
	elapsed time.Duration

	stopBroadcast func()
}

func (r *requestRun) cancelBroadcast() {
	if r.stopBroadcast != nil {
		r.stopBroadcast()
		r.stopBroadcast = nil
	}
}

// serve takes one request through its whole lifecycle and resolves its completion.
func (s *PlaybackService) serve(req *domain.PlaybackRequest) {
	run := &requestRun{
		req:        req,
		log:        slog.With("guild", req.Destination.GuildID, "request", req.ID),
		title:      req.Title,
		displayURL: req.DisplayURL,
		duration:   req.Duration,
		live:       req.IsLive,
		elapsed:    req.SeekOffset,
	}

	// Last resort for a panic outside the guarded steps.
	defer func() {
		if r := recover(); r != nil {
			run.log.Error("recovered from panic while finalizing request", "panic", r)
			s.resolve(run, domain.Failed(domain.NewFailure(domain.ErrPlayback, fmt.Errorf("panic: %v", r))))
		}
	}()

	outcome := s.playSafely(run)
	s.finalize(run, outcome)
}

// playSafely runs play and converts a panic in any collaborator into a failure.
func (s *PlaybackService) playSafely(run *requestRun) (outcome domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			run.log.Error("recovered from panic while serving request", "panic", r)
			run.cancelBroadcast()
			s.registry.ClearSession(run.req.Destination.Key())
			outcome = domain.Failed(domain.NewFailure(domain.ErrPlayback, fmt.Errorf("panic: %v", r)))
		}
	}()
	return s.play(s.ctx, run)
}

func (s *PlaybackService) play(ctx context.Context, run *requestRun) domain.Outcome {
	req := run.req

	if err := ctx.Err(); err != nil {
		return domain.Failed(err)
	}

	if err := s.connect(ctx, req.Destination); err != nil {
		run.log.Warn("failed to connect to voice channel", "channel", req.Destination.ChannelID, "error", err)
		return domain.Failed(domain.NewFailure(domain.ErrAdmission, err))
	}

	if req.Announce && req.AnnounceChannelID != 0 {
		s.announce(ctx, run)
	}

	offset := req.SeekOffset
	for run.iteration = 0; ; run.iteration++ {
		playURL, err := s.resolveSource(ctx, run)
		if err != nil {
			if isCancellation(err) {
				return domain.Failed(err)
			}
			run.log.Warn("failed to resolve stream", "source", req.Source, "error", err)
			return domain.Failed(domain.NewFailure(domain.ErrResolution, err))
		}

		action, err := s.playIteration(ctx, run, playURL, offset)
		if err != nil {
			if !isCancellation(err) {
				run.log.Warn("playback failed", "error", err)
			}
			return domain.Failed(err)
		}

		switch action {
		case domain.WaitSkip:
			return domain.Skipped()
		case domain.WaitDisconnected:
			run.log.Info("voice connection lost, ending request")
			return domain.Completed()
		}

		if !req.Loop {
			return domain.Completed()
		}
		// A skip accepted while the iteration was winding down still ends the loop.
		if s.registry.Signals(req.Destination.Key()).SkipRequested {
			return domain.Skipped()
		}
		offset = 0
	}
}

// connect makes sure the transport is in the destination channel, moving an
// existing connection of the same guild when needed.
func (s *PlaybackService) connect(ctx context.Context, dest domain.Destination) error {
	if channelID, ok := s.transport.ConnectedChannel(dest.GuildID); ok {
		if channelID == dest.ChannelID {
			return nil
		}
		if err := s.transport.Move(ctx, dest); err != nil {
			return fmt.Errorf("failed to move voice connection: %w", err)
		}
		return nil
	}

	if err := s.transport.EnsureConnected(ctx, dest); err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}
	return nil
}

// announce posts the initial progress message. Failing to post is not fatal.
func (s *PlaybackService) announce(ctx context.Context, run *requestRun) {
	text := domain.RenderProgress(run.req.SeekOffset, run.duration, run.title, run.displayURL, false, run.live)
	seekable := !run.live && run.duration > 0

	msg, err := s.announcer.Post(ctx, run.req.AnnounceChannelID, text, seekable)
	if err != nil {
		s.reportBestEffort(run.req, "post progress message", err)
		return
	}
	run.message = &msg
}

// resolveSource returns the URL or path to decode for the current iteration.
// Streams are always resolved from the original identifier, never from a
// previously resolved URL, since those expire.
func (s *PlaybackService) resolveSource(ctx context.Context, run *requestRun) (string, error) {
	req := run.req
	if !req.IsStream {
		return req.Source, nil
	}
	if run.iteration == 0 && req.StreamURL != "" && !req.IsLive {
		return req.StreamURL, nil
	}

	media, err := s.resolver.Resolve(ctx, req.Source)
	if err != nil {
		return "", err
	}
	if media.PlayURL == "" {
		return "", ErrEmptyPlayURL
	}

	if media.Title != "" {
		run.title = media.Title
	}
	if media.Duration > 0 {
		run.duration = media.Duration
	}
	run.live = media.IsLive
	return media.PlayURL, nil
}

// playIteration plays the source once from offset and waits for a terminal event.
func (s *PlaybackService) playIteration(
	ctx context.Context,
	run *requestRun,
	playURL string,
	offset time.Duration,
) (domain.WaitAction, error) {
	key := run.req.Destination.Key()
	remote := run.req.IsStream || domain.IsRemote(playURL)

	s.registry.ResetSignals(key)
	session := domain.Session{
		RequestID:   run.req.ID,
		Destination: run.req.Destination,
		RequesterID: run.req.RequesterID,
		Duration:    run.duration,
		Title:       run.title,
		DisplayURL:  run.displayURL,
		IsLive:      run.live,
		Message:     run.message,
	}.Restarted(s.opts.Now(), offset)
	s.registry.PublishSession(key, session)
	s.startBroadcast(ctx, run)

	defer func() {
		run.cancelBroadcast()
		s.stopPlayback(ctx, run)
		s.registry.ClearSession(key)
	}()

	if err := s.startPlayback(ctx, run, playURL, offset, remote); err != nil {
		run.elapsed = offset
		return domain.WaitEnded, err
	}

	action, err := s.wait(ctx, run, playURL, remote)

	if current, ok := s.registry.Session(key); ok {
		run.elapsed = current.Elapsed(s.opts.Now())
		if run.duration > 0 {
			run.elapsed = min(run.elapsed, run.duration)
		}
	}
	s.publish(domain.SessionEndedEvent{
		GuildID:   run.req.Destination.GuildID,
		RequestID: run.req.ID,
		Reason:    action,
		Elapsed:   run.elapsed,
	})

	return action, err
}

// startPlayback opens the decoder at offset and hands it to the transport.
func (s *PlaybackService) startPlayback(
	ctx context.Context,
	run *requestRun,
	playURL string,
	offset time.Duration,
	remote bool,
) error {
	guildID := run.req.Destination.GuildID

	if s.transport.IsPlaying(guildID) {
		if err := s.transport.Stop(ctx, guildID); err != nil {
			run.log.Warn("failed to stop previous stream", "error", err)
		}
		if !s.waitIdle(ctx, guildID) {
			run.log.Warn("transport still busy before start")
		}
	}

	src, err := s.decoder.Open(ctx, playURL, offset, remote)
	if err != nil {
		if isCancellation(err) {
			return err
		}
		return domain.NewFailure(domain.ErrPlayback, fmt.Errorf("failed to open decoder: %w", err))
	}

	if err := s.transport.Start(ctx, guildID, src); err != nil {
		if cerr := src.Close(); cerr != nil {
			run.log.Debug("failed to close decoded source", "error", cerr)
		}
		return domain.NewFailure(domain.ErrPlayback, fmt.Errorf("failed to start stream: %w", err))
	}
	run.source = src

	s.publish(domain.SessionStartedEvent{
		GuildID:   guildID,
		RequestID: run.req.ID,
		Title:     run.title,
		Offset:    offset,
		Iteration: run.iteration,
	})
	return nil
}

// stopPlayback stops the transport if it still plays and releases the decoder.
func (s *PlaybackService) stopPlayback(ctx context.Context, run *requestRun) {
	guildID := run.req.Destination.GuildID

	if s.transport.IsPlaying(guildID) {
		if err := s.transport.Stop(context.WithoutCancel(ctx), guildID); err != nil {
			run.log.Warn("failed to stop stream", "error", err)
		}
	}
	if run.source != nil {
		if err := run.source.Close(); err != nil {
			run.log.Debug("failed to close decoded source", "error", err)
		}
		run.source = nil
	}
}

// waitIdle polls until the transport stops playing, for a bounded number of attempts.
func (s *PlaybackService) waitIdle(ctx context.Context, guildID snowflake.ID) bool {
	for range s.opts.IdlePollAttempts {
		if !s.transport.IsPlaying(guildID) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.opts.IdlePollInterval):
		}
	}
	return !s.transport.IsPlaying(guildID)
}

// wait polls the transport and control signals until the session ends.
// Seeks are applied in place and keep the loop running.
func (s *PlaybackService) wait(
	ctx context.Context,
	run *requestRun,
	playURL string,
	remote bool,
) (domain.WaitAction, error) {
	key := run.req.Destination.Key()
	guildID := run.req.Destination.GuildID

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.WaitContinue, ctx.Err()
		case <-ticker.C:
		}

		signals := s.registry.Signals(key)
		action := domain.NextWaitAction(domain.WaitObservation{
			Connected:     s.transport.IsConnected(guildID),
			Playing:       s.transport.IsPlaying(guildID),
			SkipRequested: signals.SkipRequested,
			SeekDelta:     signals.SeekDelta,
		})

		switch action {
		case domain.WaitContinue:
			continue
		case domain.WaitSeek:
			if err := s.reseek(ctx, run, playURL, remote); err != nil {
				return action, err
			}
		case domain.WaitEnded:
			if err := s.transport.StreamErr(guildID); err != nil {
				return action, domain.NewFailure(domain.ErrPlayback, err)
			}
			return action, nil
		default:
			run.log.Debug("wait loop finished", "action", action)
			return action, nil
		}
	}
}

// reseek restarts the current source at a new position without leaving the runner.
// The target is recomputed from the elapsed time at the moment of application.
func (s *PlaybackService) reseek(
	ctx context.Context,
	run *requestRun,
	playURL string,
	remote bool,
) error {
	key := run.req.Destination.Key()
	guildID := run.req.Destination.GuildID

	delta := s.registry.TakeSeek(key)
	current, ok := s.registry.Session(key)
	if !ok || delta == 0 {
		return nil
	}
	target := current.SeekTarget(s.opts.Now(), delta)
	run.log.Debug("seeking", "delta", delta, "target", target)

	run.cancelBroadcast()
	s.stopPlayback(ctx, run)
	if !s.waitIdle(ctx, guildID) {
		run.log.Warn("transport still busy after stop")
	}

	s.registry.PublishSession(key, current.Restarted(s.opts.Now(), target))
	if err := s.startPlayback(ctx, run, playURL, target, remote); err != nil {
		return err
	}
	s.startBroadcast(ctx, run)
	return nil
}

// finalize disconnects, settles the progress message, disposes the temporary
// source and resolves the completion, in that order. Each side effect is best
// effort, so a failing or panicking collaborator never leaves the completion unresolved.
func (s *PlaybackService) finalize(run *requestRun, outcome domain.Outcome) {
	req := run.req
	guildID := req.Destination.GuildID

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.opts.DisconnectTimeout)
	defer cancel()

	s.bestEffort(req, "disconnect", func() error {
		if !s.transport.IsConnected(guildID) {
			return nil
		}
		return s.transport.Disconnect(ctx, guildID)
	})

	if run.message != nil {
		s.bestEffort(req, "edit progress message", func() error {
			text := domain.RenderProgress(run.elapsed, run.duration, run.title, run.displayURL, true, run.live)
			return s.announcer.Edit(ctx, *run.message, text, false)
		})
	}

	s.registry.ResetSignals(req.Destination.Key())
	s.bestEffort(req, "remove temporary file", func() error {
		return s.disposeSource(req)
	})

	s.resolve(run, outcome)
}

// resolve settles the request's completion once and reports the outcome.
func (s *PlaybackService) resolve(run *requestRun, outcome domain.Outcome) {
	req := run.req
	if !req.Completion().Resolve(outcome) {
		return
	}
	s.publish(domain.RequestFinishedEvent{
		GuildID:   req.Destination.GuildID,
		RequestID: req.ID,
		Outcome:   outcome,
	})

	run.log.Info("finished playback request", "outcome", outcome.Status.String(), "error", outcome.Err)
}

// bestEffort runs a side effect whose error or panic is reported and swallowed.
func (s *PlaybackService) bestEffort(req *domain.PlaybackRequest, operation string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.reportBestEffort(req, operation, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		s.reportBestEffort(req, operation, err)
	}
}

// disposeSource deletes a local source that lives in the scratch directory.
func (s *PlaybackService) disposeSource(req *domain.PlaybackRequest) error {
	if req.IsStream || !domain.IsScratchPath(req.Source, s.opts.TempDir) {
		return nil
	}
	if err := os.Remove(req.Source); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
