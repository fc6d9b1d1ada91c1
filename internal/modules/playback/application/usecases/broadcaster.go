package usecases

import (
	"context"
	"time"

	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

// startBroadcast starts the progress broadcaster for the current session of
// run, unless there is no message to maintain or one is already running.
func (s *PlaybackService) startBroadcast(ctx context.Context, run *requestRun) {
	if run.message == nil || run.stopBroadcast != nil {
		return
	}

	bctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.broadcast(bctx, run.req)
	}()

	run.stopBroadcast = func() {
		cancel()
		<-done
	}
}

// broadcast periodically re-renders the progress message of req's session.
// Edit failures are reported and ignored; the task ends when the session is
// gone or ctx is cancelled.
func (s *PlaybackService) broadcast(ctx context.Context, req *domain.PlaybackRequest) {
	key := req.Destination.Key()

	timer := time.NewTimer(s.progressDelay(0))
	defer timer.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		session, ok := s.registry.Session(key)
		if !ok || session.Message == nil || session.RequestID != req.ID {
			return
		}

		text := domain.RenderProgress(
			session.Elapsed(s.opts.Now()),
			session.Duration,
			session.Title,
			session.DisplayURL,
			false,
			session.IsLive,
		)
		if err := s.announcer.Edit(ctx, *session.Message, text, session.Seekable()); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.reportBestEffort(req, "edit progress message", err)
		}

		timer.Reset(s.progressDelay(tick))
	}
}

// progressDelay returns the delay before the next update after tick updates.
func (s *PlaybackService) progressDelay(tick int) time.Duration {
	if tick < s.opts.ProgressEarlyTicks {
		return s.opts.ProgressEarlyInterval
	}
	return s.opts.ProgressInterval
}
