package events

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

// LifecycleLogger writes playback lifecycle events to the structured log.
type LifecycleLogger struct {
	subscriber ports.EventSubscriber
	logger     *slog.Logger
}

// NewLifecycleLogger creates a new LifecycleLogger.
// A nil logger means slog.Default().
func NewLifecycleLogger(subscriber ports.EventSubscriber, logger *slog.Logger) *LifecycleLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &LifecycleLogger{
		subscriber: subscriber,
		logger:     logger,
	}
}

// Start registers event handlers with the subscriber.
func (l *LifecycleLogger) Start() error {
	handlers := map[reflect.Type]func(context.Context, domain.Event){
		reflect.TypeFor[domain.RequestEnqueuedEvent](): func(ctx context.Context, e domain.Event) {
			l.handleRequestEnqueued(ctx, e.(domain.RequestEnqueuedEvent))
		},
		reflect.TypeFor[domain.SessionStartedEvent](): func(ctx context.Context, e domain.Event) {
			l.handleSessionStarted(ctx, e.(domain.SessionStartedEvent))
		},
		reflect.TypeFor[domain.SessionEndedEvent](): func(ctx context.Context, e domain.Event) {
			l.handleSessionEnded(ctx, e.(domain.SessionEndedEvent))
		},
		reflect.TypeFor[domain.RequestFinishedEvent](): func(ctx context.Context, e domain.Event) {
			l.handleRequestFinished(ctx, e.(domain.RequestFinishedEvent))
		},
		reflect.TypeFor[domain.BestEffortFailedEvent](): func(ctx context.Context, e domain.Event) {
			l.handleBestEffortFailed(ctx, e.(domain.BestEffortFailedEvent))
		},
	}

	for eventType, handler := range handlers {
		if err := l.subscriber.Subscribe(eventType, handler); err != nil {
			return err
		}
	}

	slog.Debug("lifecycle event handlers properly registered")

	return nil
}

func (l *LifecycleLogger) handleRequestEnqueued(ctx context.Context, event domain.RequestEnqueuedEvent) {
	l.logger.DebugContext(ctx, "request enqueued",
		"guild", event.GuildID,
		"request", event.RequestID,
		"title", event.Title,
		"position", event.Position,
		"spawned_runner", event.SpawnedRunner,
	)
}

func (l *LifecycleLogger) handleSessionStarted(ctx context.Context, event domain.SessionStartedEvent) {
	l.logger.InfoContext(ctx, "playback started",
		"guild", event.GuildID,
		"request", event.RequestID,
		"title", event.Title,
		"offset", event.Offset,
		"iteration", event.Iteration,
	)
}

func (l *LifecycleLogger) handleSessionEnded(ctx context.Context, event domain.SessionEndedEvent) {
	l.logger.DebugContext(ctx, "playback stopped",
		"guild", event.GuildID,
		"request", event.RequestID,
		"reason", event.Reason.String(),
		"elapsed", event.Elapsed,
	)
}

func (l *LifecycleLogger) handleRequestFinished(ctx context.Context, event domain.RequestFinishedEvent) {
	if event.Outcome.Status == domain.OutcomeFailed {
		l.logger.WarnContext(ctx, "request failed",
			"guild", event.GuildID,
			"request", event.RequestID,
			"kind", domain.FailureKind(event.Outcome.Err),
			"error", event.Outcome.Err,
		)
		return
	}
	l.logger.DebugContext(ctx, "request finished",
		"guild", event.GuildID,
		"request", event.RequestID,
		"outcome", event.Outcome.Status.String(),
	)
}

func (l *LifecycleLogger) handleBestEffortFailed(ctx context.Context, event domain.BestEffortFailedEvent) {
	l.logger.WarnContext(ctx, "best-effort operation failed",
		"guild", event.GuildID,
		"request", event.RequestID,
		"operation", event.Operation,
		"error", event.Err,
	)
}
