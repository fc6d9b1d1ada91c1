package infrastructure

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"

	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

// DefaultEventBufferSize is the default buffer size for the event channel.
const DefaultEventBufferSize = 100

var (
	// ErrEventBusClosed is returned when publishing to or subscribing on a closed bus.
	ErrEventBusClosed = errors.New("event bus closed")
	// ErrEventBufferFull is returned when an event is dropped because the buffer is full.
	ErrEventBufferFull = errors.New("event buffer full")
)

// Compile-time checks that ChannelEventBus implements ports interfaces.
var (
	_ ports.EventPublisher  = (*ChannelEventBus)(nil)
	_ ports.EventSubscriber = (*ChannelEventBus)(nil)
)

// ChannelEventBus provides a channel-based event bus for async event handling.
// Events are delivered in publish order by a single dispatcher goroutine to the
// handlers registered for their concrete type.
type ChannelEventBus struct {
	events   chan domain.Event
	handlers map[reflect.Type][]func(context.Context, domain.Event)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.RWMutex
}

// NewChannelEventBus creates a new ChannelEventBus with the given buffer size.
func NewChannelEventBus(bufferSize int) *ChannelEventBus {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	bus := &ChannelEventBus{
		events:   make(chan domain.Event, bufferSize),
		handlers: make(map[reflect.Type][]func(context.Context, domain.Event)),
		ctx:      ctx,
		cancel:   cancel,
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

func (b *ChannelEventBus) dispatch() {
	defer b.wg.Done()
	for event := range b.events {
		b.mu.RLock()
		handlers := b.handlers[reflect.TypeOf(event)]
		b.mu.RUnlock()

		for _, handler := range handlers {
			b.invoke(handler, event)
		}
	}
}

// invoke runs one handler, isolating the dispatcher from its panics.
func (b *ChannelEventBus) invoke(handler func(context.Context, domain.Event), event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "type", reflect.TypeOf(event).Name(), "panic", r)
		}
	}()
	handler(b.ctx, event)
}

// Publish publishes an event.
// Non-blocking: if the channel buffer is full, the event is dropped with a warning.
func (b *ChannelEventBus) Publish(event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	eventType := reflect.TypeOf(event).Name()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", eventType)
		return ErrEventBusClosed
	}

	select {
	case b.events <- event:
		slog.Debug("published event", "type", eventType)
		return nil
	default:
		slog.Warn("event buffer full, dropping event", "type", eventType)
		return ErrEventBufferFull
	}
}

// Subscribe registers a handler for events of eventType.
func (b *ChannelEventBus) Subscribe(
	eventType reflect.Type,
	handler func(context.Context, domain.Event),
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// Close stops accepting events, delivers the ones already buffered and waits
// for the dispatcher to finish. Handlers see a cancelled context during the drain.
func (b *ChannelEventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	close(b.events)
	b.wg.Wait()

	slog.Debug("channel event bus closed")
}
