package ports

import "github.com/sglre6355/vcbot/internal/modules/playback/domain"

// EventPublisher defines the interface for publishing events asynchronously.
type EventPublisher interface {
	Publish(event domain.Event) error
}
