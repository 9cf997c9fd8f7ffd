package ports

import (
	"context"

	"github.com/gpus/backend/internal/domain/events"
)

// EventHandler is a function that handles an event
type EventHandler func(ctx context.Context, payload events.Payload) error

// EventPublisher provides event publishing capabilities.
type EventPublisher interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType events.EventType, handler EventHandler) func()

	// Publish dispatches an event to all registered handlers.
	// Returns an error if any handler fails.
	Publish(ctx context.Context, eventType events.EventType, payload events.Payload) error
}

// EventOutbox stores events inside the caller's transaction for later delivery
type EventOutbox interface {
	Enqueue(ctx context.Context, eventType events.EventType, payload events.Payload) error
}
