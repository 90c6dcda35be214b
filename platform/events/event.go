// Package events carries lifecycle signals between modules without direct
// coupling. A job transition publishes here and notification, email, and
// payout listeners react on their own schedule.
package events

import (
	"context"
	"time"
)

// Event is implemented by every signal that crosses a module boundary.
type Event interface {
	// EventName identifies the event type, e.g. "job.completed".
	EventName() string
	// OccurredAt is the wall-clock moment the transition happened.
	OccurredAt() time.Time
}

// BaseEvent supplies the timestamp so concrete events only declare their
// payload fields.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler reacts to one event type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function subscribe as a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus fans events out to the handlers subscribed to their name.
type Bus interface {
	// Publish delivers the event to every subscriber asynchronously. A
	// slow or failing listener never blocks the publishing transition.
	Publish(ctx context.Context, event Event)

	// PublishSync delivers the event and waits for every handler,
	// returning the first handler error.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under the name the event reports
	// from EventName.
	Subscribe(eventName string, handler Handler)
}
