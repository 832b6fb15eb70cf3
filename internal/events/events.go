// Package events fans memory status changes out to live listeners.
package events

import (
	"context"
	"errors"
	"time"

	"voice-memories-go/internal/types"
)

// Event is the payload sent on every status transition.
type Event struct {
	Seq       int64        `json:"seq,omitempty"`
	MemoryID  string       `json:"memory_id"`
	Status    types.Status `json:"status"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// FromArtifact builds the event for a memory's current state.
func FromArtifact(a *types.Artifact) Event {
	return Event{MemoryID: a.ID, Status: a.Status, UpdatedAt: a.UpdatedAt}
}

// Publisher delivers events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber streams events until ctx is cancelled or the returned cancel
// function is called.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan Event, func(), error)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
