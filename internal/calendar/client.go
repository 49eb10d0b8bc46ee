package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrEventNotFound reports that the provider no longer knows the event.
var ErrEventNotFound = errors.New("calendar event not found")

// Event statuses as reported by GetEvent.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// CreateEventInput describes the meeting event to create.
type CreateEventInput struct {
	StartUTC       time.Time
	EndUTC         time.Time
	Summary        string
	Description    string
	// IdempotencyKey makes retried creates land on the same provider event.
	IdempotencyKey string
}

// CreatedEvent is the provider's handle on a created meeting.
type CreatedEvent struct {
	EventID     string
	MeetingLink string
}

// Event is the live state of a provider event.
type Event struct {
	Status      string
	MeetingLink string
}

// Client is the narrow contract this service has with the calendar/meeting
// provider.
type Client interface {
	CreateEvent(ctx context.Context, input CreateEventInput) (CreatedEvent, error)
	// MarkCancelled is best-effort; an already-gone event is success.
	MarkCancelled(ctx context.Context, eventID string) error
	// GetEvent returns ErrEventNotFound when the provider no longer has it.
	GetEvent(ctx context.Context, eventID string) (Event, error)
}
