package calendar

import (
	"context"
	"sync"
)

// LocalClient fabricates meeting events in memory. Used when no provider
// credentials are configured, so the scheduling flow still works end to end
// in dev.
type LocalClient struct {
	mu     sync.Mutex
	events map[string]Event
}

// NewLocalClient constructs a LocalClient.
func NewLocalClient() *LocalClient {
	return &LocalClient{events: make(map[string]Event)}
}

func (l *LocalClient) CreateEvent(ctx context.Context, input CreateEventInput) (CreatedEvent, error) {
	if err := ctx.Err(); err != nil {
		return CreatedEvent{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	eventID := deterministicEventID(input.IdempotencyKey)
	link := "https://meet.local/" + eventID
	l.events[eventID] = Event{Status: StatusConfirmed, MeetingLink: link}
	return CreatedEvent{EventID: eventID, MeetingLink: link}, nil
}

func (l *LocalClient) MarkCancelled(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.events, eventID)
	return nil
}

func (l *LocalClient) GetEvent(ctx context.Context, eventID string) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	event, ok := l.events[eventID]
	if !ok {
		return Event{}, ErrEventNotFound
	}
	return event, nil
}

var _ Client = (*LocalClient)(nil)
