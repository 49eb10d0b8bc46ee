package notify

import "context"

// Kind names the state change a notification reports.
type Kind string

const (
	KindOfferSent  Kind = "offer_sent"
	KindSlotPicked Kind = "slot_picked"
	KindScheduled  Kind = "scheduled"
	KindCancelled  Kind = "cancelled"
)

// Notifier delivers scheduling events to the messaging layer. Calls are
// fire-and-forget from the caller's point of view: failures are logged and
// never roll back the state change that triggered them.
type Notifier interface {
	OfferSent(ctx context.Context, event Event) error
	SlotPicked(ctx context.Context, event Event) error
	Scheduled(ctx context.Context, event Event) error
	Cancelled(ctx context.Context, event Event) error
}
