package notify

import (
	"context"

	"hirelink-backend/internal/shared/telemetry"
)

// LogNotifier writes notifications as telemetry lines. Used when no delivery
// queue is configured.
type LogNotifier struct{}

func (LogNotifier) OfferSent(ctx context.Context, event Event) error {
	return logEvent(ctx, KindOfferSent, event)
}

func (LogNotifier) SlotPicked(ctx context.Context, event Event) error {
	return logEvent(ctx, KindSlotPicked, event)
}

func (LogNotifier) Scheduled(ctx context.Context, event Event) error {
	return logEvent(ctx, KindScheduled, event)
}

func (LogNotifier) Cancelled(ctx context.Context, event Event) error {
	return logEvent(ctx, KindCancelled, event)
}

func logEvent(ctx context.Context, kind Kind, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	telemetry.Info("notify."+string(kind), map[string]any{
		"attempt_id":     event.AttemptID,
		"application_id": event.ApplicationID,
		"employer_id":    event.EmployerID,
		"candidate_id":   event.CandidateID,
		"cancel_source":  event.CancelSource,
	})
	return nil
}

var _ Notifier = (LogNotifier{})
