package reconcile

import (
	"context"
	"errors"
	"time"

	"hirelink-backend/internal/calendar"
	"hirelink-backend/internal/notify"
	"hirelink-backend/internal/scheduling"
	"hirelink-backend/internal/shared/metrics"
	"hirelink-backend/internal/shared/telemetry"
)

// DefaultLockKey identifies the cluster-wide reconciliation mutex. All
// workers must use the same key.
const DefaultLockKey int64 = 742_190_211

// Runner executes the three reconciliation jobs: offer expiry,
// employer-confirmation timeout, and external-cancellation detection. Each
// cycle runs inside one lock-holding transaction; a cycle that cannot take
// the lock is a silent no-op, and any error rolls the whole cycle back.
type Runner struct {
	Repo     scheduling.Repo
	Calendar calendar.Client
	Notifier notify.Notifier

	OfferWindow         time.Duration
	ConfirmWindow       time.Duration
	SlotStartMargin     time.Duration
	ExternalCallTimeout time.Duration
	LockKey             int64

	// Now is a clock override for tests; nil means time.Now.
	Now func() time.Time
}

// Result summarizes one reconciliation cycle.
type Result struct {
	Skipped         bool
	ExpiredOffers   int
	ConfirmTimeouts int
	ExternalCancels int
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) lockKey() int64 {
	if r.LockKey != 0 {
		return r.LockKey
	}
	return DefaultLockKey
}

// Run loops until the context is cancelled, executing one cycle immediately
// and then one per interval.
func (r *Runner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.runAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runAndLog(ctx)
		}
	}
}

func (r *Runner) runAndLog(ctx context.Context) {
	result, err := r.RunOnce(ctx)
	if err != nil {
		telemetry.Error("reconcile.cycle_failed", map[string]any{"error": err.Error()})
		return
	}
	if result.Skipped {
		return
	}
	telemetry.Info("reconcile.cycle_done", map[string]any{
		"expired_offers":   result.ExpiredOffers,
		"confirm_timeouts": result.ConfirmTimeouts,
		"external_cancels": result.ExternalCancels,
	})
}

// RunOnce executes a single cycle. Notifications for cancelled attempts are
// sent only after the cycle commits.
func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	started := time.Now()
	var result Result
	var cancelled []scheduling.Attempt

	acquired, err := r.Repo.RunCycle(ctx, r.lockKey(), func(ctx context.Context, ops scheduling.CycleOps) error {
		now := r.now()

		expired, err := ops.ExpiredOffers(ctx, now, r.OfferWindow, r.SlotStartMargin)
		if err != nil {
			return err
		}
		for _, attempt := range expired {
			done, err := ops.Cancel(ctx, attempt.ID, attempt.StateVersion, scheduling.CancelSystemTimeout)
			if err != nil {
				return err
			}
			cancelled = append(cancelled, done)
			result.ExpiredOffers++
		}

		timedOut, err := ops.ConfirmationTimeouts(ctx, now, r.ConfirmWindow)
		if err != nil {
			return err
		}
		for _, attempt := range timedOut {
			done, err := ops.Cancel(ctx, attempt.ID, attempt.StateVersion, scheduling.CancelSystemTimeout)
			if err != nil {
				return err
			}
			cancelled = append(cancelled, done)
			result.ConfirmTimeouts++
		}

		externallyCancelled, err := r.pollExternal(ctx, ops)
		if err != nil {
			return err
		}
		cancelled = append(cancelled, externallyCancelled...)
		result.ExternalCancels = len(externallyCancelled)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if !acquired {
		return Result{Skipped: true}, nil
	}

	metrics.IncReconcileCycle()
	metrics.ObserveReconcileCycleMs(float64(time.Since(started)) / float64(time.Millisecond))
	for _, attempt := range cancelled {
		metrics.IncAttemptCancelled()
		r.notifyCancelled(ctx, attempt)
	}
	return result, nil
}

// pollExternal checks every scheduled attempt's provider event. A missing or
// cancelled event cancels the attempt; a provider error leaves the attempt
// untouched for the next cycle.
func (r *Runner) pollExternal(ctx context.Context, ops scheduling.CycleOps) ([]scheduling.Attempt, error) {
	scheduled, err := ops.ScheduledWithEvents(ctx)
	if err != nil {
		return nil, err
	}

	var cancelled []scheduling.Attempt
	for _, attempt := range scheduled {
		event, err := r.getEvent(ctx, attempt.ExternalEventID)
		switch {
		case errors.Is(err, calendar.ErrEventNotFound):
		case err != nil:
			telemetry.Warn("reconcile.poll_failed", map[string]any{
				"attempt_id": attempt.ID,
				"event_id":   attempt.ExternalEventID,
				"error":      err.Error(),
			})
			continue
		case event.Status != calendar.StatusCancelled:
			continue
		}

		done, err := ops.Cancel(ctx, attempt.ID, attempt.StateVersion, scheduling.CancelExternal)
		if err != nil {
			return nil, err
		}
		cancelled = append(cancelled, done)
	}
	return cancelled, nil
}

func (r *Runner) getEvent(ctx context.Context, eventID string) (calendar.Event, error) {
	timeout := r.ExternalCallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.Calendar.GetEvent(callCtx, eventID)
}

func (r *Runner) notifyCancelled(ctx context.Context, attempt scheduling.Attempt) {
	if r.Notifier == nil {
		return
	}
	if err := r.Notifier.Cancelled(ctx, scheduling.NotifyEvent(attempt, r.now())); err != nil {
		telemetry.Warn("reconcile.notify_failed", map[string]any{
			"attempt_id": attempt.ID,
			"error":      err.Error(),
		})
	}
}
