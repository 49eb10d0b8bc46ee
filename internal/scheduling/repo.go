package scheduling

import (
	"context"
	"time"
)

// Repo defines persistence for schedule attempts and their slot ledger.
// Mutations are version-guarded: callers pass the state_version they read and
// get ErrVersionConflict back when a concurrent transition won.
type Repo interface {
	// CreateWithOffer inserts the attempt in slots_offered together with its
	// ledger rows, in one transaction. A second attempt for the same
	// application fails with ErrDuplicateAttempt.
	CreateWithOffer(ctx context.Context, attempt Attempt, slots []Range) (Attempt, []OfferedSlot, error)

	GetByID(ctx context.Context, id string) (Attempt, error)
	ListSlots(ctx context.Context, attemptID string) ([]OfferedSlot, error)

	// ConfirmSlot locks the chosen slot for the candidate: releases every
	// sibling still offered, marks the chosen row confirmed, and moves the
	// attempt to candidate_picked_slot with the chosen range and
	// candidate_confirmed_at set. One transaction; the sibling release happens
	// before the confirm so no reader ever sees two confirmed slots.
	ConfirmSlot(ctx context.Context, attemptID, slotID string, version int, confirmedAt time.Time) (Attempt, error)

	// MarkEmployerConfirmed moves the attempt to employer_confirmed.
	MarkEmployerConfirmed(ctx context.Context, attemptID string, version int) (Attempt, error)

	// MarkScheduled moves the attempt to scheduled and stores the calendar
	// event id and meeting link. A second scheduled attempt on the same
	// employer+slot fails with ErrSlotTaken.
	MarkScheduled(ctx context.Context, attemptID string, version int, eventID, meetingLink string) (Attempt, error)

	// Cancel moves the attempt to cancelled and releases every non-released
	// ledger row, in one transaction. Every cancellation, user or system,
	// goes through here.
	Cancel(ctx context.Context, attemptID string, version int, source CancelSource) (Attempt, error)

	// OccupiedRanges returns every range unavailable for the employer within
	// the window: chosen ranges of scheduled attempts plus offered/confirmed
	// ledger rows.
	OccupiedRanges(ctx context.Context, employerID string, window Range) ([]Range, error)

	// RunCycle runs fn inside one transaction holding the cluster-wide
	// reconciliation lock. Returns acquired=false (and does not call fn) when
	// another worker holds the lock. Any error from fn rolls back everything
	// fn did through ops.
	RunCycle(ctx context.Context, lockKey int64, fn func(ctx context.Context, ops CycleOps) error) (acquired bool, err error)
}

// CycleOps is the view of the store available inside a reconciliation cycle.
// All reads and writes share the cycle's transaction.
type CycleOps interface {
	// ExpiredOffers returns attempts in slots_offered whose effective expiry
	// has passed: the earlier of offer_sent_at+offerWindow and the earliest
	// offered slot's start minus startMargin.
	ExpiredOffers(ctx context.Context, now time.Time, offerWindow, startMargin time.Duration) ([]Attempt, error)

	// ConfirmationTimeouts returns attempts in candidate_picked_slot whose
	// candidate_confirmed_at is older than confirmWindow.
	ConfirmationTimeouts(ctx context.Context, now time.Time, confirmWindow time.Duration) ([]Attempt, error)

	// ScheduledWithEvents returns scheduled attempts carrying an external
	// calendar event id.
	ScheduledWithEvents(ctx context.Context) ([]Attempt, error)

	// Cancel is the same transition as Repo.Cancel, applied inside the cycle
	// transaction.
	Cancel(ctx context.Context, attemptID string, version int, source CancelSource) (Attempt, error)
}
