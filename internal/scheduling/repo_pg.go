package scheduling

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const attemptColumns = `id, job_id, application_id, employer_id, candidate_id, state, state_version,
	cancel_source, chosen_slot_start_utc, chosen_slot_end_utc, offer_sent_at, candidate_confirmed_at,
	meeting_link, external_event_id, created_at, updated_at`

func (r *PGRepo) CreateWithOffer(ctx context.Context, attempt Attempt, slots []Range) (Attempt, []OfferedSlot, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertAttempt = `
INSERT INTO schedule_attempts (id, job_id, application_id, employer_id, candidate_id, state, state_version, offer_sent_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $8)`
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, insertAttempt,
		attempt.ID, attempt.JobID, attempt.ApplicationID, attempt.EmployerID, attempt.CandidateID,
		StateSlotsOffered, attempt.OfferSentAt, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Attempt{}, nil, ErrDuplicateAttempt
		}
		return Attempt{}, nil, fmt.Errorf("insert attempt: %w", err)
	}

	const insertSlot = `
INSERT INTO offered_slots (id, attempt_id, slot_start_utc, slot_end_utc, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)`
	ledger := make([]OfferedSlot, 0, len(slots))
	for _, s := range slots {
		slot := OfferedSlot{
			ID:           uuid.NewString(),
			AttemptID:    attempt.ID,
			SlotStartUTC: s.Start,
			SlotEndUTC:   s.End,
			Status:       SlotOffered,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if _, err := tx.ExecContext(ctx, insertSlot, slot.ID, slot.AttemptID, slot.SlotStartUTC, slot.SlotEndUTC, SlotOffered, now); err != nil {
			return Attempt{}, nil, fmt.Errorf("insert offered slot: %w", err)
		}
		ledger = append(ledger, slot)
	}

	if err := tx.Commit(); err != nil {
		return Attempt{}, nil, fmt.Errorf("commit: %w", err)
	}

	attempt.State = StateSlotsOffered
	attempt.StateVersion = 1
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	return attempt, ledger, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM schedule_attempts WHERE id = $1`
	return scanAttempt(r.DB.QueryRowContext(ctx, query, id))
}

func (r *PGRepo) ListSlots(ctx context.Context, attemptID string) ([]OfferedSlot, error) {
	const query = `
SELECT id, attempt_id, slot_start_utc, slot_end_utc, status, created_at, updated_at
FROM offered_slots
WHERE attempt_id = $1
ORDER BY slot_start_utc`
	rows, err := r.DB.QueryContext(ctx, query, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []OfferedSlot
	for rows.Next() {
		var s OfferedSlot
		if err := rows.Scan(&s.ID, &s.AttemptID, &s.SlotStartUTC, &s.SlotEndUTC, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *PGRepo) ConfirmSlot(ctx context.Context, attemptID, slotID string, version int, confirmedAt time.Time) (Attempt, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Release the siblings first so no read inside or after this transaction
	// can observe two confirmed slots.
	const releaseSiblings = `
UPDATE offered_slots SET status = $1, updated_at = $2
WHERE attempt_id = $3 AND id <> $4 AND status = $5`
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, releaseSiblings, SlotReleased, now, attemptID, slotID, SlotOffered); err != nil {
		return Attempt{}, fmt.Errorf("release siblings: %w", err)
	}

	const confirmChosen = `
UPDATE offered_slots SET status = $1, updated_at = $2
WHERE id = $3 AND attempt_id = $4 AND status = $5
RETURNING slot_start_utc, slot_end_utc`
	var slotStart, slotEnd time.Time
	err = tx.QueryRowContext(ctx, confirmChosen, SlotConfirmed, now, slotID, attemptID, SlotOffered).Scan(&slotStart, &slotEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrSlotNotOffered
	}
	if err != nil {
		return Attempt{}, fmt.Errorf("confirm slot: %w", err)
	}

	advance := `
UPDATE schedule_attempts
SET state = $1, state_version = state_version + 1, chosen_slot_start_utc = $2, chosen_slot_end_utc = $3,
	candidate_confirmed_at = $4, updated_at = $5
WHERE id = $6 AND state_version = $7
RETURNING ` + attemptColumns
	attempt, err := scanAttempt(tx.QueryRowContext(ctx, advance, StateCandidatePicked, slotStart, slotEnd, confirmedAt, now, attemptID, version))
	if errors.Is(err, ErrNotFound) {
		return Attempt{}, ErrVersionConflict
	}
	if err != nil {
		return Attempt{}, fmt.Errorf("advance attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Attempt{}, fmt.Errorf("commit: %w", err)
	}
	return attempt, nil
}

func (r *PGRepo) MarkEmployerConfirmed(ctx context.Context, attemptID string, version int) (Attempt, error) {
	query := `
UPDATE schedule_attempts
SET state = $1, state_version = state_version + 1, updated_at = $2
WHERE id = $3 AND state_version = $4
RETURNING ` + attemptColumns
	attempt, err := scanAttempt(r.DB.QueryRowContext(ctx, query, StateEmployerConfirmed, time.Now().UTC(), attemptID, version))
	if errors.Is(err, ErrNotFound) {
		return Attempt{}, ErrVersionConflict
	}
	return attempt, err
}

func (r *PGRepo) MarkScheduled(ctx context.Context, attemptID string, version int, eventID, meetingLink string) (Attempt, error) {
	query := `
UPDATE schedule_attempts
SET state = $1, state_version = state_version + 1, external_event_id = $2, meeting_link = $3, updated_at = $4
WHERE id = $5 AND state_version = $6
RETURNING ` + attemptColumns
	attempt, err := scanAttempt(r.DB.QueryRowContext(ctx, query, StateScheduled, eventID, meetingLink, time.Now().UTC(), attemptID, version))
	if isUniqueViolation(err) {
		return Attempt{}, ErrSlotTaken
	}
	if errors.Is(err, ErrNotFound) {
		return Attempt{}, ErrVersionConflict
	}
	return attempt, err
}

func (r *PGRepo) Cancel(ctx context.Context, attemptID string, version int, source CancelSource) (Attempt, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	attempt, err := cancelAttemptTx(ctx, tx, attemptID, version, source)
	if err != nil {
		return Attempt{}, err
	}
	if err := tx.Commit(); err != nil {
		return Attempt{}, fmt.Errorf("commit: %w", err)
	}
	return attempt, nil
}

// cancelAttemptTx is the single cancellation path: a version-guarded state
// update plus a release of every non-released ledger row, on the caller's
// transaction. User cancellations and reconciliation jobs both end up here.
func cancelAttemptTx(ctx context.Context, tx *sql.Tx, attemptID string, version int, source CancelSource) (Attempt, error) {
	now := time.Now().UTC()
	cancel := `
UPDATE schedule_attempts
SET state = $1, state_version = state_version + 1, cancel_source = $2, updated_at = $3
WHERE id = $4 AND state_version = $5
RETURNING ` + attemptColumns
	attempt, err := scanAttempt(tx.QueryRowContext(ctx, cancel, StateCancelled, source, now, attemptID, version))
	if errors.Is(err, ErrNotFound) {
		return Attempt{}, ErrVersionConflict
	}
	if err != nil {
		return Attempt{}, fmt.Errorf("cancel attempt: %w", err)
	}

	const releaseAll = `
UPDATE offered_slots SET status = $1, updated_at = $2
WHERE attempt_id = $3 AND status <> $1`
	if _, err := tx.ExecContext(ctx, releaseAll, SlotReleased, now, attemptID); err != nil {
		return Attempt{}, fmt.Errorf("release slots: %w", err)
	}
	return attempt, nil
}

func (r *PGRepo) OccupiedRanges(ctx context.Context, employerID string, window Range) ([]Range, error) {
	const query = `
SELECT chosen_slot_start_utc, chosen_slot_end_utc
FROM schedule_attempts
WHERE employer_id = $1 AND state = $2
	AND chosen_slot_start_utc < $4 AND chosen_slot_end_utc > $3
UNION ALL
SELECT os.slot_start_utc, os.slot_end_utc
FROM offered_slots os
JOIN schedule_attempts sa ON sa.id = os.attempt_id
WHERE sa.employer_id = $1 AND os.status IN ($5, $6)
	AND os.slot_start_utc < $4 AND os.slot_end_utc > $3
ORDER BY 1`
	rows, err := r.DB.QueryContext(ctx, query, employerID, StateScheduled, window.Start, window.End, SlotOffered, SlotConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occupied []Range
	for rows.Next() {
		var rg Range
		if err := rows.Scan(&rg.Start, &rg.End); err != nil {
			return nil, err
		}
		occupied = append(occupied, rg)
	}
	return occupied, rows.Err()
}

func (r *PGRepo) RunCycle(ctx context.Context, lockKey int64, fn func(ctx context.Context, ops CycleOps) error) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Transaction-scoped advisory lock: released automatically on commit or
	// rollback, so a crashed or cancelled cycle never leaves it held.
	var acquired bool
	if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1)`, lockKey).Scan(&acquired); err != nil {
		return false, fmt.Errorf("acquire cycle lock: %w", err)
	}
	if !acquired {
		return false, nil
	}

	if err := fn(ctx, &pgCycleOps{tx: tx}); err != nil {
		return true, err
	}
	if err := tx.Commit(); err != nil {
		return true, fmt.Errorf("commit cycle: %w", err)
	}
	return true, nil
}

type pgCycleOps struct {
	tx *sql.Tx
}

func (o *pgCycleOps) ExpiredOffers(ctx context.Context, now time.Time, offerWindow, startMargin time.Duration) ([]Attempt, error) {
	query := `
SELECT ` + attemptColumns + `
FROM schedule_attempts sa
WHERE sa.state = $1
	AND (sa.offer_sent_at <= $2
		OR (SELECT MIN(os.slot_start_utc) FROM offered_slots os WHERE os.attempt_id = sa.id AND os.status = $3) <= $4)
ORDER BY sa.offer_sent_at`
	return queryAttempts(ctx, o.tx, query, StateSlotsOffered, now.Add(-offerWindow), SlotOffered, now.Add(startMargin))
}

func (o *pgCycleOps) ConfirmationTimeouts(ctx context.Context, now time.Time, confirmWindow time.Duration) ([]Attempt, error) {
	query := `
SELECT ` + attemptColumns + `
FROM schedule_attempts sa
WHERE sa.state = $1 AND sa.candidate_confirmed_at <= $2
ORDER BY sa.candidate_confirmed_at`
	return queryAttempts(ctx, o.tx, query, StateCandidatePicked, now.Add(-confirmWindow))
}

func (o *pgCycleOps) ScheduledWithEvents(ctx context.Context) ([]Attempt, error) {
	query := `
SELECT ` + attemptColumns + `
FROM schedule_attempts sa
WHERE sa.state = $1 AND sa.external_event_id IS NOT NULL AND sa.external_event_id <> ''
ORDER BY sa.chosen_slot_start_utc`
	return queryAttempts(ctx, o.tx, query, StateScheduled)
}

func (o *pgCycleOps) Cancel(ctx context.Context, attemptID string, version int, source CancelSource) (Attempt, error) {
	return cancelAttemptTx(ctx, o.tx, attemptID, version, source)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var cancelSource, meetingLink, eventID sql.NullString
	var chosenStart, chosenEnd, offerSentAt, confirmedAt sql.NullTime
	err := row.Scan(
		&a.ID, &a.JobID, &a.ApplicationID, &a.EmployerID, &a.CandidateID, &a.State, &a.StateVersion,
		&cancelSource, &chosenStart, &chosenEnd, &offerSentAt, &confirmedAt,
		&meetingLink, &eventID, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, err
	}
	a.CancelSource = CancelSource(cancelSource.String)
	a.MeetingLink = meetingLink.String
	a.ExternalEventID = eventID.String
	if chosenStart.Valid {
		t := chosenStart.Time.UTC()
		a.ChosenSlotStartUTC = &t
	}
	if chosenEnd.Valid {
		t := chosenEnd.Time.UTC()
		a.ChosenSlotEndUTC = &t
	}
	if offerSentAt.Valid {
		t := offerSentAt.Time.UTC()
		a.OfferSentAt = &t
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		a.CandidateConfirmedAt = &t
	}
	return a, nil
}

type rowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryAttempts(ctx context.Context, q rowQuerier, query string, args ...any) ([]Attempt, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Repo = (*PGRepo)(nil)
