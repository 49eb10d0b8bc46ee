package scheduling

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("schedule attempt not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrVersionConflict   = errors.New("state version conflict")
	ErrSlotTaken         = errors.New("slot already scheduled for employer")
	ErrDuplicateAttempt  = errors.New("attempt already exists for application")
	ErrSlotNotOffered    = errors.New("slot not offered on this attempt")
	ErrCalendarFailed    = errors.New("calendar provider unavailable")
)

// State is the lifecycle position of a schedule attempt.
type State string

const (
	StateSlotsOffered      State = "slots_offered"
	StateCandidatePicked   State = "candidate_picked_slot"
	StateEmployerConfirmed State = "employer_confirmed"
	StateScheduled         State = "scheduled"
	StateCancelled         State = "cancelled"
)

// CancelSource records who or what cancelled an attempt.
type CancelSource string

const (
	CancelByEmployer    CancelSource = "employer"
	CancelByCandidate   CancelSource = "candidate"
	CancelSystemTimeout CancelSource = "system_timeout"
	CancelExternal      CancelSource = "external"
)

// SlotStatus is the ledger status of one offered slot.
type SlotStatus string

const (
	SlotOffered   SlotStatus = "offered"
	SlotConfirmed SlotStatus = "confirmed"
	SlotReleased  SlotStatus = "released"
)

// Attempt is one scheduling negotiation for a job application. There is at
// most one per application; rows are never hard-deleted, cancellation is a
// terminal state.
type Attempt struct {
	ID                   string       `json:"id"`
	JobID                string       `json:"job_id"`
	ApplicationID        string       `json:"application_id"`
	EmployerID           string       `json:"employer_id"`
	CandidateID          string       `json:"candidate_id"`
	State                State        `json:"state"`
	StateVersion         int          `json:"state_version"`
	CancelSource         CancelSource `json:"cancel_source,omitempty"`
	ChosenSlotStartUTC   *time.Time   `json:"chosen_slot_start_utc,omitempty"`
	ChosenSlotEndUTC     *time.Time   `json:"chosen_slot_end_utc,omitempty"`
	OfferSentAt          *time.Time   `json:"offer_sent_at,omitempty"`
	CandidateConfirmedAt *time.Time   `json:"candidate_confirmed_at,omitempty"`
	MeetingLink          string       `json:"meeting_link,omitempty"`
	ExternalEventID      string       `json:"external_event_id,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// OfferedSlot is one concrete UTC range presented to a candidate. Owned by
// its attempt; released rows stay as permanent history.
type OfferedSlot struct {
	ID           string     `json:"id"`
	AttemptID    string     `json:"attempt_id"`
	SlotStartUTC time.Time  `json:"slot_start_utc"`
	SlotEndUTC   time.Time  `json:"slot_end_utc"`
	Status       SlotStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Range is a half-open [Start, End) UTC interval.
type Range struct {
	Start time.Time `json:"start_utc"`
	End   time.Time `json:"end_utc"`
}

// Overlaps reports whether two half-open ranges intersect. A range ending
// exactly when another begins does not overlap.
func (r Range) Overlaps(other Range) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}
