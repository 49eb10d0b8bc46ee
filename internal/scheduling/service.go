package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hirelink-backend/internal/availability"
	"hirelink-backend/internal/calendar"
	"hirelink-backend/internal/notify"
	"hirelink-backend/internal/shared/metrics"
	"hirelink-backend/internal/shared/telemetry"
)

// Service coordinates the scheduling lifecycle: slot generation, offers,
// candidate picks, employer confirmation, and cancellation.
type Service struct {
	Repo             Repo
	AvailabilityRepo availability.Repo
	Calendar         calendar.Client
	Notifier         notify.Notifier

	HorizonDays     int
	CalendarTimeout time.Duration

	// Now is a clock override for tests; nil means time.Now.
	Now func() time.Time
}

// OfferInput is the request to open a scheduling attempt with a set of slots.
type OfferInput struct {
	JobID         string
	ApplicationID string
	EmployerID    string
	CandidateID   string
	Slots         []Range
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// OpenSlots generates the bookable slots for an employer over the forward
// window. fromDate is an optional YYYY-MM-DD calendar date resolved in the
// employer's timezone; empty means today in that timezone. An employer
// without an availability profile gets an empty list.
func (s *Service) OpenSlots(ctx context.Context, employerID, fromDate string) ([]Range, error) {
	if employerID == "" {
		return nil, fmt.Errorf("%w: employer id is required", ErrInvalidInput)
	}
	profile, err := s.AvailabilityRepo.GetByEmployer(ctx, employerID)
	if errors.Is(err, availability.ErrNotFound) {
		return []Range{}, nil
	}
	if err != nil {
		return nil, err
	}

	days := s.HorizonDays
	if days <= 0 {
		days = 14
	}

	loc, err := profile.Location()
	if err != nil {
		return nil, err
	}
	// The date names a calendar day on the employer's wall clock, so it must
	// be anchored in the profile timezone, not UTC.
	var windowStart time.Time
	if fromDate != "" {
		windowStart, err = time.ParseInLocation("2006-01-02", fromDate, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrInvalidInput)
		}
	} else {
		local := s.now().In(loc)
		windowStart = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	}
	window := Range{Start: windowStart.UTC(), End: windowStart.AddDate(0, 0, days).UTC()}

	occupied, err := s.Repo.OccupiedRanges(ctx, employerID, window)
	if err != nil {
		return nil, err
	}
	slots, err := GenerateSlots(profile, windowStart, days, occupied)
	if err != nil {
		return nil, err
	}
	if slots == nil {
		slots = []Range{}
	}
	return slots, nil
}

// SendOffer creates a scheduling attempt in slots_offered with its ledger.
func (s *Service) SendOffer(ctx context.Context, input OfferInput) (Attempt, []OfferedSlot, error) {
	if input.JobID == "" || input.ApplicationID == "" || input.EmployerID == "" || input.CandidateID == "" {
		return Attempt{}, nil, fmt.Errorf("%w: job, application, employer, and candidate ids are required", ErrInvalidInput)
	}
	if len(input.Slots) == 0 {
		return Attempt{}, nil, fmt.Errorf("%w: at least one slot is required", ErrInvalidInput)
	}
	now := s.now()
	for _, slot := range input.Slots {
		if !slot.Start.Before(slot.End) {
			return Attempt{}, nil, fmt.Errorf("%w: slot start must be before end", ErrInvalidInput)
		}
		if slot.Start.Before(now) {
			return Attempt{}, nil, fmt.Errorf("%w: slot starts in the past", ErrInvalidInput)
		}
	}

	attempt := Attempt{
		ID:            uuid.NewString(),
		JobID:         input.JobID,
		ApplicationID: input.ApplicationID,
		EmployerID:    input.EmployerID,
		CandidateID:   input.CandidateID,
		OfferSentAt:   &now,
	}
	created, ledger, err := s.Repo.CreateWithOffer(ctx, attempt, input.Slots)
	if err != nil {
		return Attempt{}, nil, err
	}

	metrics.IncOfferSent()
	s.notifyAsync(ctx, created, s.notifierOfferSent)
	return created, ledger, nil
}

// Get returns an attempt together with its slot ledger.
func (s *Service) Get(ctx context.Context, attemptID string) (Attempt, []OfferedSlot, error) {
	if attemptID == "" {
		return Attempt{}, nil, fmt.Errorf("%w: attempt id is required", ErrInvalidInput)
	}
	attempt, err := s.Repo.GetByID(ctx, attemptID)
	if err != nil {
		return Attempt{}, nil, err
	}
	slots, err := s.Repo.ListSlots(ctx, attemptID)
	if err != nil {
		return Attempt{}, nil, err
	}
	return attempt, slots, nil
}

// PickSlot records the candidate's choice: the chosen slot is confirmed, its
// siblings released, and the attempt moves to candidate_picked_slot. Picking
// again on an attempt already past this state is a no-op success.
func (s *Service) PickSlot(ctx context.Context, attemptID, slotID string) (Attempt, error) {
	if attemptID == "" || slotID == "" {
		return Attempt{}, fmt.Errorf("%w: attempt id and slot id are required", ErrInvalidInput)
	}
	attempt, err := s.Repo.GetByID(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if attempt.State == StateCandidatePicked {
		return attempt, nil
	}
	if !CanTransition(attempt.State, StateCandidatePicked) {
		return Attempt{}, fmt.Errorf("%w: cannot pick a slot from state %s", ErrIllegalTransition, attempt.State)
	}

	slots, err := s.Repo.ListSlots(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	now := s.now()
	found := false
	for _, slot := range slots {
		if slot.ID != slotID {
			continue
		}
		found = true
		if slot.Status != SlotOffered {
			return Attempt{}, ErrSlotNotOffered
		}
		if !slot.SlotStartUTC.After(now) {
			return Attempt{}, fmt.Errorf("%w: slot has already started", ErrInvalidInput)
		}
	}
	if !found {
		return Attempt{}, ErrSlotNotOffered
	}

	picked, err := s.Repo.ConfirmSlot(ctx, attemptID, slotID, attempt.StateVersion, now)
	if err != nil {
		return Attempt{}, err
	}

	s.notifyAsync(ctx, picked, s.notifierSlotPicked)
	return picked, nil
}

// EmployerConfirm advances the attempt to employer_confirmed and then tries
// to finalize it: the calendar event is created outside any transaction,
// bounded by a timeout, and only a successful create moves the attempt to
// scheduled. On calendar failure the attempt stays employer_confirmed so a
// retried confirm resumes from there. Confirming a scheduled attempt is a
// no-op success.
func (s *Service) EmployerConfirm(ctx context.Context, attemptID string) (Attempt, error) {
	if attemptID == "" {
		return Attempt{}, fmt.Errorf("%w: attempt id is required", ErrInvalidInput)
	}
	attempt, err := s.Repo.GetByID(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if attempt.State == StateScheduled {
		return attempt, nil
	}

	switch attempt.State {
	case StateCandidatePicked:
		attempt, err = s.Repo.MarkEmployerConfirmed(ctx, attemptID, attempt.StateVersion)
		if err != nil {
			return Attempt{}, err
		}
	case StateEmployerConfirmed:
		// Retried confirm after an earlier calendar failure.
	default:
		return Attempt{}, fmt.Errorf("%w: cannot confirm from state %s", ErrIllegalTransition, attempt.State)
	}

	if attempt.ChosenSlotStartUTC == nil || attempt.ChosenSlotEndUTC == nil {
		return Attempt{}, fmt.Errorf("%w: attempt has no chosen slot", ErrInvalidInput)
	}

	created, err := s.createCalendarEvent(ctx, attempt)
	if err != nil {
		telemetry.Error("scheduling.calendar_create_failed", map[string]any{
			"attempt_id": attempt.ID,
			"error":      err.Error(),
		})
		return attempt, fmt.Errorf("%w: %v", ErrCalendarFailed, err)
	}

	scheduled, err := s.Repo.MarkScheduled(ctx, attemptID, attempt.StateVersion, created.EventID, created.MeetingLink)
	if err != nil {
		return Attempt{}, err
	}

	metrics.IncAttemptScheduled()
	s.notifyAsync(ctx, scheduled, s.notifierScheduled)
	return scheduled, nil
}

// Cancel is the single cancellation entry point for user-initiated requests.
// Cancelling a cancelled attempt is a no-op success.
func (s *Service) Cancel(ctx context.Context, attemptID string, source CancelSource) (Attempt, error) {
	if attemptID == "" {
		return Attempt{}, fmt.Errorf("%w: attempt id is required", ErrInvalidInput)
	}
	if source != CancelByEmployer && source != CancelByCandidate {
		return Attempt{}, fmt.Errorf("%w: cancel source must be employer or candidate", ErrInvalidInput)
	}
	attempt, err := s.Repo.GetByID(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if attempt.State == StateCancelled {
		return attempt, nil
	}

	cancelled, err := s.Repo.Cancel(ctx, attemptID, attempt.StateVersion, source)
	if err != nil {
		return Attempt{}, err
	}

	metrics.IncAttemptCancelled()
	s.releaseCalendarEvent(ctx, cancelled)
	s.notifyAsync(ctx, cancelled, s.notifierCancelled)
	return cancelled, nil
}

func (s *Service) createCalendarEvent(ctx context.Context, attempt Attempt) (calendar.CreatedEvent, error) {
	callCtx, cancel := s.boundedCtx(ctx)
	defer cancel()
	return s.Calendar.CreateEvent(callCtx, calendar.CreateEventInput{
		StartUTC:       *attempt.ChosenSlotStartUTC,
		EndUTC:         *attempt.ChosenSlotEndUTC,
		Summary:        fmt.Sprintf("Interview for job %s", attempt.JobID),
		Description:    fmt.Sprintf("Interview between employer %s and candidate %s", attempt.EmployerID, attempt.CandidateID),
		IdempotencyKey: attempt.ID,
	})
}

// releaseCalendarEvent is best-effort: a failure must not block cancellation.
func (s *Service) releaseCalendarEvent(ctx context.Context, attempt Attempt) {
	if attempt.ExternalEventID == "" || s.Calendar == nil {
		return
	}
	callCtx, cancel := s.boundedCtx(ctx)
	defer cancel()
	if err := s.Calendar.MarkCancelled(callCtx, attempt.ExternalEventID); err != nil {
		telemetry.Warn("scheduling.calendar_cancel_failed", map[string]any{
			"attempt_id": attempt.ID,
			"event_id":   attempt.ExternalEventID,
			"error":      err.Error(),
		})
	}
}

func (s *Service) boundedCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.CalendarTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) notifierOfferSent(ctx context.Context, event notify.Event) error {
	return s.Notifier.OfferSent(ctx, event)
}

func (s *Service) notifierSlotPicked(ctx context.Context, event notify.Event) error {
	return s.Notifier.SlotPicked(ctx, event)
}

func (s *Service) notifierScheduled(ctx context.Context, event notify.Event) error {
	return s.Notifier.Scheduled(ctx, event)
}

func (s *Service) notifierCancelled(ctx context.Context, event notify.Event) error {
	return s.Notifier.Cancelled(ctx, event)
}

// notifyAsync delivers a notification without letting a delivery failure
// surface to the caller.
func (s *Service) notifyAsync(ctx context.Context, attempt Attempt, deliver func(context.Context, notify.Event) error) {
	if s.Notifier == nil {
		return
	}
	callCtx, cancel := s.boundedCtx(ctx)
	defer cancel()
	if err := deliver(callCtx, NotifyEvent(attempt, s.now())); err != nil {
		telemetry.Warn("scheduling.notify_failed", map[string]any{
			"attempt_id": attempt.ID,
			"state":      string(attempt.State),
			"error":      err.Error(),
		})
	}
}

// NotifyEvent builds the notification payload for an attempt's current state.
func NotifyEvent(attempt Attempt, at time.Time) notify.Event {
	event := notify.Event{
		AttemptID:     attempt.ID,
		ApplicationID: attempt.ApplicationID,
		EmployerID:    attempt.EmployerID,
		CandidateID:   attempt.CandidateID,
		MeetingLink:   attempt.MeetingLink,
		CancelSource:  string(attempt.CancelSource),
		OccurredAt:    at.Format(time.RFC3339),
	}
	if attempt.ChosenSlotStartUTC != nil {
		event.SlotStartUTC = attempt.ChosenSlotStartUTC.Format(time.RFC3339)
	}
	if attempt.ChosenSlotEndUTC != nil {
		event.SlotEndUTC = attempt.ChosenSlotEndUTC.Format(time.RFC3339)
	}
	return event
}
