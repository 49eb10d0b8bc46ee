package scheduling

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hirelink-backend/internal/availability"
	"hirelink-backend/internal/calendar"
	"hirelink-backend/internal/notify"
)

type fakeCalendar struct {
	created   []calendar.CreateEventInput
	cancelled []string
	failNext  error
	events    map[string]calendar.Event
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: map[string]calendar.Event{}}
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, input calendar.CreateEventInput) (calendar.CreatedEvent, error) {
	_ = ctx
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return calendar.CreatedEvent{}, err
	}
	f.created = append(f.created, input)
	eventID := "evt-" + input.IdempotencyKey
	f.events[eventID] = calendar.Event{Status: calendar.StatusConfirmed, MeetingLink: "https://meet.example/" + input.IdempotencyKey}
	return calendar.CreatedEvent{EventID: eventID, MeetingLink: "https://meet.example/" + input.IdempotencyKey}, nil
}

func (f *fakeCalendar) MarkCancelled(ctx context.Context, eventID string) error {
	_ = ctx
	f.cancelled = append(f.cancelled, eventID)
	delete(f.events, eventID)
	return nil
}

func (f *fakeCalendar) GetEvent(ctx context.Context, eventID string) (calendar.Event, error) {
	_ = ctx
	event, ok := f.events[eventID]
	if !ok {
		return calendar.Event{}, calendar.ErrEventNotFound
	}
	return event, nil
}

type recordingNotifier struct {
	kinds []notify.Kind
	fail  bool
}

func (n *recordingNotifier) record(kind notify.Kind) error {
	n.kinds = append(n.kinds, kind)
	if n.fail {
		return errors.New("delivery down")
	}
	return nil
}

func (n *recordingNotifier) OfferSent(ctx context.Context, e notify.Event) error {
	_, _ = ctx, e
	return n.record(notify.KindOfferSent)
}

func (n *recordingNotifier) SlotPicked(ctx context.Context, e notify.Event) error {
	_, _ = ctx, e
	return n.record(notify.KindSlotPicked)
}

func (n *recordingNotifier) Scheduled(ctx context.Context, e notify.Event) error {
	_, _ = ctx, e
	return n.record(notify.KindScheduled)
}

func (n *recordingNotifier) Cancelled(ctx context.Context, e notify.Event) error {
	_, _ = ctx, e
	return n.record(notify.KindCancelled)
}

func fixedNow() time.Time {
	return time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
}

func setupService(t *testing.T) (*Service, *MemoryRepo, *fakeCalendar, *recordingNotifier) {
	t.Helper()
	repo := NewMemoryRepo()
	availRepo := availability.NewMemoryRepo()
	cal := newFakeCalendar()
	notifier := &recordingNotifier{}
	svc := &Service{
		Repo:             repo,
		AvailabilityRepo: availRepo,
		Calendar:         cal,
		Notifier:         notifier,
		HorizonDays:      14,
		CalendarTimeout:  time.Second,
		Now:              fixedNow,
	}
	return svc, repo, cal, notifier
}

func offerSlots(n int) []Range {
	base := fixedNow().Add(24 * time.Hour)
	slots := make([]Range, 0, n)
	for i := 0; i < n; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		slots = append(slots, Range{Start: start, End: start.Add(30 * time.Minute)})
	}
	return slots
}

func sendOffer(t *testing.T, svc *Service, applicationID string) (Attempt, []OfferedSlot) {
	t.Helper()
	attempt, slots, err := svc.SendOffer(context.Background(), OfferInput{
		JobID:         "job-1",
		ApplicationID: applicationID,
		EmployerID:    "emp-1",
		CandidateID:   "cand-1",
		Slots:         offerSlots(3),
	})
	if err != nil {
		t.Fatalf("SendOffer: %v", err)
	}
	return attempt, slots
}

func TestSendOfferCreatesAttemptWithLedger(t *testing.T) {
	svc, _, _, notifier := setupService(t)

	attempt, slots := sendOffer(t, svc, "app-1")
	if attempt.State != StateSlotsOffered || attempt.StateVersion != 1 {
		t.Fatalf("unexpected attempt: %+v", attempt)
	}
	if attempt.OfferSentAt == nil || !attempt.OfferSentAt.Equal(fixedNow()) {
		t.Fatalf("expected offer_sent_at set to now, got %v", attempt.OfferSentAt)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 ledger rows, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Status != SlotOffered {
			t.Fatalf("expected offered status, got %s", s.Status)
		}
	}
	if len(notifier.kinds) != 1 || notifier.kinds[0] != notify.KindOfferSent {
		t.Fatalf("expected offer_sent notification, got %v", notifier.kinds)
	}
}

func TestSendOfferDuplicateApplicationConflicts(t *testing.T) {
	svc, _, _, _ := setupService(t)

	sendOffer(t, svc, "app-1")
	_, _, err := svc.SendOffer(context.Background(), OfferInput{
		JobID:         "job-1",
		ApplicationID: "app-1",
		EmployerID:    "emp-1",
		CandidateID:   "cand-1",
		Slots:         offerSlots(2),
	})
	if !errors.Is(err, ErrDuplicateAttempt) {
		t.Fatalf("expected ErrDuplicateAttempt, got %v", err)
	}
}

func TestSendOfferRejectsPastSlots(t *testing.T) {
	svc, _, _, _ := setupService(t)

	past := fixedNow().Add(-time.Hour)
	_, _, err := svc.SendOffer(context.Background(), OfferInput{
		JobID:         "job-1",
		ApplicationID: "app-1",
		EmployerID:    "emp-1",
		CandidateID:   "cand-1",
		Slots:         []Range{{Start: past, End: past.Add(30 * time.Minute)}},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPickSlotConfirmsChosenAndReleasesSiblings(t *testing.T) {
	svc, repo, _, notifier := setupService(t)

	attempt, slots := sendOffer(t, svc, "app-1")
	picked, err := svc.PickSlot(context.Background(), attempt.ID, slots[1].ID)
	if err != nil {
		t.Fatalf("PickSlot: %v", err)
	}
	if picked.State != StateCandidatePicked || picked.StateVersion != 2 {
		t.Fatalf("unexpected attempt after pick: %+v", picked)
	}
	if picked.ChosenSlotStartUTC == nil || !picked.ChosenSlotStartUTC.Equal(slots[1].SlotStartUTC) {
		t.Fatalf("expected chosen slot recorded, got %+v", picked)
	}
	if picked.CandidateConfirmedAt == nil {
		t.Fatalf("expected candidate_confirmed_at set")
	}

	ledger, err := repo.ListSlots(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("ListSlots: %v", err)
	}
	confirmed := 0
	for _, s := range ledger {
		switch s.Status {
		case SlotConfirmed:
			confirmed++
			if s.ID != slots[1].ID {
				t.Fatalf("wrong slot confirmed: %s", s.ID)
			}
		case SlotReleased:
		default:
			t.Fatalf("slot %s left in status %s", s.ID, s.Status)
		}
	}
	if confirmed != 1 {
		t.Fatalf("expected exactly one confirmed slot, got %d", confirmed)
	}
	if notifier.kinds[len(notifier.kinds)-1] != notify.KindSlotPicked {
		t.Fatalf("expected slot_picked notification, got %v", notifier.kinds)
	}
}

func TestPickSlotAgainIsNoop(t *testing.T) {
	svc, _, _, _ := setupService(t)

	attempt, slots := sendOffer(t, svc, "app-1")
	first, err := svc.PickSlot(context.Background(), attempt.ID, slots[0].ID)
	if err != nil {
		t.Fatalf("first PickSlot: %v", err)
	}
	second, err := svc.PickSlot(context.Background(), attempt.ID, slots[2].ID)
	if err != nil {
		t.Fatalf("retried PickSlot: %v", err)
	}
	if second.StateVersion != first.StateVersion {
		t.Fatalf("retry must not advance the version: %d vs %d", second.StateVersion, first.StateVersion)
	}
	if !second.ChosenSlotStartUTC.Equal(*first.ChosenSlotStartUTC) {
		t.Fatalf("retry must not change the chosen slot")
	}
}

func TestPickSlotUnknownSlotRejected(t *testing.T) {
	svc, _, _, _ := setupService(t)

	attempt, _ := sendOffer(t, svc, "app-1")
	if _, err := svc.PickSlot(context.Background(), attempt.ID, "slot-nope"); !errors.Is(err, ErrSlotNotOffered) {
		t.Fatalf("expected ErrSlotNotOffered, got %v", err)
	}
}

func TestPickSlotAlreadyStartedRejected(t *testing.T) {
	svc, _, _, _ := setupService(t)

	attempt, slots := sendOffer(t, svc, "app-1")
	svc.Now = func() time.Time { return slots[0].SlotStartUTC.Add(time.Minute) }
	if _, err := svc.PickSlot(context.Background(), attempt.ID, slots[0].ID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEmployerConfirmSchedulesViaCalendar(t *testing.T) {
	svc, _, cal, notifier := setupService(t)

	attempt, slots := sendOffer(t, svc, "app-1")
	if _, err := svc.PickSlot(context.Background(), attempt.ID, slots[0].ID); err != nil {
		t.Fatalf("PickSlot: %v", err)
	}

	scheduled, err := svc.EmployerConfirm(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("EmployerConfirm: %v", err)
	}
	if scheduled.State != StateScheduled {
		t.Fatalf("expected scheduled, got %s", scheduled.State)
	}
	if scheduled.ExternalEventID == "" || scheduled.MeetingLink == "" {
		t.Fatalf("expected event id and meeting link, got %+v", scheduled)
	}
	if len(cal.created) != 1 || cal.created[0].IdempotencyKey != attempt.ID {
		t.Fatalf("expected one event keyed by attempt id, got %+v", cal.created)
	}
	if notifier.kinds[len(notifier.kinds)-1] != notify.KindScheduled {
		t.Fatalf("expected scheduled notification, got %v", notifier.kinds)
	}
}

func TestEmployerConfirmCalendarFailureLeavesEmployerConfirmed(t *testing.T) {
	svc, repo, cal, _ := setupService(t)

	attempt, slots := sendOffer(t, svc, "app-1")
	if _, err := svc.PickSlot(context.Background(), attempt.ID, slots[0].ID); err != nil {
		t.Fatalf("PickSlot: %v", err)
	}

	cal.failNext = fmt.Errorf("provider down")
	if _, err := svc.EmployerConfirm(context.Background(), attempt.ID); !errors.Is(err, ErrCalendarFailed) {
		t.Fatalf("expected ErrCalendarFailed, got %v", err)
	}

	stuck, err := repo.GetByID(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stuck.State != StateEmployerConfirmed {
		t.Fatalf("expected employer_confirmed after calendar failure, got %s", stuck.State)
	}

	// A retried confirm resumes from employer_confirmed and succeeds.
	scheduled, err := svc.EmployerConfirm(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("retried EmployerConfirm: %v", err)
	}
	if scheduled.State != StateScheduled {
		t.Fatalf("expected scheduled after retry, got %s", scheduled.State)
	}
}

func TestEmployerConfirmTwiceIsNoop(t *testing.T) {
	svc, _, cal, _ := setupService(t)

	attempt, slots := sendOffer(t, svc, "app-1")
	if _, err := svc.PickSlot(context.Background(), attempt.ID, slots[0].ID); err != nil {
		t.Fatalf("PickSlot: %v", err)
	}
	first, err := svc.EmployerConfirm(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("EmployerConfirm: %v", err)
	}
	second, err := svc.EmployerConfirm(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("second EmployerConfirm: %v", err)
	}
	if second.StateVersion != first.StateVersion {
		t.Fatalf("confirm retry must not advance the version")
	}
	if len(cal.created) != 1 {
		t.Fatalf("expected a single calendar event, got %d", len(cal.created))
	}
}

func TestEmployerConfirmFromSlotsOfferedRejected(t *testing.T) {
	svc, _, _, _ := setupService(t)

	attempt, _ := sendOffer(t, svc, "app-1")
	if _, err := svc.EmployerConfirm(context.Background(), attempt.ID); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestDoubleBookingLosesWithConflict(t *testing.T) {
	svc, _, _, _ := setupService(t)

	target := offerSlots(1)

	first, firstSlots, err := svc.SendOffer(context.Background(), OfferInput{
		JobID: "job-1", ApplicationID: "app-1", EmployerID: "emp-1", CandidateID: "cand-1",
		Slots: target,
	})
	if err != nil {
		t.Fatalf("SendOffer: %v", err)
	}
	second, secondSlots, err := svc.SendOffer(context.Background(), OfferInput{
		JobID: "job-2", ApplicationID: "app-2", EmployerID: "emp-1", CandidateID: "cand-2",
		Slots: target,
	})
	if err != nil {
		t.Fatalf("SendOffer: %v", err)
	}

	if _, err := svc.PickSlot(context.Background(), first.ID, firstSlots[0].ID); err != nil {
		t.Fatalf("PickSlot first: %v", err)
	}
	if _, err := svc.PickSlot(context.Background(), second.ID, secondSlots[0].ID); err != nil {
		t.Fatalf("PickSlot second: %v", err)
	}

	if _, err := svc.EmployerConfirm(context.Background(), first.ID); err != nil {
		t.Fatalf("EmployerConfirm first: %v", err)
	}
	if _, err := svc.EmployerConfirm(context.Background(), second.ID); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken for second confirm, got %v", err)
	}
}

func TestCancelReleasesLedgerAndCalendarEvent(t *testing.T) {
	svc, repo, cal, notifier := setupService(t)

	attempt, slots := sendOffer(t, svc, "app-1")
	if _, err := svc.PickSlot(context.Background(), attempt.ID, slots[0].ID); err != nil {
		t.Fatalf("PickSlot: %v", err)
	}
	scheduled, err := svc.EmployerConfirm(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("EmployerConfirm: %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), attempt.ID, CancelByEmployer)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.State != StateCancelled || cancelled.CancelSource != CancelByEmployer {
		t.Fatalf("unexpected attempt after cancel: %+v", cancelled)
	}

	ledger, _ := repo.ListSlots(context.Background(), attempt.ID)
	for _, s := range ledger {
		if s.Status != SlotReleased {
			t.Fatalf("slot %s not released after cancel: %s", s.ID, s.Status)
		}
	}
	if len(cal.cancelled) != 1 || cal.cancelled[0] != scheduled.ExternalEventID {
		t.Fatalf("expected calendar event cancelled, got %v", cal.cancelled)
	}
	if notifier.kinds[len(notifier.kinds)-1] != notify.KindCancelled {
		t.Fatalf("expected cancelled notification, got %v", notifier.kinds)
	}
}

func TestCancelTwiceIsNoop(t *testing.T) {
	svc, _, _, _ := setupService(t)

	attempt, _ := sendOffer(t, svc, "app-1")
	first, err := svc.Cancel(context.Background(), attempt.ID, CancelByCandidate)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	second, err := svc.Cancel(context.Background(), attempt.ID, CancelByEmployer)
	if err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	if second.StateVersion != first.StateVersion || second.CancelSource != CancelByCandidate {
		t.Fatalf("cancel retry must not change anything: %+v", second)
	}
}

func TestCancelRejectsSystemSources(t *testing.T) {
	svc, _, _, _ := setupService(t)

	attempt, _ := sendOffer(t, svc, "app-1")
	if _, err := svc.Cancel(context.Background(), attempt.ID, CancelSystemTimeout); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNotificationFailureDoesNotBlockTransition(t *testing.T) {
	svc, repo, _, notifier := setupService(t)
	notifier.fail = true

	attempt, _ := sendOffer(t, svc, "app-1")
	got, err := repo.GetByID(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State != StateSlotsOffered {
		t.Fatalf("expected attempt persisted despite notify failure, got %s", got.State)
	}
}

func TestOpenSlotsWithoutProfileReturnsEmpty(t *testing.T) {
	svc, _, _, _ := setupService(t)

	slots, err := svc.OpenSlots(context.Background(), "emp-unknown", "")
	if err != nil {
		t.Fatalf("OpenSlots: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", slots)
	}
}

func TestOpenSlotsAnchorsDateInEmployerTimezone(t *testing.T) {
	svc, _, _, _ := setupService(t)

	_, err := svc.AvailabilityRepo.Upsert(context.Background(), availability.Profile{
		EmployerID:    "emp-ny",
		WorkingDays:   []int{0, 1, 2, 3, 4, 5, 6},
		StartTime:     "09:00",
		EndTime:       "17:00",
		Timezone:      "America/New_York",
		SlotMinutes:   30,
		BufferMinutes: 10,
	})
	if err != nil {
		t.Fatalf("Upsert profile: %v", err)
	}

	slots, err := svc.OpenSlots(context.Background(), "emp-ny", "2026-01-05")
	if err != nil {
		t.Fatalf("OpenSlots: %v", err)
	}
	if len(slots) == 0 {
		t.Fatalf("expected slots")
	}

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	// A window asked for from Jan 5 must not open on Jan 4, even though
	// midnight UTC of Jan 5 is still Jan 4 on the New York wall clock.
	first := slots[0].Start.In(loc)
	if first.Year() != 2026 || first.Month() != time.January || first.Day() != 5 {
		t.Fatalf("expected first slot on 2026-01-05 local, got %s", first)
	}

	if _, err := svc.OpenSlots(context.Background(), "emp-ny", "not-a-date"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for malformed date, got %v", err)
	}
}

func TestOpenSlotsExcludesHeldOffers(t *testing.T) {
	svc, _, _, _ := setupService(t)

	_, err := svc.AvailabilityRepo.Upsert(context.Background(), availability.Profile{
		EmployerID:    "emp-1",
		WorkingDays:   []int{1, 2, 3, 4, 5},
		StartTime:     "09:00",
		EndTime:       "17:00",
		Timezone:      "UTC",
		SlotMinutes:   30,
		BufferMinutes: 30,
	})
	if err != nil {
		t.Fatalf("Upsert profile: %v", err)
	}

	before, err := svc.OpenSlots(context.Background(), "emp-1", "")
	if err != nil {
		t.Fatalf("OpenSlots: %v", err)
	}
	if len(before) == 0 {
		t.Fatalf("expected open slots")
	}

	// Offer the first open slot to a candidate; it must disappear.
	_, _, err = svc.SendOffer(context.Background(), OfferInput{
		JobID: "job-1", ApplicationID: "app-1", EmployerID: "emp-1", CandidateID: "cand-1",
		Slots: []Range{before[0]},
	})
	if err != nil {
		t.Fatalf("SendOffer: %v", err)
	}

	after, err := svc.OpenSlots(context.Background(), "emp-1", "")
	if err != nil {
		t.Fatalf("OpenSlots: %v", err)
	}
	if len(after) != len(before)-1 {
		t.Fatalf("expected one fewer slot, got %d vs %d", len(after), len(before))
	}
	for _, s := range after {
		if s.Overlaps(before[0]) {
			t.Fatalf("held slot still offered: %v", s)
		}
	}
}
