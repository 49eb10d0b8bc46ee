package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo implements Repo in memory. It mirrors the Postgres semantics
// closely enough for the API to run without a database: version guards,
// the scheduled employer+slot uniqueness check, and all-or-nothing cycles.
type MemoryRepo struct {
	mu       sync.RWMutex
	cycle    sync.Mutex
	attempts map[string]Attempt
	slots    map[string][]OfferedSlot // keyed by attempt id
	byApp    map[string]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		attempts: make(map[string]Attempt),
		slots:    make(map[string][]OfferedSlot),
		byApp:    make(map[string]string),
	}
}

func (r *MemoryRepo) CreateWithOffer(ctx context.Context, attempt Attempt, slots []Range) (Attempt, []OfferedSlot, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byApp[attempt.ApplicationID]; exists {
		return Attempt{}, nil, ErrDuplicateAttempt
	}

	now := time.Now().UTC()
	attempt.State = StateSlotsOffered
	attempt.StateVersion = 1
	attempt.CreatedAt = now
	attempt.UpdatedAt = now

	ledger := make([]OfferedSlot, 0, len(slots))
	for _, s := range slots {
		ledger = append(ledger, OfferedSlot{
			ID:           uuid.NewString(),
			AttemptID:    attempt.ID,
			SlotStartUTC: s.Start,
			SlotEndUTC:   s.End,
			Status:       SlotOffered,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	r.attempts[attempt.ID] = attempt
	r.slots[attempt.ID] = ledger
	r.byApp[attempt.ApplicationID] = attempt.ID
	return attempt, append([]OfferedSlot(nil), ledger...), nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Attempt, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	attempt, ok := r.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return attempt, nil
}

func (r *MemoryRepo) ListSlots(ctx context.Context, attemptID string) ([]OfferedSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]OfferedSlot(nil), r.slots[attemptID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].SlotStartUTC.Before(out[j].SlotStartUTC) })
	return out, nil
}

func (r *MemoryRepo) ConfirmSlot(ctx context.Context, attemptID, slotID string, version int, confirmedAt time.Time) (Attempt, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, ok := r.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrNotFound
	}

	ledger := r.slots[attemptID]
	chosenIdx := -1
	for i, s := range ledger {
		if s.ID == slotID && s.Status == SlotOffered {
			chosenIdx = i
			break
		}
	}
	if chosenIdx < 0 {
		return Attempt{}, ErrSlotNotOffered
	}
	if attempt.StateVersion != version {
		return Attempt{}, ErrVersionConflict
	}

	now := time.Now().UTC()
	for i := range ledger {
		if i == chosenIdx {
			ledger[i].Status = SlotConfirmed
		} else if ledger[i].Status == SlotOffered {
			ledger[i].Status = SlotReleased
		}
		ledger[i].UpdatedAt = now
	}

	start := ledger[chosenIdx].SlotStartUTC
	end := ledger[chosenIdx].SlotEndUTC
	at := confirmedAt
	attempt.State = StateCandidatePicked
	attempt.StateVersion++
	attempt.ChosenSlotStartUTC = &start
	attempt.ChosenSlotEndUTC = &end
	attempt.CandidateConfirmedAt = &at
	attempt.UpdatedAt = now
	r.attempts[attemptID] = attempt
	return attempt, nil
}

func (r *MemoryRepo) MarkEmployerConfirmed(ctx context.Context, attemptID string, version int) (Attempt, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.advanceLocked(attemptID, version, func(a *Attempt) error {
		a.State = StateEmployerConfirmed
		return nil
	})
}

func (r *MemoryRepo) MarkScheduled(ctx context.Context, attemptID string, version int, eventID, meetingLink string) (Attempt, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	for _, other := range r.attempts {
		if other.ID == attemptID || other.State != StateScheduled || other.EmployerID != target.EmployerID {
			continue
		}
		if other.ChosenSlotStartUTC != nil && target.ChosenSlotStartUTC != nil &&
			other.ChosenSlotStartUTC.Equal(*target.ChosenSlotStartUTC) {
			return Attempt{}, ErrSlotTaken
		}
	}

	return r.advanceLocked(attemptID, version, func(a *Attempt) error {
		a.State = StateScheduled
		a.ExternalEventID = eventID
		a.MeetingLink = meetingLink
		return nil
	})
}

func (r *MemoryRepo) Cancel(ctx context.Context, attemptID string, version int, source CancelSource) (Attempt, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelLocked(attemptID, version, source)
}

func (r *MemoryRepo) cancelLocked(attemptID string, version int, source CancelSource) (Attempt, error) {
	attempt, err := r.advanceLocked(attemptID, version, func(a *Attempt) error {
		a.State = StateCancelled
		a.CancelSource = source
		return nil
	})
	if err != nil {
		return Attempt{}, err
	}
	now := time.Now().UTC()
	ledger := r.slots[attemptID]
	for i := range ledger {
		if ledger[i].Status != SlotReleased {
			ledger[i].Status = SlotReleased
			ledger[i].UpdatedAt = now
		}
	}
	return attempt, nil
}

func (r *MemoryRepo) advanceLocked(attemptID string, version int, mutate func(*Attempt) error) (Attempt, error) {
	attempt, ok := r.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	if attempt.StateVersion != version {
		return Attempt{}, ErrVersionConflict
	}
	if err := mutate(&attempt); err != nil {
		return Attempt{}, err
	}
	attempt.StateVersion++
	attempt.UpdatedAt = time.Now().UTC()
	r.attempts[attemptID] = attempt
	return attempt, nil
}

func (r *MemoryRepo) OccupiedRanges(ctx context.Context, employerID string, window Range) ([]Range, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var occupied []Range
	for _, a := range r.attempts {
		if a.EmployerID != employerID {
			continue
		}
		if a.State == StateScheduled && a.ChosenSlotStartUTC != nil && a.ChosenSlotEndUTC != nil {
			rg := Range{Start: *a.ChosenSlotStartUTC, End: *a.ChosenSlotEndUTC}
			if rg.Overlaps(window) {
				occupied = append(occupied, rg)
			}
		}
		for _, s := range r.slots[a.ID] {
			if s.Status == SlotReleased {
				continue
			}
			rg := Range{Start: s.SlotStartUTC, End: s.SlotEndUTC}
			if rg.Overlaps(window) {
				occupied = append(occupied, rg)
			}
		}
	}
	sort.Slice(occupied, func(i, j int) bool { return occupied[i].Start.Before(occupied[j].Start) })
	return occupied, nil
}

func (r *MemoryRepo) RunCycle(ctx context.Context, lockKey int64, fn func(ctx context.Context, ops CycleOps) error) (bool, error) {
	_ = lockKey
	if !r.cycle.TryLock() {
		return false, nil
	}
	defer r.cycle.Unlock()

	// Work on a snapshot so a failed cycle leaves nothing half-applied.
	r.mu.Lock()
	shadow := r.clone()
	r.mu.Unlock()

	if err := fn(ctx, &memoryCycleOps{repo: shadow}); err != nil {
		return true, err
	}

	r.mu.Lock()
	r.attempts = shadow.attempts
	r.slots = shadow.slots
	r.byApp = shadow.byApp
	r.mu.Unlock()
	return true, nil
}

func (r *MemoryRepo) clone() *MemoryRepo {
	c := NewMemoryRepo()
	for id, a := range r.attempts {
		c.attempts[id] = a
	}
	for id, ledger := range r.slots {
		c.slots[id] = append([]OfferedSlot(nil), ledger...)
	}
	for app, id := range r.byApp {
		c.byApp[app] = id
	}
	return c
}

type memoryCycleOps struct {
	repo *MemoryRepo
}

func (o *memoryCycleOps) ExpiredOffers(ctx context.Context, now time.Time, offerWindow, startMargin time.Duration) ([]Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Attempt
	for _, a := range o.repo.attempts {
		if a.State != StateSlotsOffered || a.OfferSentAt == nil {
			continue
		}
		expiry := a.OfferSentAt.Add(offerWindow)
		if earliest, ok := o.earliestOfferedStart(a.ID); ok {
			if slotExpiry := earliest.Add(-startMargin); slotExpiry.Before(expiry) {
				expiry = slotExpiry
			}
		}
		if !expiry.After(now) {
			out = append(out, a)
		}
	}
	sortAttempts(out)
	return out, nil
}

func (o *memoryCycleOps) earliestOfferedStart(attemptID string) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, s := range o.repo.slots[attemptID] {
		if s.Status != SlotOffered {
			continue
		}
		if !found || s.SlotStartUTC.Before(earliest) {
			earliest = s.SlotStartUTC
			found = true
		}
	}
	return earliest, found
}

func (o *memoryCycleOps) ConfirmationTimeouts(ctx context.Context, now time.Time, confirmWindow time.Duration) ([]Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Attempt
	for _, a := range o.repo.attempts {
		if a.State != StateCandidatePicked || a.CandidateConfirmedAt == nil {
			continue
		}
		if !a.CandidateConfirmedAt.Add(confirmWindow).After(now) {
			out = append(out, a)
		}
	}
	sortAttempts(out)
	return out, nil
}

func (o *memoryCycleOps) ScheduledWithEvents(ctx context.Context) ([]Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Attempt
	for _, a := range o.repo.attempts {
		if a.State == StateScheduled && a.ExternalEventID != "" {
			out = append(out, a)
		}
	}
	sortAttempts(out)
	return out, nil
}

func (o *memoryCycleOps) Cancel(ctx context.Context, attemptID string, version int, source CancelSource) (Attempt, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}
	return o.repo.cancelLocked(attemptID, version, source)
}

func sortAttempts(attempts []Attempt) {
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].CreatedAt.Before(attempts[j].CreatedAt) })
}

var _ Repo = (*MemoryRepo)(nil)
