package availability

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound       = errors.New("availability profile not found")
	ErrInvalidProfile = errors.New("invalid availability profile")
)

// Allowed slot and buffer lengths, in minutes.
var (
	allowedSlotMinutes   = map[int]struct{}{15: {}, 30: {}, 45: {}}
	allowedBufferMinutes = map[int]struct{}{5: {}, 10: {}, 15: {}, 30: {}}
)

// Profile is an employer's weekly working pattern. There is at most one per
// employer; writes are upserts and profiles are never deleted.
type Profile struct {
	EmployerID    string    `json:"employer_id"`
	WorkingDays   []int     `json:"working_days"` // time.Weekday values, Sunday=0
	StartTime     string    `json:"start_time"`   // "HH:MM" local wall clock
	EndTime       string    `json:"end_time"`
	Timezone      string    `json:"timezone"` // IANA name
	SlotMinutes   int       `json:"slot_minutes"`
	BufferMinutes int       `json:"buffer_minutes"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Validate checks the profile against the allowed working pattern shape.
func (p Profile) Validate() error {
	if p.EmployerID == "" {
		return fmt.Errorf("%w: employer id is required", ErrInvalidProfile)
	}
	if len(p.WorkingDays) == 0 {
		return fmt.Errorf("%w: at least one working day is required", ErrInvalidProfile)
	}
	seen := map[int]struct{}{}
	for _, d := range p.WorkingDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: working day %d out of range", ErrInvalidProfile, d)
		}
		if _, dup := seen[d]; dup {
			return fmt.Errorf("%w: working day %d repeated", ErrInvalidProfile, d)
		}
		seen[d] = struct{}{}
	}
	start, err := ParseClock(p.StartTime)
	if err != nil {
		return fmt.Errorf("%w: start_time: %v", ErrInvalidProfile, err)
	}
	end, err := ParseClock(p.EndTime)
	if err != nil {
		return fmt.Errorf("%w: end_time: %v", ErrInvalidProfile, err)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start_time must be before end_time", ErrInvalidProfile)
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidProfile, p.Timezone)
	}
	if _, ok := allowedSlotMinutes[p.SlotMinutes]; !ok {
		return fmt.Errorf("%w: slot_minutes must be one of 15, 30, 45", ErrInvalidProfile)
	}
	if _, ok := allowedBufferMinutes[p.BufferMinutes]; !ok {
		return fmt.Errorf("%w: buffer_minutes must be one of 5, 10, 15, 30", ErrInvalidProfile)
	}
	return nil
}

// Location resolves the profile timezone. Callers should have validated first.
func (p Profile) Location() (*time.Location, error) {
	return time.LoadLocation(p.Timezone)
}

// WorksOn reports whether the given weekday is a working day.
func (p Profile) WorksOn(day time.Weekday) bool {
	for _, d := range p.WorkingDays {
		if time.Weekday(d) == day {
			return true
		}
	}
	return false
}

// Clock is a wall-clock time of day, independent of date and zone.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (a "HH:MM:SS" suffix is tolerated and ignored).
func ParseClock(s string) (Clock, error) {
	if len(s) < 5 {
		return Clock{}, fmt.Errorf("invalid time of day %q", s)
	}
	t, err := time.Parse("15:04", s[:5])
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time of day %q", s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Before reports whether c is earlier in the day than other.
func (c Clock) Before(other Clock) bool {
	if c.Hour != other.Hour {
		return c.Hour < other.Hour
	}
	return c.Minute < other.Minute
}

// MinutesFromMidnight returns the clock position as minutes since midnight.
func (c Clock) MinutesFromMidnight() int {
	return c.Hour*60 + c.Minute
}
