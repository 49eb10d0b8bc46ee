package scheduling

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hirelink-backend/internal/availability"
)

func kolkataProfile() availability.Profile {
	return availability.Profile{
		EmployerID:    "emp-1",
		WorkingDays:   []int{1, 2, 3, 4, 5},
		StartTime:     "09:00",
		EndTime:       "17:00",
		Timezone:      "Asia/Kolkata",
		SlotMinutes:   30,
		BufferMinutes: 10,
	}
}

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestGenerateSlotsWalksLocalDayAndEmitsUTC(t *testing.T) {
	loc := mustLoc(t, "Asia/Kolkata")
	// Monday 2026-01-05 local.
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, loc)

	slots, err := GenerateSlots(kolkataProfile(), from, 1, nil)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	// 09:00..17:00 with 30m slots every 40m: 09:00, 09:40, ... 16:20 = 12 slots.
	require.Len(t, slots, 12)

	first := slots[0]
	require.Equal(t, time.UTC, first.Start.Location())
	require.True(t, first.Start.Equal(time.Date(2026, 1, 5, 9, 0, 0, 0, loc)))

	second := slots[1]
	require.True(t, second.Start.Equal(time.Date(2026, 1, 5, 9, 40, 0, 0, loc)))

	last := slots[len(slots)-1]
	require.True(t, last.End.Equal(time.Date(2026, 1, 5, 16, 50, 0, 0, loc)))
}

func TestGenerateSlotsSkipsNonWorkingDays(t *testing.T) {
	loc := mustLoc(t, "Asia/Kolkata")
	// Saturday 2026-01-03 local; Mon-Fri profile.
	from := time.Date(2026, 1, 3, 0, 0, 0, 0, loc)

	slots, err := GenerateSlots(kolkataProfile(), from, 2, nil)
	require.NoError(t, err)
	require.Empty(t, slots)

	slots, err = GenerateSlots(kolkataProfile(), from, 3, nil)
	require.NoError(t, err)
	require.Len(t, slots, 12)
	require.Equal(t, time.Monday, slots[0].Start.In(loc).Weekday())
}

func TestGenerateSlotsFourteenDayWindow(t *testing.T) {
	loc := mustLoc(t, "Asia/Kolkata")
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, loc)

	slots, err := GenerateSlots(kolkataProfile(), from, 14, nil)
	require.NoError(t, err)
	// Two full Mon-Fri weeks, 12 slots each day.
	require.Len(t, slots, 10*12)

	horizon := from.AddDate(0, 0, 14)
	for i, s := range slots {
		require.Equal(t, 30*time.Minute, s.End.Sub(s.Start), "slot %d duration", i)
		require.False(t, s.Start.Before(from.UTC()), "slot %d before window", i)
		require.True(t, s.End.Before(horizon.UTC()) || s.End.Equal(horizon.UTC()), "slot %d past window", i)
		if i > 0 {
			require.False(t, s.Overlaps(slots[i-1]), "slot %d overlaps previous", i)
		}
	}
}

func TestGenerateSlotsExcludesOccupiedRanges(t *testing.T) {
	loc := mustLoc(t, "Asia/Kolkata")
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, loc)

	// Block 09:40-10:10 local: exactly the second slot.
	occupied := []Range{{
		Start: time.Date(2026, 1, 5, 9, 40, 0, 0, loc).UTC(),
		End:   time.Date(2026, 1, 5, 10, 10, 0, 0, loc).UTC(),
	}}

	slots, err := GenerateSlots(kolkataProfile(), from, 1, occupied)
	require.NoError(t, err)
	require.Len(t, slots, 11)
	for _, s := range slots {
		require.False(t, s.Overlaps(occupied[0]))
	}
}

func TestGenerateSlotsTouchingRangeDoesNotExclude(t *testing.T) {
	loc := mustLoc(t, "Asia/Kolkata")
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, loc)

	// Occupied range ends exactly when the first slot starts.
	occupied := []Range{{
		Start: time.Date(2026, 1, 5, 8, 30, 0, 0, loc).UTC(),
		End:   time.Date(2026, 1, 5, 9, 0, 0, 0, loc).UTC(),
	}}

	slots, err := GenerateSlots(kolkataProfile(), from, 1, occupied)
	require.NoError(t, err)
	require.Len(t, slots, 12)
}

func TestGenerateSlotsRandomOccupancyNeverOverlaps(t *testing.T) {
	loc := mustLoc(t, "Asia/Kolkata")
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, loc)
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		var occupied []Range
		for i := 0; i < 1+rng.Intn(8); i++ {
			start := from.Add(time.Duration(rng.Intn(14*24*60)) * time.Minute).UTC()
			occupied = append(occupied, Range{Start: start, End: start.Add(time.Duration(15+rng.Intn(90)) * time.Minute)})
		}
		slots, err := GenerateSlots(kolkataProfile(), from, 14, occupied)
		require.NoError(t, err)
		for _, s := range slots {
			for _, o := range occupied {
				require.False(t, s.Overlaps(o), "trial %d: slot %v overlaps occupied %v", trial, s, o)
			}
		}
	}
}

func TestGenerateSlotsSpringForwardDayKeepsWallClockWindow(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	profile := availability.Profile{
		EmployerID:    "emp-ny",
		WorkingDays:   []int{0, 1, 2, 3, 4, 5, 6},
		StartTime:     "09:00",
		EndTime:       "12:00",
		Timezone:      "America/New_York",
		SlotMinutes:   30,
		BufferMinutes: 30,
	}
	// 2026-03-08: clocks jump 02:00 -> 03:00 local.
	from := time.Date(2026, 3, 8, 0, 0, 0, 0, loc)

	slots, err := GenerateSlots(profile, from, 1, nil)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	first := slots[0].Start.In(loc)
	require.Equal(t, 9, first.Hour())
	require.Equal(t, 0, first.Minute())
	for _, s := range slots {
		local := s.End.In(loc)
		require.LessOrEqual(t, local.Hour()*60+local.Minute(), 12*60)
	}
	// The day is an hour shorter in UTC; slot boundaries must stay exact.
	require.True(t, slots[0].Start.Equal(time.Date(2026, 3, 8, 13, 0, 0, 0, time.UTC)))
}

func TestGenerateSlotsNoRoomForASingleSlot(t *testing.T) {
	profile := kolkataProfile()
	profile.StartTime = "09:00"
	profile.EndTime = "09:15"
	loc := mustLoc(t, "Asia/Kolkata")
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, loc)

	slots, err := GenerateSlots(profile, from, 14, nil)
	require.NoError(t, err)
	require.Empty(t, slots)
}
