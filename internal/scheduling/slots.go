package scheduling

import (
	"time"

	"hirelink-backend/internal/availability"
)

// GenerateSlots walks each calendar day of the window in the employer's local
// timezone and emits candidate interview slots in UTC. For every working day
// it starts at the local start-time and repeatedly emits a slot of the
// configured duration, advancing the cursor by duration+buffer, until the
// cursor plus duration would pass the local end-time. Each candidate slot is
// converted to UTC before the occupancy test, so daylight-saving shifts stay
// a property of the local wall-clock walk.
func GenerateSlots(profile availability.Profile, from time.Time, days int, occupied []Range) ([]Range, error) {
	loc, err := profile.Location()
	if err != nil {
		return nil, err
	}
	start, err := availability.ParseClock(profile.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := availability.ParseClock(profile.EndTime)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(profile.SlotMinutes) * time.Minute
	step := duration + time.Duration(profile.BufferMinutes)*time.Minute

	local := from.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var slots []Range
	for i := 0; i < days; i++ {
		if !profile.WorksOn(day.Weekday()) {
			day = day.AddDate(0, 0, 1)
			continue
		}
		cursor := time.Date(day.Year(), day.Month(), day.Day(), start.Hour, start.Minute, 0, 0, loc)
		dayEnd := time.Date(day.Year(), day.Month(), day.Day(), end.Hour, end.Minute, 0, 0, loc)
		for !cursor.Add(duration).After(dayEnd) {
			slot := Range{Start: cursor.UTC(), End: cursor.Add(duration).UTC()}
			if !overlapsAny(slot, occupied) {
				slots = append(slots, slot)
			}
			cursor = cursor.Add(step)
		}
		day = day.AddDate(0, 0, 1)
	}
	return slots, nil
}

func overlapsAny(slot Range, occupied []Range) bool {
	for _, r := range occupied {
		if slot.Overlaps(r) {
			return true
		}
	}
	return false
}
