package availability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Upsert creates the profile on first write and overwrites it afterwards.
func (r *PGRepo) Upsert(ctx context.Context, profile Profile) (Profile, error) {
	const query = `
INSERT INTO availability_profiles (
	employer_id, working_days, start_time, end_time, timezone, slot_minutes, buffer_minutes, created_at, updated_at
)
VALUES ($1, $2::smallint[], $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (employer_id) DO UPDATE SET
	working_days   = EXCLUDED.working_days,
	start_time     = EXCLUDED.start_time,
	end_time       = EXCLUDED.end_time,
	timezone       = EXCLUDED.timezone,
	slot_minutes   = EXCLUDED.slot_minutes,
	buffer_minutes = EXCLUDED.buffer_minutes,
	updated_at     = EXCLUDED.updated_at
RETURNING created_at, updated_at`
	now := time.Now().UTC()
	err := r.DB.QueryRowContext(ctx, query,
		profile.EmployerID,
		encodeDays(profile.WorkingDays),
		profile.StartTime,
		profile.EndTime,
		profile.Timezone,
		profile.SlotMinutes,
		profile.BufferMinutes,
		now,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// GetByEmployer returns the employer's profile or ErrNotFound.
func (r *PGRepo) GetByEmployer(ctx context.Context, employerID string) (Profile, error) {
	const query = `
SELECT employer_id, working_days, start_time, end_time, timezone, slot_minutes, buffer_minutes, created_at, updated_at
FROM availability_profiles
WHERE employer_id = $1`
	var p Profile
	var days string
	var start, end string
	err := r.DB.QueryRowContext(ctx, query, employerID).Scan(
		&p.EmployerID,
		&days,
		&start,
		&end,
		&p.Timezone,
		&p.SlotMinutes,
		&p.BufferMinutes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	p.WorkingDays, err = decodeDays(days)
	if err != nil {
		return Profile{}, err
	}
	// TIME columns come back as "HH:MM:SS"; keep the wall-clock prefix.
	p.StartTime = clockPrefix(start)
	p.EndTime = clockPrefix(end)
	return p, nil
}

// encodeDays renders a Postgres array literal, e.g. {1,2,3}.
func encodeDays(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func decodeDays(raw string) ([]int, error) {
	trimmed := strings.Trim(strings.TrimSpace(raw), "{}")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, ",")
	days := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("decode working_days %q: %w", raw, err)
		}
		days = append(days, d)
	}
	return days, nil
}

func clockPrefix(s string) string {
	if len(s) > 5 {
		return s[:5]
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
