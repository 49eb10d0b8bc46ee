package availability

import (
	"context"
	"errors"
	"testing"
)

func validProfile() Profile {
	return Profile{
		EmployerID:    "emp-1",
		WorkingDays:   []int{1, 2, 3, 4, 5},
		StartTime:     "09:00",
		EndTime:       "17:00",
		Timezone:      "Asia/Kolkata",
		SlotMinutes:   30,
		BufferMinutes: 10,
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}

	saved, err := svc.Save(context.Background(), validProfile())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.CreatedAt.IsZero() || saved.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set, got %+v", saved)
	}

	got, err := svc.Get(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Timezone != "Asia/Kolkata" || got.SlotMinutes != 30 {
		t.Fatalf("unexpected profile: %+v", got)
	}
}

func TestSaveOverwritesExistingProfile(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}

	first, err := svc.Save(context.Background(), validProfile())
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}

	updated := validProfile()
	updated.SlotMinutes = 45
	updated.WorkingDays = []int{2, 4}
	second, err := svc.Save(context.Background(), updated)
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected created_at preserved, got %v vs %v", second.CreatedAt, first.CreatedAt)
	}

	got, err := svc.Get(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SlotMinutes != 45 || len(got.WorkingDays) != 2 {
		t.Fatalf("expected overwrite, got %+v", got)
	}
}

func TestSaveRejectsInvalidProfiles(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"missing employer", func(p *Profile) { p.EmployerID = "" }},
		{"no working days", func(p *Profile) { p.WorkingDays = nil }},
		{"day out of range", func(p *Profile) { p.WorkingDays = []int{1, 7} }},
		{"duplicate day", func(p *Profile) { p.WorkingDays = []int{1, 1} }},
		{"start after end", func(p *Profile) { p.StartTime = "18:00" }},
		{"start equals end", func(p *Profile) { p.StartTime = "17:00" }},
		{"bad clock", func(p *Profile) { p.StartTime = "9am" }},
		{"unknown timezone", func(p *Profile) { p.Timezone = "Mars/Olympus" }},
		{"slot length not allowed", func(p *Profile) { p.SlotMinutes = 40 }},
		{"buffer not allowed", func(p *Profile) { p.BufferMinutes = 7 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &Service{Repo: NewMemoryRepo()}
			p := validProfile()
			tc.mutate(&p)
			if _, err := svc.Save(context.Background(), p); !errors.Is(err, ErrInvalidProfile) {
				t.Fatalf("expected ErrInvalidProfile, got %v", err)
			}
		})
	}
}

func TestGetUnknownEmployerReturnsNotFound(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}
	if _, err := svc.Get(context.Background(), "emp-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
