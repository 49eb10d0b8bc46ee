package availability

import (
	"context"
	"errors"

	"hirelink-backend/internal/shared/telemetry"
)

// Service coordinates availability profile reads and writes.
type Service struct {
	Repo Repo
}

// Save validates and upserts the employer's profile.
func (s *Service) Save(ctx context.Context, profile Profile) (Profile, error) {
	if s.Repo == nil {
		return Profile{}, errors.New("missing dependencies")
	}
	if err := profile.Validate(); err != nil {
		return Profile{}, err
	}
	saved, err := s.Repo.Upsert(ctx, profile)
	if err != nil {
		return Profile{}, err
	}
	telemetry.Info("availability.saved", map[string]any{
		"employer_id":  saved.EmployerID,
		"slot_minutes": saved.SlotMinutes,
		"timezone":     saved.Timezone,
	})
	return saved, nil
}

// Get returns the employer's profile or ErrNotFound.
func (s *Service) Get(ctx context.Context, employerID string) (Profile, error) {
	if s.Repo == nil {
		return Profile{}, errors.New("missing dependencies")
	}
	if employerID == "" {
		return Profile{}, ErrInvalidProfile
	}
	return s.Repo.GetByEmployer(ctx, employerID)
}
