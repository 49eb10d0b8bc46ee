package availability

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores profiles in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu         sync.RWMutex
	byEmployer map[string]Profile
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byEmployer: make(map[string]Profile)}
}

// Upsert creates or overwrites the employer's profile.
func (r *MemoryRepo) Upsert(ctx context.Context, profile Profile) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := r.byEmployer[profile.EmployerID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	r.byEmployer[profile.EmployerID] = profile
	return profile, nil
}

// GetByEmployer returns the employer's profile or ErrNotFound.
func (r *MemoryRepo) GetByEmployer(ctx context.Context, employerID string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, ok := r.byEmployer[employerID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return profile, nil
}

var _ Repo = (*MemoryRepo)(nil)
