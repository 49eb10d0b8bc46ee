package availability

import "context"

// Repo defines persistence operations for availability profiles.
type Repo interface {
	Upsert(ctx context.Context, profile Profile) (Profile, error)
	GetByEmployer(ctx context.Context, employerID string) (Profile, error)
}
