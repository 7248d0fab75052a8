package store

import (
	"context"
	"errors"

	"github.com/Puettse/Bumpy/internal/domain"
)

// ErrNotFound is returned by Get when no profile exists for the user.
var ErrNotFound = errors.New("profile not found")

// Repo defines storage operations for hydration profiles.
//
// Upsert persists the profile (settings, scheduling state, archive, event
// log) as one atomic unit per user; no cross-user guarantee is made. Reads
// may attach only a recent window of the archive and event history, and a
// persist never removes rows outside the window it loaded.
type Repo interface {
	Get(ctx context.Context, userID int64) (*domain.Profile, error)
	Upsert(ctx context.Context, p *domain.Profile) error
	ListAll(ctx context.Context) ([]domain.Profile, error)
	Close() error
}
