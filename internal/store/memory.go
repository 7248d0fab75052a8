package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Puettse/Bumpy/internal/domain"
)

// MemoryRepo is the in-memory reference implementation of Repo. It deep-copies
// profiles on every read and write, so callers can never alias stored state.
// Used by the scheduler tests; also handy for running the bot without a disk.
type MemoryRepo struct {
	mu       sync.RWMutex
	profiles map[int64]*domain.Profile
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *MemoryRepo {
	return &MemoryRepo{profiles: make(map[int64]*domain.Profile)}
}

func (m *MemoryRepo) Get(_ context.Context, userID int64) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *MemoryRepo) Upsert(_ context.Context, p *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p.Clone()
	return nil
}

func (m *MemoryRepo) ListAll(_ context.Context) ([]domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.profiles))
	for id := range m.profiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	res := make([]domain.Profile, 0, len(ids))
	for _, id := range ids {
		res = append(res, *m.profiles[id].Clone())
	}
	return res, nil
}

func (m *MemoryRepo) Close() error { return nil }
