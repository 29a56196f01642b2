package scoring

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chainsocial/scoring-service/internal/domain"
)

// MemoryRepository is an in-memory Repository. A global mutex stands in for
// the row locks of the Postgres implementation; it backs tests and
// single-node deployments without a database.
type MemoryRepository struct {
	mu     sync.Mutex
	scores map[string]*domain.UserScore
	awards map[string]postAward
	now    func() time.Time
}

type postAward struct {
	userID string
	delta  float64
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		scores: make(map[string]*domain.UserScore),
		awards: make(map[string]postAward),
		now:    time.Now,
	}
}

// SetClock overrides the creation-time source. Tests only.
func (m *MemoryRepository) SetClock(now func() time.Time) { m.now = now }

func (m *MemoryRepository) Get(ctx context.Context, userID string) (*domain.UserScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scores[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryRepository) Update(ctx context.Context, userID string, fn func(*domain.UserScore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.scores[userID]
	if !ok {
		s = domain.NewUserScore(userID, m.now())
		m.scores[userID] = s
	}

	// Mutate a clone so a failing mutator leaves the stored record intact
	cp := s.Clone()
	if err := fn(cp); err != nil {
		return err
	}
	m.scores[userID] = cp
	return nil
}

func (m *MemoryRepository) ScanAll(ctx context.Context, fn func(*domain.UserScore) error) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.scores))
	for id := range m.scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	clones := make([]*domain.UserScore, 0, len(ids))
	for _, id := range ids {
		clones = append(clones, m.scores[id].Clone())
	}
	m.mu.Unlock()

	for _, s := range clones {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryRepository) RecordPostAward(ctx context.Context, postID, userID string, delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.awards[postID] = postAward{userID: userID, delta: delta}
	return nil
}

func (m *MemoryRepository) TakePostAward(ctx context.Context, postID, userID string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.awards[postID]
	if !ok || a.userID != userID {
		return 0, false, nil
	}
	delete(m.awards, postID)
	return a.delta, true, nil
}
