package links

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	links map[uuid.UUID][]Link // by user, insertion order
	now   func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links: make(map[uuid.UUID][]Link),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, userID uuid.UUID) ([]Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.links[userID])
	slices.SortStableFunc(out, func(a, b Link) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// CountEnabled implements Store.
func (s *MemoryStore) CountEnabled(ctx context.Context, userID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, l := range s.links[userID] {
		if l.Enabled {
			n++
		}
	}
	return n, nil
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, link Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if link.CreatedAt.IsZero() {
		link.CreatedAt = s.now()
	}
	s.links[link.UserID] = append(s.links[link.UserID], link)
	return nil
}

// SetEnabled implements Store.
func (s *MemoryStore) SetEnabled(ctx context.Context, userID, linkID uuid.UUID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, l := range s.links[userID] {
		if l.ID == linkID {
			s.links[userID][i].Enabled = enabled
			s.links[userID][i].UpdatedAt = s.now()
			return nil
		}
	}
	return ErrLinkNotFound
}

// DisableMostRecent implements Store.
func (s *MemoryStore) DisableMostRecent(ctx context.Context, userID uuid.UUID, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userLinks := s.links[userID]
	enabled := make([]int, 0, len(userLinks))
	for i, l := range userLinks {
		if l.Enabled {
			enabled = append(enabled, i)
		}
	}
	// Most recently created first.
	slices.SortStableFunc(enabled, func(a, b int) int {
		return userLinks[b].CreatedAt.Compare(userLinks[a].CreatedAt)
	})

	disabled := 0
	for _, idx := range enabled {
		if disabled >= n {
			break
		}
		userLinks[idx].Enabled = false
		userLinks[idx].UpdatedAt = s.now()
		disabled++
	}
	return disabled, nil
}
