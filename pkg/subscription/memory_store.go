package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development. It
// shares the Mongo store's semantics: implicit trial records, ErrNotFound
// for unknown users, and compare-and-swap on the record version.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]struct{}
	records map[uuid.UUID]Record
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[uuid.UUID]struct{}),
		records: make(map[uuid.UUID]Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AddUser registers a user so Get stops reporting ErrNotFound for it. User
// accounts are owned by the auth layer; this stands in for it.
func (s *MemoryStore) AddUser(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = struct{}{}
}

// RemoveUser deletes a user and its record, simulating account deletion.
func (s *MemoryStore) RemoveUser(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	delete(s.records, userID)
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, userID uuid.UUID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[userID]; !ok {
		return Record{}, ErrNotFound
	}
	if rec, ok := s.records[userID]; ok {
		return rec, nil
	}
	return NewTrialRecord(userID), nil
}

// CompareAndApply implements Store.
func (s *MemoryStore) CompareAndApply(ctx context.Context, userID uuid.UUID, expectedVersion int64, mutate func(*Record)) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return Record{}, false, ErrNotFound
	}

	cur, ok := s.records[userID]
	if !ok {
		cur = NewTrialRecord(userID)
	}
	if cur.Version != expectedVersion {
		return cur, false, nil
	}

	next := cur
	mutate(&next)
	next.UserID = userID
	next.Version = expectedVersion + 1
	next.UpdatedAt = s.now()
	s.records[userID] = next
	return next, true, nil
}
