package presence

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and single-node runs
// without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Status)}
}

func (s *MemoryStore) SetOnline(_ context.Context, userID, serverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.records[userID] = &Status{
		UserID:     userID,
		ServerID:   serverID,
		OnlineAt:   now,
		LastOnline: now,
	}
	return nil
}

func (s *MemoryStore) SetOffline(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = &Status{
		UserID:     userID,
		LastOnline: time.Now(),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.records[userID]; ok {
		copied := *st
		return &copied, nil
	}
	return nil, nil
}

func (s *MemoryStore) RefreshTTL(context.Context, string) error {
	return nil
}
