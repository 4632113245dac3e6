package quota

import (
	"context"
	"sync"
	"time"
)

// Store persists monthly usage counters.
type Store interface {
	// Current returns the usage row for month, creating it with a zero count
	// or resetting it to zero when it belongs to an earlier month.
	Current(ctx context.Context, userID, month string, now time.Time) (Usage, error)

	// Increment adds one message for month when the count is below limit
	// (any count when limit is negative). A row from an earlier month restarts at one.
	// ok is false when the limit was already reached.
	Increment(ctx context.Context, userID, month string, limit int, now time.Time) (count int, ok bool, err error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]Usage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Usage)}
}

func (s *MemoryStore) Current(_ context.Context, userID, month string, now time.Time) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.rows[userID]
	if !ok || u.Month != month {
		u = Usage{UserID: userID, Month: month, LastReset: now}
		s.rows[userID] = u
	}
	return u, nil
}

func (s *MemoryStore) Increment(_ context.Context, userID, month string, limit int, now time.Time) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.rows[userID]
	if !ok || u.Month != month {
		u = Usage{UserID: userID, Month: month, LastReset: now}
	}
	if limit >= 0 && u.Count >= limit {
		return u.Count, false, nil
	}
	u.Count++
	s.rows[userID] = u
	return u.Count, true, nil
}

// Set overwrites a user's row. It lets tests start from an arbitrary state.
func (s *MemoryStore) Set(u Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[u.UserID] = u
}
