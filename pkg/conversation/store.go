package conversation

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists saved conversations. Every lookup is scoped to the owner.
type Store interface {
	// Insert saves c unless its owner already keeps limit conversations,
	// in which case it returns a *LimitError.
	Insert(ctx context.Context, c Conversation, limit int) (*Conversation, error)

	// List returns the user's conversations, newest first.
	List(ctx context.Context, userID string) ([]Conversation, error)

	// Get returns one conversation, or ErrNotFound.
	Get(ctx context.Context, userID, id string) (*Conversation, error)

	// Rename changes the title, or returns ErrNotFound.
	Rename(ctx context.Context, userID, id, title string) (*Conversation, error)

	// Delete removes a conversation. Deleting a missing one is not an error.
	Delete(ctx context.Context, userID, id string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.Mutex
	rows []Conversation // oldest first
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Insert(_ context.Context, c Conversation, limit int) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, row := range s.rows {
		if row.UserID == c.UserID {
			count++
		}
	}
	if count >= limit {
		return nil, &LimitError{Limit: limit, Count: count}
	}

	now := s.now().UTC()
	c.ID = uuid.NewString()
	c.Messages = slices.Clone(c.Messages)
	c.CreatedAt, c.UpdatedAt = now, now
	s.rows = append(s.rows, c)
	return &c, nil
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Conversation{}
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].UserID == userID {
			out = append(out, s.rows[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, userID, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(userID, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	c := s.rows[i]
	return &c, nil
}

func (s *MemoryStore) Rename(_ context.Context, userID, id, title string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(userID, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	s.rows[i].Title = title
	s.rows[i].UpdatedAt = s.now().UTC()
	c := s.rows[i]
	return &c, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.find(userID, id); i >= 0 {
		s.rows = slices.Delete(s.rows, i, i+1)
	}
	return nil
}

func (s *MemoryStore) find(userID, id string) int {
	return slices.IndexFunc(s.rows, func(c Conversation) bool {
		return c.ID == id && c.UserID == userID
	})
}
