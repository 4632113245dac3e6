package chat

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/mymechanic/pkg/pg"
)

// HistoryEntry is one answered message with its cost.
type HistoryEntry struct {
	UserID       string
	MessageText  string
	ResponseText string
	InputTokens  int64
	OutputTokens int64
	CostGBP      float64
	CreatedAt    time.Time
}

// History persists answered messages.
type History interface {
	Append(ctx context.Context, entry HistoryEntry) error
}

type MemoryHistory struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (h *MemoryHistory) Append(_ context.Context, entry HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return nil
}

// Entries returns a copy of everything appended.
func (h *MemoryHistory) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.entries)
}

// PGHistory writes to the message_history table.
type PGHistory struct {
	db pg.DB
}

func NewPGHistory(db pg.DB) *PGHistory {
	return &PGHistory{db: db}
}

const insertHistory = `
INSERT INTO message_history (user_id, message_text, response_text, tokens_input, tokens_output, cost_gbp, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (h *PGHistory) Append(ctx context.Context, e HistoryEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := h.db.Exec(ctx, insertHistory,
		e.UserID, e.MessageText, e.ResponseText, e.InputTokens, e.OutputTokens, e.CostGBP, e.CreatedAt)
	if err != nil {
		return errors.Join(ErrHistoryWrite, err)
	}
	return nil
}
