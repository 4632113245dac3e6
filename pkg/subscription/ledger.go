package subscription

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/mymechanic/pkg/pg"
)

// Outcome is the recorded result of applying a webhook event.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeFailed    Outcome = "failed"
)

// LedgerEntry is one append-only row of the webhook ledger.
type LedgerEntry struct {
	ID        string
	EventID   string
	EventType string
	Payload   []byte
	Outcome   Outcome
	Error     string
	CreatedAt time.Time
}

// Ledger records webhook outcomes for idempotency.
// Only processed entries make an event id count as already handled,
// so a retry after a failed attempt is applied again.
type Ledger interface {
	HasBeenProcessed(ctx context.Context, eventID string) (bool, error)
	RecordOutcome(ctx context.Context, entry LedgerEntry) error
}

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []LedgerEntry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) HasBeenProcessed(_ context.Context, eventID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries {
		if e.EventID == eventID && e.Outcome == OutcomeProcessed {
			return true, nil
		}
	}
	return false, nil
}

func (l *MemoryLedger) RecordOutcome(_ context.Context, entry LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a snapshot of the ledger, oldest first.
func (l *MemoryLedger) Entries() []LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// PGLedger is the Postgres Ledger over the webhook_events table.
type PGLedger struct {
	db pg.DB
}

func NewPGLedger(db pg.DB) *PGLedger {
	if db == nil {
		panic("subscription: db cannot be nil")
	}
	return &PGLedger{db: db}
}

func (l *PGLedger) HasBeenProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	if err := l.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM webhook_events WHERE event_id = $1 AND status = 'processed')`,
		eventID,
	).Scan(&exists); err != nil {
		return false, errors.Join(ErrLedgerUnavailable, err)
	}
	return exists, nil
}

func (l *PGLedger) RecordOutcome(ctx context.Context, entry LedgerEntry) error {
	var payload []byte
	if len(entry.Payload) > 0 {
		payload = entry.Payload
	}
	if _, err := l.db.Exec(ctx, `
		INSERT INTO webhook_events (event_id, event_type, data, status, error)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
		entry.EventID, entry.EventType, payload, string(entry.Outcome), entry.Error,
	); err != nil {
		return errors.Join(ErrLedgerUnavailable, err)
	}
	return nil
}

// CachedLedger puts a Redis set of processed event ids in front of another Ledger.
// A Redis miss or error falls through to the underlying ledger.
type CachedLedger struct {
	next   Ledger
	client redis.UniversalClient
	cfg    LedgerConfig
}

func NewCachedLedger(next Ledger, client redis.UniversalClient, cfg LedgerConfig) *CachedLedger {
	if next == nil || client == nil {
		panic("subscription: cached ledger requires a ledger and a redis client")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 72 * time.Hour
	}
	return &CachedLedger{next: next, client: client, cfg: cfg}
}

func (l *CachedLedger) key(eventID string) string {
	return l.cfg.CachePrefix + eventID
}

func (l *CachedLedger) HasBeenProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(eventID)).Result()
	if err == nil && n > 0 {
		return true, nil
	}

	processed, err := l.next.HasBeenProcessed(ctx, eventID)
	if err != nil {
		return false, err
	}
	if processed {
		l.client.Set(ctx, l.key(eventID), 1, l.cfg.CacheTTL)
	}
	return processed, nil
}

func (l *CachedLedger) RecordOutcome(ctx context.Context, entry LedgerEntry) error {
	if err := l.next.RecordOutcome(ctx, entry); err != nil {
		return err
	}
	if entry.Outcome == OutcomeProcessed {
		// Best effort; the underlying ledger is the source of truth.
		l.client.Set(ctx, l.key(entry.EventID), 1, l.cfg.CacheTTL)
	}
	return nil
}
