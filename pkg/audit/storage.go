package audit

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"

	"github.com/jackc/pgx/v5"
)

// batchSender is satisfied by *pgxpool.Pool and pgx.Tx.
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PGStorage writes events to the audit_events table.
type PGStorage struct {
	db batchSender
}

func NewPGStorage(db batchSender) *PGStorage {
	if db == nil {
		panic("audit: db cannot be nil")
	}
	return &PGStorage{db: db}
}

const insertEventQuery = `
INSERT INTO audit_events (id, user_id, action, resource, resource_id, result, error, request_id, ip, metadata, created_at)
VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11)
ON CONFLICT (id) DO NOTHING`

func (s *PGStorage) Store(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		var meta []byte
		if len(e.Metadata) > 0 {
			var err error
			if meta, err = json.Marshal(e.Metadata); err != nil {
				return errors.Join(ErrInvalidEvent, err)
			}
		}
		batch.Queue(insertEventQuery,
			e.ID, e.UserID, e.Action, e.Resource, e.ResourceID, string(e.Result),
			e.Error, e.RequestID, e.IP, meta, e.CreatedAt)
	}

	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

// MemoryStorage keeps events in memory. Used in tests and local runs without a database.
type MemoryStorage struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(_ context.Context, events ...Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// Events returns a copy of everything stored so far.
func (s *MemoryStorage) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}
