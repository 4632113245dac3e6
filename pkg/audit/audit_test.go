package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mymechanic/pkg/audit"
	"github.com/dmitrymomot/mymechanic/pkg/logger"
)

type ctxKey string

func extractor(key ctxKey) func(context.Context) (string, bool) {
	return func(ctx context.Context) (string, bool) {
		v, ok := ctx.Value(key).(string)
		return v, ok
	}
}

func TestLogger_Log(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	l := audit.NewLogger(storage,
		audit.WithUserIDExtractor(extractor("user")),
		audit.WithRequestIDExtractor(extractor("req")),
	)

	ctx := context.WithValue(context.WithValue(context.Background(), ctxKey("user"), "u1"), ctxKey("req"), "r1")
	require.NoError(t, l.Log(ctx, audit.ActionChat, audit.WithMetadata(map[string]any{"tokens": 12})))
	require.NoError(t, l.LogError(context.Background(), audit.ActionPaymentFailed, errors.New("card declined"),
		audit.WithUserID("u2"),
		audit.WithResource("subscription", "sub_1"),
	))

	events := storage.Events()
	require.Len(t, events, 2)

	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, "u1", events[0].UserID)
	assert.Equal(t, "r1", events[0].RequestID)
	assert.Equal(t, audit.ResultSuccess, events[0].Result)
	assert.Equal(t, 12, events[0].Metadata["tokens"])

	assert.Equal(t, "u2", events[1].UserID)
	assert.Equal(t, audit.ResultError, events[1].Result)
	assert.Equal(t, "card declined", events[1].Error)
	assert.Equal(t, "sub_1", events[1].ResourceID)
}

func TestLogger_RequiresAction(t *testing.T) {
	t.Parallel()

	l := audit.NewLogger(audit.NewMemoryStorage())
	assert.ErrorIs(t, l.Log(context.Background(), ""), audit.ErrEventValidation)
}

type countingStorage struct {
	mu      sync.Mutex
	batches [][]audit.Event
}

func (s *countingStorage) Store(_ context.Context, events ...audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]audit.Event(nil), events...))
	return nil
}

func (s *countingStorage) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestAsyncWriter_FlushesOnClose(t *testing.T) {
	t.Parallel()

	storage := &countingStorage{}
	w := audit.NewAsyncWriter(storage, logger.Discard(), audit.AsyncOptions{
		BatchSize:    10,
		BatchTimeout: time.Hour,
	})

	for range 25 {
		require.NoError(t, w.Store(context.Background(), audit.Event{Action: audit.ActionChat}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Close(ctx))

	assert.Equal(t, 25, storage.total())
	assert.ErrorIs(t, w.Store(context.Background(), audit.Event{Action: audit.ActionChat}), audit.ErrStorageNotAvailable)
	// Second close is a no-op.
	require.NoError(t, w.Close(ctx))
}

func TestAsyncWriter_FlushesOnTimer(t *testing.T) {
	t.Parallel()

	storage := &countingStorage{}
	w := audit.NewAsyncWriter(storage, logger.Discard(), audit.AsyncOptions{
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
	})
	t.Cleanup(func() { _ = w.Close(context.Background()) })

	require.NoError(t, w.Store(context.Background(), audit.Event{Action: audit.ActionChat}))
	assert.Eventually(t, func() bool { return storage.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestAsyncWriter_Flush(t *testing.T) {
	t.Parallel()

	storage := &countingStorage{}
	w := audit.NewAsyncWriter(storage, logger.Discard(), audit.AsyncOptions{
		BatchSize:    100,
		BatchTimeout: time.Hour,
	})
	t.Cleanup(func() { _ = w.Close(context.Background()) })

	for range 3 {
		require.NoError(t, w.Store(context.Background(), audit.Event{Action: audit.ActionChat}))
	}
	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, 3, storage.total())
}
