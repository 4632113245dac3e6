package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/mymechanic/pkg/logger"
)

// AsyncOptions configures batching and buffering.
type AsyncOptions struct {
	BufferSize     int           // Max events queued in memory; further events are dropped
	BatchSize      int           // Target events per batch
	BatchTimeout   time.Duration // Max time a partial batch waits before flushing
	StorageTimeout time.Duration // Per-batch storage timeout
}

// AsyncWriter queues events and flushes them to the underlying storage in
// batches from a single background goroutine. Store never blocks the caller;
// when the buffer is full the event is dropped and ErrBufferFull returned.
type AsyncWriter struct {
	storage Storage
	log     *slog.Logger
	options AsyncOptions

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	flush  chan chan struct{}
	done   chan struct{}
}

// NewAsyncWriter starts the background flusher. Call Close on shutdown.
func NewAsyncWriter(storage Storage, log *slog.Logger, opts AsyncOptions) *AsyncWriter {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	if opts.BufferSize == 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout == 0 {
		opts.BatchTimeout = 500 * time.Millisecond
	}
	if opts.StorageTimeout == 0 {
		opts.StorageTimeout = 5 * time.Second
	}

	aw := &AsyncWriter{
		storage: storage,
		log:     log,
		options: opts,
		queue:   make(chan Event, opts.BufferSize),
		flush:   make(chan chan struct{}),
		done:    make(chan struct{}),
	}
	go aw.worker()
	return aw
}

func (aw *AsyncWriter) Store(_ context.Context, events ...Event) error {
	aw.mu.RLock()
	defer aw.mu.RUnlock()

	if aw.closed {
		return ErrStorageNotAvailable
	}
	for _, e := range events {
		select {
		case aw.queue <- e:
		default:
			aw.log.Warn("audit buffer full, event dropped", logger.Component("audit"), slog.String("action", e.Action))
			return ErrBufferFull
		}
	}
	return nil
}

func (aw *AsyncWriter) worker() {
	defer close(aw.done)

	batch := make([]Event, 0, aw.options.BatchSize)
	ticker := time.NewTicker(aw.options.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Request contexts are long gone by now.
		ctx, cancel := context.WithTimeout(context.Background(), aw.options.StorageTimeout)
		defer cancel()

		if err := aw.storage.Store(ctx, batch...); err != nil {
			aw.log.Error("failed to store audit events", logger.Component("audit"), slog.Int("events", len(batch)), logger.Error(err))
		}
		clear(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-aw.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= aw.options.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case ack := <-aw.flush:
			for drained := false; !drained; {
				select {
				case e, ok := <-aw.queue:
					if !ok {
						drained = true
						break
					}
					batch = append(batch, e)
				default:
					drained = true
				}
			}
			flush()
			close(ack)
		}
	}
}

// Flush writes everything queued so far and returns once it is stored.
func (aw *AsyncWriter) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case aw.flush <- ack:
	case <-aw.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits until the queue is flushed or ctx ends.
func (aw *AsyncWriter) Close(ctx context.Context) error {
	aw.mu.Lock()
	if !aw.closed {
		aw.closed = true
		close(aw.queue)
	}
	aw.mu.Unlock()

	select {
	case <-aw.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
