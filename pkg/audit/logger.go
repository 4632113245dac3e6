package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage persists audit events.
type Storage interface {
	Store(ctx context.Context, events ...Event) error
}

type contextExtractor func(context.Context) (string, bool)

// Logger builds events from request context and hands them to storage.
type Logger struct {
	storage            Storage
	userIDExtractor    contextExtractor
	requestIDExtractor contextExtractor
	ipExtractor        contextExtractor
	now                func() time.Time
}

// Option configures Logger behavior during initialization
type Option func(*Logger)

func WithUserIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) {
		l.userIDExtractor = fn
	}
}

func WithRequestIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) {
		l.requestIDExtractor = fn
	}
}

func WithIPExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) {
		l.ipExtractor = fn
	}
}

func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}

	l := &Logger{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records a successful action
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	event := l.eventFromContext(ctx, action)
	event.Result = ResultSuccess
	return l.store(ctx, event, opts)
}

// LogError records a failed action
func (l *Logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	event := l.eventFromContext(ctx, action)
	event.Result = ResultError
	if err != nil {
		event.Error = err.Error()
	}
	return l.store(ctx, event, opts)
}

func (l *Logger) store(ctx context.Context, event Event, opts []EventOption) error {
	for _, opt := range opts {
		opt(&event)
	}
	if err := event.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, event)
}

func (l *Logger) eventFromContext(ctx context.Context, action string) Event {
	event := Event{
		ID:        uuid.NewString(),
		Action:    action,
		CreatedAt: l.now().UTC(),
	}

	if l.userIDExtractor != nil {
		if v, ok := l.userIDExtractor(ctx); ok {
			event.UserID = v
		}
	}
	if l.requestIDExtractor != nil {
		if v, ok := l.requestIDExtractor(ctx); ok {
			event.RequestID = v
		}
	}
	if l.ipExtractor != nil {
		if v, ok := l.ipExtractor(ctx); ok {
			event.IP = v
		}
	}

	return event
}
