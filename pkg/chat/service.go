package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dmitrymomot/mymechanic/pkg/audit"
	"github.com/dmitrymomot/mymechanic/pkg/logger"
)

// Metrics receives chat counters. *telemetry.Metrics satisfies it.
type Metrics interface {
	ChatCompleted(ctx context.Context, planID string, inputTokens, outputTokens int64, costGBP float64, took time.Duration)
	ModelFailed(ctx context.Context, took time.Duration)
}

// Auditor records answered messages. *audit.Logger satisfies it.
type Auditor interface {
	Log(ctx context.Context, action string, opts ...audit.EventOption) error
}

// Reply is the model answer and the conversation to send back to the client.
type Reply struct {
	Text         string
	Conversation []Message
	Vehicle      string
	InputTokens  int64
	OutputTokens int64
	CostGBP      float64
}

type Service struct {
	model        Model
	history      History
	log          *slog.Logger
	metrics      Metrics
	auditor      Auditor
	tracer       trace.Tracer
	timeout      time.Duration
	writeTimeout time.Duration
	now          func() time.Time

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithAuditor(a Auditor) Option {
	return func(s *Service) {
		if a != nil {
			s.auditor = a
		}
	}
}

// WithHistory stores every answered message.
func WithHistory(h History) Option {
	return func(s *Service) {
		if h != nil {
			s.history = h
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer("github.com/dmitrymomot/mymechanic/pkg/chat")
		}
	}
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(model Model, opts ...Option) *Service {
	if model == nil {
		panic("chat: model cannot be nil")
	}
	s := &Service{
		model:        model,
		log:          logger.Discard(),
		metrics:      noopMetrics{},
		auditor:      noopAuditor{},
		tracer:       noop.NewTracerProvider().Tracer(""),
		timeout:      60 * time.Second,
		writeTimeout: 5 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("chat"))
	return s
}

// Reply validates req, asks the model and returns the extended conversation.
// History and audit writes happen in the background and never fail the reply.
func (s *Service) Reply(ctx context.Context, req Request) (*Reply, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "chat.Reply", trace.WithAttributes(
		attribute.String("plan.id", req.PlanID),
		attribute.Int("chat.history_length", len(req.History)),
	))
	defer span.End()

	vehicle := req.vehicle()
	conversation := req.conversation()

	started := s.now()
	modelCtx, cancel := context.WithTimeout(ctx, s.timeout)
	completion, err := s.model.Complete(modelCtx, SystemPrompt(vehicle), conversation)
	cancel()
	took := s.now().Sub(started)

	if err != nil {
		if !errors.Is(err, ErrModel) {
			err = errors.Join(ErrModel, err)
		}
		s.metrics.ModelFailed(ctx, took)
		span.RecordError(err)
		span.SetStatus(codes.Error, "model request failed")
		s.log.ErrorContext(ctx, "language model request failed",
			logger.UserID(req.UserID), logger.Duration(took), logger.Error(err))
		return nil, err
	}

	cost := CostGBP(completion.InputTokens, completion.OutputTokens)
	s.metrics.ChatCompleted(ctx, req.PlanID, completion.InputTokens, completion.OutputTokens, cost, took)
	span.SetAttributes(
		attribute.Int64("chat.input_tokens", completion.InputTokens),
		attribute.Int64("chat.output_tokens", completion.OutputTokens),
	)

	reply := &Reply{
		Text:         completion.Text,
		Conversation: append(conversation, Message{Role: RoleAssistant, Content: completion.Text}),
		Vehicle:      vehicle,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		CostGBP:      cost,
	}

	s.record(ctx, HistoryEntry{
		UserID:       req.UserID,
		MessageText:  conversation[len(conversation)-1].Content,
		ResponseText: completion.Text,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		CostGBP:      cost,
		CreatedAt:    s.now().UTC(),
	}, vehicle)

	return reply, nil
}

func (s *Service) record(ctx context.Context, entry HistoryEntry, vehicle string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.log.WarnContext(ctx, "chat history write after close dropped", logger.UserID(entry.UserID))
		return
	}

	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()

		if s.history != nil {
			if err := s.history.Append(ctx, entry); err != nil {
				s.log.ErrorContext(ctx, "failed to store chat history", logger.UserID(entry.UserID), logger.Error(err))
			}
		}

		meta := map[string]any{
			"messageLength": len([]rune(entry.MessageText)),
			"tokensUsed":    entry.InputTokens + entry.OutputTokens,
			"costGBP":       entry.CostGBP,
		}
		if vehicle != "" {
			meta["vehicle"] = vehicle
		}
		if err := s.auditor.Log(ctx, audit.ActionChat,
			audit.WithUserID(entry.UserID),
			audit.WithMetadata(meta),
		); err != nil {
			s.log.WarnContext(ctx, "failed to audit chat", logger.UserID(entry.UserID), logger.Error(err))
		}
	}()
}

// Close stops background writes and waits for in-flight ones or ctx.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type noopMetrics struct{}

func (noopMetrics) ChatCompleted(context.Context, string, int64, int64, float64, time.Duration) {}
func (noopMetrics) ModelFailed(context.Context, time.Duration)                                  {}

type noopAuditor struct{}

func (noopAuditor) Log(context.Context, string, ...audit.EventOption) error { return nil }
