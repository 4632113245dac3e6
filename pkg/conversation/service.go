package conversation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/mymechanic/pkg/audit"
	"github.com/dmitrymomot/mymechanic/pkg/logger"
)

// LimitFunc returns how many conversations a plan may keep saved.
type LimitFunc func(planID string) int

// Auditor records saves and deletions. *audit.Logger satisfies it.
type Auditor interface {
	Log(ctx context.Context, action string, opts ...audit.EventOption) error
}

// Service enforces plan allowances on top of a Store.
type Service struct {
	store   Store
	limits  LimitFunc
	log     *slog.Logger
	auditor Auditor
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
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

func NewService(store Store, limits LimitFunc, opts ...Option) *Service {
	if store == nil || limits == nil {
		panic("conversation: store and limits are required")
	}
	s := &Service{
		store:   store,
		limits:  limits,
		log:     logger.Discard(),
		auditor: noopAuditor{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("conversation"))
	return s
}

// Save stores a conversation for userID if planID allows another one.
// Plans without an allowance get ErrNotIncluded; a full allowance gets a *LimitError.
func (s *Service) Save(ctx context.Context, userID, planID string, in SaveInput) (*Conversation, error) {
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}
	if err := validateMessages(in.Messages); err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}

	limit := s.limits(planID)
	if limit <= 0 {
		return nil, ErrNotIncluded
	}

	c := Conversation{UserID: userID, Title: title, Messages: in.Messages}
	if in.Vehicle != nil && !in.Vehicle.IsZero() {
		c.Vehicle = in.Vehicle
	}

	saved, err := s.store.Insert(ctx, c, limit)
	if err != nil {
		if errors.Is(err, ErrLimitReached) {
			s.log.InfoContext(ctx, "saved conversation limit reached", logger.UserID(userID), logger.PlanID(planID))
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "conversation saved", logger.UserID(userID), slog.String("conversation_id", saved.ID))
	if err := s.auditor.Log(ctx, audit.ActionConversationSaved,
		audit.WithUserID(userID),
		audit.WithResource("conversation", saved.ID),
		audit.WithMetadata(map[string]any{"messages": len(saved.Messages), "plan_id": planID}),
	); err != nil {
		s.log.WarnContext(ctx, "failed to write audit event", logger.Error(err))
	}
	return saved, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Conversation, error) {
	return s.store.List(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Conversation, error) {
	return s.store.Get(ctx, userID, id)
}

// Rename changes the title of one of userID's conversations.
func (s *Service) Rename(ctx context.Context, userID, id, title string) (*Conversation, error) {
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}
	return s.store.Rename(ctx, userID, id, title)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}
	if err := s.auditor.Log(ctx, audit.ActionConversationDeleted,
		audit.WithUserID(userID),
		audit.WithResource("conversation", id),
	); err != nil {
		s.log.WarnContext(ctx, "failed to write audit event", logger.Error(err))
	}
	return nil
}

type noopAuditor struct{}

func (noopAuditor) Log(context.Context, string, ...audit.EventOption) error { return nil }
