package assistant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/mymechanic/pkg/auth"
	"github.com/dmitrymomot/mymechanic/pkg/binder"
	"github.com/dmitrymomot/mymechanic/pkg/chat"
	"github.com/dmitrymomot/mymechanic/pkg/logger"
	"github.com/dmitrymomot/mymechanic/pkg/quota"
	"github.com/dmitrymomot/mymechanic/pkg/response"
	"github.com/dmitrymomot/mymechanic/pkg/subscription"
)

var (
	errQuotaExceeded = response.HTTPError{Status: http.StatusTooManyRequests, Code: "quota_exceeded", Message: "Monthly message limit reached. Upgrade your plan to continue."}
	errModel         = response.HTTPError{Status: http.StatusInternalServerError, Code: "model_error", Message: "Failed to get response from AI assistant. Please try again."}
	errInvalidChat   = response.HTTPError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "Invalid chat request"}
)

// Replier answers a chat request.
type Replier interface {
	Reply(ctx context.Context, req chat.Request) (*chat.Reply, error)
}

// QuotaGate meters messages per user per month.
type QuotaGate interface {
	CheckAndReserve(ctx context.Context, userID, planID string) (quota.Reservation, error)
	Commit(ctx context.Context, userID, planID string)
}

// Handler serves POST /chat. It expects the identity and the current
// subscription in the request context.
type Handler struct {
	chat  Replier
	quota QuotaGate
	mw    []func(http.Handler) http.Handler
	log   *slog.Logger
}

// NewHandler wires the chat endpoint. middlewares run before the handler in
// the order given, typically rate limiting, authentication and the access gate.
func NewHandler(replier Replier, gate QuotaGate, log *slog.Logger, middlewares ...func(http.Handler) http.Handler) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		chat:  replier,
		quota: gate,
		mw:    middlewares,
		log:   log.With(logger.Component("chat_handler")),
	}
}

func (h *Handler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(h.mw...)
	r.Post("/", h.send)
	return r
}

type sendRequest struct {
	Message             string         `json:"message"`
	ConversationHistory []chat.Message `json:"conversationHistory"`
}

type sendResponse struct {
	Response            string            `json:"response"`
	ConversationHistory []chat.Message    `json:"conversationHistory"`
	Quota               quota.Reservation `json:"quota"`
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		response.Error(w, response.ErrUnauthorized, nil)
		return
	}
	sub, ok := subscription.FromContext(ctx)
	if !ok {
		response.Error(w, subscription.ErrSubscriptionRequired, map[string]any{"needsSubscription": true})
		return
	}

	var body sendRequest
	if err := binder.JSON(r, &body); err != nil {
		response.BindError(w, err)
		return
	}

	req := chat.Request{
		UserID:  identity.UserID,
		PlanID:  sub.PlanID,
		Message: body.Message,
		History: body.ConversationHistory,
	}
	if err := req.Validate(); err != nil {
		response.Error(w, errInvalidChat.WithMessage(validationMessage(err)), nil)
		return
	}

	res, err := h.quota.CheckAndReserve(ctx, identity.UserID, sub.PlanID)
	if err != nil {
		h.log.ErrorContext(ctx, "quota check failed", logger.UserID(identity.UserID), logger.Error(err))
		response.Error(w, response.ErrInternal, nil)
		return
	}
	if !res.Allowed {
		response.Error(w, errQuotaExceeded, map[string]any{
			"quota":        res,
			"needsUpgrade": true,
		})
		return
	}

	reply, err := h.chat.Reply(ctx, req)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidRequest) {
			response.Error(w, errInvalidChat.WithMessage(validationMessage(err)), nil)
			return
		}
		response.Error(w, errModel, nil)
		return
	}

	h.quota.Commit(ctx, identity.UserID, sub.PlanID)

	response.JSON(w, http.StatusOK, sendResponse{
		Response:            reply.Text,
		ConversationHistory: reply.Conversation,
		Quota:               res.Consumed(),
	})
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrMessageRequired):
		return "Message is required"
	case errors.Is(err, chat.ErrMessageTooLong):
		return "Message is too long. Maximum length is 5000 characters."
	case errors.Is(err, chat.ErrHistoryTooLong):
		return "Conversation history is too long. Please start a new conversation."
	default:
		return "Conversation history contains an invalid message."
	}
}
