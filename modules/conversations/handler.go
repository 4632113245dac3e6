package conversations

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/mymechanic/pkg/auth"
	"github.com/dmitrymomot/mymechanic/pkg/binder"
	"github.com/dmitrymomot/mymechanic/pkg/chat"
	"github.com/dmitrymomot/mymechanic/pkg/conversation"
	"github.com/dmitrymomot/mymechanic/pkg/logger"
	"github.com/dmitrymomot/mymechanic/pkg/response"
	"github.com/dmitrymomot/mymechanic/pkg/subscription"
)

var (
	errNotIncluded  = response.HTTPError{Status: http.StatusForbidden, Code: "saved_chats_not_included", Message: "Your plan does not include saved conversations"}
	errLimitReached = response.HTTPError{Status: http.StatusForbidden, Code: "saved_chats_limit_reached", Message: "You have reached your saved conversation limit"}
	errNotFound     = response.HTTPError{Status: http.StatusNotFound, Code: "conversation_not_found", Message: "Conversation not found"}
	errInvalid      = response.HTTPError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "Invalid conversation"}
)

// Conversations is the saved conversation service.
type Conversations interface {
	Save(ctx context.Context, userID, planID string, in conversation.SaveInput) (*conversation.Conversation, error)
	List(ctx context.Context, userID string) ([]conversation.Conversation, error)
	Get(ctx context.Context, userID, id string) (*conversation.Conversation, error)
	Rename(ctx context.Context, userID, id, title string) (*conversation.Conversation, error)
	Delete(ctx context.Context, userID, id string) error
}

// Handler serves /conversations. Saving needs the current subscription in
// the request context, so the access gate must be among middlewares.
type Handler struct {
	svc Conversations
	mw  []func(http.Handler) http.Handler
	log *slog.Logger
}

func NewHandler(svc Conversations, log *slog.Logger, middlewares ...func(http.Handler) http.Handler) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		svc: svc,
		mw:  middlewares,
		log: log.With(logger.Component("conversations_handler")),
	}
}

func (h *Handler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(h.mw...)
	r.Get("/saved", h.list)
	r.Post("/save", h.save)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.rename)
	r.Delete("/{id}", h.delete)
	return r
}

type saveRequest struct {
	Title    string                `json:"title" validate:"required"`
	Vehicle  *conversation.Vehicle `json:"vehicle"`
	Messages []chat.Message        `json:"messages" validate:"required"`
}

type renameRequest struct {
	Title string `json:"title" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	list, err := h.svc.List(r.Context(), identity.UserID)
	if err != nil {
		h.fail(w, r, "failed to list conversations", err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"conversations": list})
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := auth.IdentityFromContext(ctx)
	sub, ok := subscription.FromContext(ctx)
	if !ok {
		response.Error(w, subscription.ErrSubscriptionRequired, map[string]any{"needsSubscription": true})
		return
	}

	var req saveRequest
	if err := binder.JSON(r, &req); err != nil {
		response.BindError(w, err)
		return
	}

	saved, err := h.svc.Save(ctx, identity.UserID, sub.PlanID, conversation.SaveInput{
		Title:    req.Title,
		Vehicle:  req.Vehicle,
		Messages: req.Messages,
	})
	var limitErr *conversation.LimitError
	switch {
	case errors.Is(err, conversation.ErrInvalidInput):
		response.Error(w, errInvalid.WithMessage(validationMessage(err)), nil)
	case errors.Is(err, conversation.ErrNotIncluded):
		response.Error(w, errNotIncluded, map[string]any{"needsUpgrade": true, "currentPlan": sub.PlanID})
	case errors.As(err, &limitErr):
		response.Error(w, errLimitReached, map[string]any{
			"needsUpgrade": true,
			"currentLimit": limitErr.Limit,
			"currentCount": limitErr.Count,
		})
	case err != nil:
		h.fail(w, r, "failed to save conversation", err)
	default:
		response.JSON(w, http.StatusCreated, map[string]any{"conversation": saved})
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	c, err := h.svc.Get(r.Context(), identity.UserID, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		response.Error(w, errNotFound, nil)
	case err != nil:
		h.fail(w, r, "failed to load conversation", err)
	default:
		response.JSON(w, http.StatusOK, map[string]any{"conversation": c})
	}
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var req renameRequest
	if err := binder.JSON(r, &req); err != nil {
		response.BindError(w, err)
		return
	}

	c, err := h.svc.Rename(r.Context(), identity.UserID, chi.URLParam(r, "id"), req.Title)
	switch {
	case errors.Is(err, conversation.ErrInvalidInput):
		response.Error(w, errInvalid.WithMessage(validationMessage(err)), nil)
	case errors.Is(err, conversation.ErrNotFound):
		response.Error(w, errNotFound, nil)
	case err != nil:
		h.fail(w, r, "failed to rename conversation", err)
	default:
		response.JSON(w, http.StatusOK, map[string]any{"conversation": c})
	}
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	if err := h.svc.Delete(r.Context(), identity.UserID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "failed to delete conversation", err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	identity, _ := auth.IdentityFromContext(r.Context())
	h.log.ErrorContext(r.Context(), msg, logger.UserID(identity.UserID), logger.Error(err))
	response.Error(w, response.ErrInternal, nil)
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, conversation.ErrTitleRequired):
		return "Title is required"
	case errors.Is(err, conversation.ErrTitleTooLong):
		return "Title is too long"
	case errors.Is(err, conversation.ErrTooManyMessages):
		return "Conversation is too long to save"
	default:
		return "Conversation contains an invalid message"
	}
}
