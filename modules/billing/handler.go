package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/mymechanic/pkg/auth"
	"github.com/dmitrymomot/mymechanic/pkg/binder"
	"github.com/dmitrymomot/mymechanic/pkg/logger"
	"github.com/dmitrymomot/mymechanic/pkg/response"
	"github.com/dmitrymomot/mymechanic/pkg/subscription"
)

// MaxWebhookSize caps webhook payloads.
const MaxWebhookSize = 1 << 20

var (
	errInvalidSignature = response.HTTPError{Status: http.StatusBadRequest, Code: "invalid_signature", Message: "Invalid webhook signature"}
	errInvalidEvent     = response.HTTPError{Status: http.StatusBadRequest, Code: "invalid_event", Message: "Invalid webhook payload"}
	errWebhookFailed    = response.HTTPError{Status: http.StatusInternalServerError, Code: "webhook_failed", Message: "Webhook handler failed"}

	errInvalidPlan        = response.HTTPError{Status: http.StatusBadRequest, Code: "invalid_plan", Message: "Invalid plan selected"}
	errAlreadySubscribed  = response.HTTPError{Status: http.StatusConflict, Code: "already_subscribed", Message: "You already have an active subscription"}
	errTrialLimitExceeded = response.HTTPError{Status: http.StatusForbidden, Code: "trial_limit_exceeded", Message: "Trial limit reached. Please choose a paid plan."}
	errCheckoutFailed     = response.HTTPError{Status: http.StatusInternalServerError, Code: "checkout_failed", Message: "Failed to create checkout session"}

	errNoCustomer   = response.HTTPError{Status: http.StatusNotFound, Code: "no_customer", Message: "No billing account found"}
	errPortalFailed = response.HTTPError{Status: http.StatusInternalServerError, Code: "portal_failed", Message: "Failed to open billing portal"}

	errNoSubscription = response.HTTPError{Status: http.StatusNotFound, Code: "subscription_not_found", Message: "No subscription found"}
)

// WebhookHandler applies provider webhook deliveries.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (subscription.WebhookResult, error)
}

// CheckoutStarter opens hosted checkout and portal sessions.
type CheckoutStarter interface {
	StartCheckout(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutLink, error)
	OpenPortal(ctx context.Context, userID, returnURL string) (*subscription.PortalLink, error)
}

// SubscriptionReader loads subscription rows of a user.
type SubscriptionReader interface {
	GetCurrentSubscription(ctx context.Context, userID string) (*subscription.Subscription, error)
	GetLatest(ctx context.Context, userID string) (*subscription.Subscription, error)
}

// Handler serves /subscriptions.
type Handler struct {
	cfg          Config
	webhooks     WebhookHandler
	checkout     CheckoutStarter
	subs         SubscriptionReader
	catalog      *subscription.Catalog
	authenticate func(http.Handler) http.Handler
	log          *slog.Logger
}

// NewHandler wires the billing endpoints. authenticate guards every route
// except the webhook and the public plan list.
func NewHandler(
	cfg Config,
	webhooks WebhookHandler,
	checkout CheckoutStarter,
	subs SubscriptionReader,
	catalog *subscription.Catalog,
	authenticate func(http.Handler) http.Handler,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		cfg:          cfg,
		webhooks:     webhooks,
		checkout:     checkout,
		subs:         subs,
		catalog:      catalog,
		authenticate: authenticate,
		log:          log.With(logger.Component("billing")),
	}
}

func (h *Handler) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/webhook", h.webhook)
	r.Get("/plans", h.plans)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		r.Post("/checkout", h.startCheckout)
		r.Post("/portal", h.openPortal)
		r.Get("/status", h.status)
	})

	return r
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookSize))
	if err != nil {
		response.Error(w, errInvalidEvent, nil)
		return
	}

	started := time.Now()
	res, err := h.webhooks.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, subscription.ErrInvalidSignature):
		h.log.WarnContext(r.Context(), "webhook signature rejected", logger.Error(err))
		response.Error(w, errInvalidSignature, nil)
		return
	case errors.Is(err, subscription.ErrInvalidEvent):
		h.log.WarnContext(r.Context(), "webhook payload rejected", logger.Error(err))
		response.Error(w, errInvalidEvent, nil)
		return
	case err != nil:
		h.log.ErrorContext(r.Context(), "webhook handling failed",
			logger.EventID(res.EventID), logger.EventType(res.EventType), logger.Error(err))
		response.Error(w, errWebhookFailed, nil)
		return
	}

	h.log.DebugContext(r.Context(), "webhook handled",
		logger.EventID(res.EventID), logger.EventType(res.EventType),
		slog.Bool("duplicate", res.Duplicate), logger.Duration(time.Since(started)))

	body := map[string]bool{"received": true}
	if res.Duplicate {
		body["duplicate"] = true
	}
	response.JSON(w, http.StatusOK, body)
}

type checkoutRequest struct {
	PlanID string `json:"planId" validate:"required,max=64"`
}

func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var req checkoutRequest
	if err := binder.JSON(r, &req); err != nil {
		response.BindError(w, err)
		return
	}

	link, err := h.checkout.StartCheckout(r.Context(), subscription.CheckoutRequest{
		UserID:     identity.UserID,
		Email:      identity.Email,
		PlanID:     req.PlanID,
		SuccessURL: h.cfg.URL(h.cfg.SuccessPath),
		CancelURL:  h.cfg.URL(h.cfg.CancelPath),
	})
	switch {
	case errors.Is(err, subscription.ErrInvalidPlan):
		response.Error(w, errInvalidPlan, nil)
	case errors.Is(err, subscription.ErrAlreadySubscribed):
		response.Error(w, errAlreadySubscribed, nil)
	case errors.Is(err, subscription.ErrTrialLimitExceeded):
		response.Error(w, errTrialLimitExceeded, nil)
	case err != nil:
		h.log.ErrorContext(r.Context(), "checkout failed", logger.UserID(identity.UserID), logger.PlanID(req.PlanID), logger.Error(err))
		response.Error(w, errCheckoutFailed, nil)
	default:
		response.JSON(w, http.StatusOK, link)
	}
}

func (h *Handler) openPortal(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	link, err := h.checkout.OpenPortal(r.Context(), identity.UserID, h.cfg.URL(h.cfg.PortalReturnPath))
	switch {
	case errors.Is(err, subscription.ErrNoCustomer):
		response.Error(w, errNoCustomer, nil)
	case err != nil:
		h.log.ErrorContext(r.Context(), "portal failed", logger.UserID(identity.UserID), logger.Error(err))
		response.Error(w, errPortalFailed, nil)
	default:
		response.JSON(w, http.StatusOK, link)
	}
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	sub, err := h.subs.GetCurrentSubscription(r.Context(), identity.UserID)
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		// A lapsed row is reported in the 404 body, never as the current subscription.
		var extra map[string]any
		if latest, err := h.subs.GetLatest(r.Context(), identity.UserID); err == nil {
			extra = map[string]any{"status": latest.Status}
		}
		response.Error(w, errNoSubscription, extra)
	case err != nil:
		h.log.ErrorContext(r.Context(), "failed to load subscription", logger.UserID(identity.UserID), logger.Error(err))
		response.Error(w, response.ErrInternal, nil)
	default:
		response.JSON(w, http.StatusOK, map[string]any{"subscription": sub})
	}
}

type planView struct {
	subscription.Plan
	DisplayPrice string `json:"displayPrice"`
	Unlimited    bool   `json:"unlimited"`
}

func (h *Handler) plans(w http.ResponseWriter, _ *http.Request) {
	public := h.catalog.Public()
	views := make([]planView, 0, len(public))
	for _, p := range public {
		views = append(views, planView{Plan: p, DisplayPrice: p.DisplayPrice(), Unlimited: p.IsUnlimited()})
	}
	response.JSON(w, http.StatusOK, map[string]any{"plans": views})
}
