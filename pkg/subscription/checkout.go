package subscription

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/mymechanic/pkg/audit"
	"github.com/dmitrymomot/mymechanic/pkg/logger"
)

// CheckoutRequest starts a purchase for an authenticated user.
type CheckoutRequest struct {
	UserID     string
	Email      string
	PlanID     string
	SuccessURL string
	CancelURL  string
}

// Checkout creates hosted checkout and billing portal sessions.
type Checkout struct {
	store    Store
	provider BillingProvider
	catalog  *Catalog
	opts     options
}

func NewCheckout(store Store, provider BillingProvider, catalog *Catalog, opts ...Option) *Checkout {
	if store == nil || provider == nil || catalog == nil {
		panic("subscription: checkout requires a store, a provider and a catalog")
	}
	return &Checkout{
		store:    store,
		provider: provider,
		catalog:  catalog,
		opts:     newOptions("checkout", opts),
	}
}

// StartCheckout validates the purchase and returns a hosted checkout link.
// A pending row with a provider customer id exists before the link is returned,
// so the webhook that follows payment always finds the user.
func (c *Checkout) StartCheckout(ctx context.Context, req CheckoutRequest) (link *CheckoutLink, err error) {
	ctx, span := c.opts.tracer.Start(ctx, "subscription.StartCheckout", trace.WithAttributes(
		attribute.String("plan.id", req.PlanID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	plan, ok := c.catalog.Plan(req.PlanID)
	if !ok || plan.PriceID == "" {
		c.opts.metrics.Checkout(ctx, req.PlanID, "invalid_plan")
		return nil, ErrInvalidPlan
	}
	log := c.opts.log.With(logger.UserID(req.UserID), logger.PlanID(plan.ID))

	current, err := c.store.GetCurrentSubscription(ctx, req.UserID)
	switch {
	case err == nil && (current.Status == StatusActive || current.Status == StatusTrialing):
		c.opts.metrics.Checkout(ctx, plan.ID, "already_subscribed")
		return nil, ErrAlreadySubscribed
	case err != nil && !errors.Is(err, ErrSubscriptionNotFound):
		return nil, err
	}

	if plan.TrialCap > 0 {
		used, err := c.store.CountByPlan(ctx, req.UserID, plan.ID)
		if err != nil {
			return nil, err
		}
		if used >= plan.TrialCap {
			c.opts.metrics.Checkout(ctx, plan.ID, "trial_limit_exceeded")
			return nil, ErrTrialLimitExceeded
		}
	}

	customerID, err := c.customerFor(ctx, req, plan, log)
	if err != nil {
		c.opts.metrics.Checkout(ctx, plan.ID, "failed")
		return nil, err
	}

	link, err = c.provider.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		CustomerID: customerID,
		PriceID:    plan.PriceID,
		UserID:     req.UserID,
		PlanID:     plan.ID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		// The pending row stays; the next attempt reuses its customer.
		log.ErrorContext(ctx, "failed to create checkout session", logger.CustomerID(customerID), logger.Error(err))
		c.opts.metrics.Checkout(ctx, plan.ID, "failed")
		return nil, errors.Join(ErrCheckoutCreationFailed, err)
	}

	c.opts.metrics.Checkout(ctx, plan.ID, "created")
	if err := c.opts.auditor.Log(ctx, audit.ActionCheckoutStarted,
		audit.WithUserID(req.UserID),
		audit.WithResource("checkout_session", link.SessionID),
		audit.WithMetadata(map[string]any{"plan_id": plan.ID}),
	); err != nil {
		log.WarnContext(ctx, "failed to write audit event", logger.Error(err))
	}
	log.InfoContext(ctx, "checkout session created", slog.String("session_id", link.SessionID))

	return link, nil
}

// customerFor reuses the customer of the user's open row or registers a new one
// together with a pending row.
func (c *Checkout) customerFor(ctx context.Context, req CheckoutRequest, plan Plan, log *slog.Logger) (string, error) {
	open, err := c.store.GetLatestOpen(ctx, req.UserID)
	switch {
	case err == nil && open.ExternalCustomerID != "":
		return open.ExternalCustomerID, nil
	case err != nil && !errors.Is(err, ErrSubscriptionNotFound):
		return "", err
	}

	customerID, err := c.provider.CreateCustomer(ctx, req.UserID, req.Email)
	if err != nil {
		log.ErrorContext(ctx, "failed to create billing customer", logger.Error(err))
		return "", errors.Join(ErrCheckoutCreationFailed, err)
	}

	if _, err := c.store.CreatePending(ctx, req.UserID, customerID, plan.ID); err != nil {
		log.ErrorContext(ctx, "failed to store pending subscription", logger.CustomerID(customerID), logger.Error(err))
		if errors.Is(err, ErrPersistence) {
			return "", err
		}
		return "", errors.Join(ErrPersistence, err)
	}

	return customerID, nil
}

// OpenPortal returns a billing portal link for the customer of the user's newest row.
func (c *Checkout) OpenPortal(ctx context.Context, userID, returnURL string) (*PortalLink, error) {
	latest, err := c.store.GetLatest(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) || (err == nil && latest.ExternalCustomerID == "") {
		return nil, ErrNoCustomer
	}
	if err != nil {
		return nil, err
	}

	link, err := c.provider.CreatePortalSession(ctx, latest.ExternalCustomerID, returnURL)
	if err != nil {
		c.opts.log.ErrorContext(ctx, "failed to create portal session",
			logger.UserID(userID), logger.CustomerID(latest.ExternalCustomerID), logger.Error(err))
		return nil, errors.Join(ErrPortalCreationFailed, err)
	}
	return link, nil
}
