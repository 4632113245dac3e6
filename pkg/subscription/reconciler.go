package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/mymechanic/pkg/audit"
	"github.com/dmitrymomot/mymechanic/pkg/logger"
)

// WebhookResult describes how a delivery was handled.
type WebhookResult struct {
	EventID   string
	EventType string
	Duplicate bool
}

// Reconciler applies verified provider events to the subscription store.
// Every transition is idempotent, so concurrent deliveries of one event are harmless.
type Reconciler struct {
	store    Store
	ledger   Ledger
	provider BillingProvider
	catalog  *Catalog
	opts     options
}

func NewReconciler(store Store, ledger Ledger, provider BillingProvider, catalog *Catalog, opts ...Option) *Reconciler {
	if store == nil || ledger == nil || provider == nil || catalog == nil {
		panic("subscription: reconciler requires a store, a ledger, a provider and a catalog")
	}
	return &Reconciler{
		store:    store,
		ledger:   ledger,
		provider: provider,
		catalog:  catalog,
		opts:     newOptions("webhook", opts),
	}
}

// HandleWebhook verifies, deduplicates, applies and records one delivery.
//
// Signature and decoding failures are returned before anything is recorded.
// A ledger lookup failure is logged and the event is applied anyway.
// A failure to record the outcome is logged and never returned.
// The returned error is non-nil only when verification or the transition failed.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	ctx, span := r.opts.tracer.Start(ctx, "subscription.HandleWebhook")
	defer span.End()

	ev, err := r.provider.ParseWebhook(payload, signature)
	if err != nil {
		r.opts.metrics.Webhook(ctx, "unknown", "rejected")
		r.opts.log.WarnContext(ctx, "webhook rejected", logger.Error(err))
		span.SetStatus(codes.Error, "webhook rejected")
		if errors.Is(err, ErrInvalidSignature) {
			return WebhookResult{}, err
		}
		return WebhookResult{}, errors.Join(ErrInvalidEvent, err)
	}

	meta := ev.Meta()
	res := WebhookResult{EventID: meta.ID, EventType: meta.Type}
	span.SetAttributes(attribute.String("webhook.event_id", meta.ID), attribute.String("webhook.event_type", meta.Type))
	log := r.opts.log.With(logger.EventID(meta.ID), logger.EventType(meta.Type))

	processed, err := r.ledger.HasBeenProcessed(ctx, meta.ID)
	if err != nil {
		log.WarnContext(ctx, "webhook ledger lookup failed, processing anyway", logger.Error(err))
	}
	if processed {
		res.Duplicate = true
		r.opts.metrics.Webhook(ctx, meta.Type, "duplicate")
		log.InfoContext(ctx, "duplicate webhook event skipped")
		return res, nil
	}

	applyErr := r.Apply(ctx, ev)

	entry := LedgerEntry{
		EventID:   meta.ID,
		EventType: meta.Type,
		Payload:   meta.Payload,
		Outcome:   OutcomeProcessed,
	}
	if applyErr != nil {
		entry.Outcome = OutcomeFailed
		entry.Error = applyErr.Error()
	}
	if err := r.ledger.RecordOutcome(ctx, entry); err != nil {
		log.ErrorContext(ctx, "failed to record webhook outcome", slog.String("outcome", string(entry.Outcome)), logger.Error(err))
	}

	if applyErr != nil {
		r.opts.metrics.Webhook(ctx, meta.Type, string(OutcomeFailed))
		log.ErrorContext(ctx, "webhook handling failed", logger.Error(applyErr))
		span.RecordError(applyErr)
		span.SetStatus(codes.Error, applyErr.Error())
		return res, applyErr
	}

	r.opts.metrics.Webhook(ctx, meta.Type, string(OutcomeProcessed))
	return res, nil
}

// Apply performs the state transition for ev without touching the ledger.
// Events that cannot be tied to a local user or row are logged and skipped.
func (r *Reconciler) Apply(ctx context.Context, ev Event) error {
	ctx, span := r.opts.tracer.Start(ctx, "subscription.Apply", trace.WithAttributes(
		attribute.String("webhook.event_type", ev.Meta().Type),
	))
	defer span.End()

	log := r.opts.log.With(logger.EventID(ev.Meta().ID), logger.EventType(ev.Meta().Type))

	switch e := ev.(type) {
	case SubscriptionChanged:
		return r.applyChanged(ctx, log, e)
	case SubscriptionDeleted:
		return r.applyStatus(ctx, log, e.SubscriptionID, StatusCanceled, audit.ActionSubscriptionDeleted, nil)
	case PaymentSucceeded:
		if e.SubscriptionID == "" {
			log.InfoContext(ctx, "invoice without subscription ignored", slog.String("invoice_id", e.InvoiceID))
			return nil
		}
		return r.applyStatus(ctx, log, e.SubscriptionID, StatusActive, audit.ActionPaymentSucceeded, map[string]any{
			"invoice_id": e.InvoiceID,
			"amount":     majorUnits(e.AmountPaid),
			"currency":   e.AmountPaid.Currency,
		})
	case PaymentFailed:
		return r.applyPaymentFailed(ctx, log, e)
	case IgnoredEvent:
		log.DebugContext(ctx, "webhook event type not handled")
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}

func (r *Reconciler) applyChanged(ctx context.Context, log *slog.Logger, e SubscriptionChanged) error {
	userID, err := r.provider.CustomerUserID(ctx, e.CustomerID)
	if err != nil {
		return errors.Join(ErrCustomerLookup, err)
	}
	if userID == "" {
		log.WarnContext(ctx, "billing customer has no user id, event skipped", logger.CustomerID(e.CustomerID))
		return nil
	}

	planID := r.catalog.ResolvePlanID(e.PlanID, e.PriceID)
	sub, err := r.store.UpsertFromProviderEvent(ctx, userID, e.CustomerID, ProviderFields{
		SubscriptionID:     e.SubscriptionID,
		PlanID:             planID,
		Status:             e.Status,
		CurrentPeriodStart: e.CurrentPeriodStart,
		CurrentPeriodEnd:   e.CurrentPeriodEnd,
		CancelAtPeriodEnd:  e.CancelAtPeriodEnd,
	})
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "subscription updated",
		logger.UserID(userID),
		logger.SubscriptionID(e.SubscriptionID),
		logger.PlanID(sub.PlanID),
		logger.Status(string(sub.Status)),
	)
	if err := r.opts.auditor.Log(ctx, audit.ActionSubscriptionUpdated,
		audit.WithUserID(userID),
		audit.WithResource("subscription", e.SubscriptionID),
		audit.WithMetadata(map[string]any{
			"status":               string(sub.Status),
			"plan_id":              sub.PlanID,
			"cancel_at_period_end": sub.CancelAtPeriodEnd,
			"event_id":             e.ID,
		}),
	); err != nil {
		log.WarnContext(ctx, "failed to write audit event", logger.Error(err))
	}
	return nil
}

func (r *Reconciler) applyStatus(ctx context.Context, log *slog.Logger, subscriptionID string, status Status, action string, meta map[string]any) error {
	sub, err := r.store.MarkStatus(ctx, subscriptionID, status)
	if errors.Is(err, ErrSubscriptionNotFound) {
		log.WarnContext(ctx, "no subscription row for provider subscription, event skipped", logger.SubscriptionID(subscriptionID))
		return nil
	}
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "subscription status changed",
		logger.UserID(sub.UserID),
		logger.SubscriptionID(subscriptionID),
		logger.Status(string(sub.Status)),
	)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["status"] = string(sub.Status)
	if err := r.opts.auditor.Log(ctx, action,
		audit.WithUserID(sub.UserID),
		audit.WithResource("subscription", subscriptionID),
		audit.WithMetadata(meta),
	); err != nil {
		log.WarnContext(ctx, "failed to write audit event", logger.Error(err))
	}
	return nil
}

func (r *Reconciler) applyPaymentFailed(ctx context.Context, log *slog.Logger, e PaymentFailed) error {
	if e.SubscriptionID == "" {
		log.InfoContext(ctx, "invoice without subscription ignored", slog.String("invoice_id", e.InvoiceID))
		return nil
	}

	sub, err := r.store.MarkStatus(ctx, e.SubscriptionID, StatusPastDue)
	if errors.Is(err, ErrSubscriptionNotFound) {
		log.WarnContext(ctx, "no subscription row for provider subscription, event skipped", logger.SubscriptionID(e.SubscriptionID))
		return nil
	}
	if err != nil {
		return err
	}

	log.WarnContext(ctx, "subscription payment failed",
		logger.UserID(sub.UserID),
		logger.SubscriptionID(e.SubscriptionID),
		logger.Status(string(sub.Status)),
	)
	if err := r.opts.auditor.Log(ctx, audit.ActionPaymentFailed,
		audit.WithUserID(sub.UserID),
		audit.WithResource("subscription", e.SubscriptionID),
		audit.WithResult(audit.ResultFailure),
		audit.WithMetadata(map[string]any{
			"invoice_id": e.InvoiceID,
			"amount":     majorUnits(e.AmountDue),
			"currency":   e.AmountDue.Currency,
			"status":     string(sub.Status),
		}),
	); err != nil {
		log.WarnContext(ctx, "failed to write audit event", logger.Error(err))
	}

	if e.CustomerEmail != "" && sub.Status == StatusPastDue {
		r.opts.notifier.NotifyPaymentFailed(ctx, PaymentFailedNotice{
			UserID: sub.UserID,
			Email:  e.CustomerEmail,
			PlanID: sub.PlanID,
			Amount: e.AmountDue,
		})
	}
	return nil
}

func majorUnits(m Money) float64 {
	return float64(m.Amount) / 100
}
