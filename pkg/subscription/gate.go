package subscription

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrymomot/mymechanic/pkg/auth"
	"github.com/dmitrymomot/mymechanic/pkg/logger"
	"github.com/dmitrymomot/mymechanic/pkg/response"
)

// ErrSubscriptionRequired is the 403 body sent to users without a current subscription.
var ErrSubscriptionRequired = response.HTTPError{
	Status:  http.StatusForbidden,
	Code:    "subscription_required",
	Message: "Active subscription required",
}

// Gate admits only users whose current subscription entitles them to the product.
type Gate struct {
	store Store
	opts  options
}

func NewGate(store Store, opts ...Option) *Gate {
	if store == nil {
		panic("subscription: gate requires a store")
	}
	return &Gate{store: store, opts: newOptions("access_gate", opts)}
}

// Check returns the user's current subscription, or ErrSubscriptionNotFound
// when they have none in an entitling status.
func (g *Gate) Check(ctx context.Context, userID string) (*Subscription, error) {
	sub, err := g.store.GetCurrentSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sub.IsCurrent() {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

// Middleware must run after auth.Middleware. Admitted requests carry the
// subscription in their context; see FromContext.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, ok := auth.IdentityFromContext(ctx)
		if !ok {
			response.Error(w, response.ErrUnauthorized, nil)
			return
		}

		sub, err := g.Check(ctx, id.UserID)
		switch {
		case errors.Is(err, ErrSubscriptionNotFound):
			status := g.lastStatus(ctx, id.UserID)
			g.opts.metrics.AccessDenied(ctx, status)
			g.opts.log.InfoContext(ctx, "access denied without current subscription", logger.UserID(id.UserID), logger.Status(status))
			extra := map[string]any{"needsSubscription": true}
			if status != "none" {
				extra["status"] = status
			}
			response.Error(w, ErrSubscriptionRequired, extra)
			return
		case err != nil:
			g.opts.log.ErrorContext(ctx, "failed to load subscription", logger.UserID(id.UserID), logger.Error(err))
			response.Error(w, response.ErrInternal.WithMessage("Failed to verify subscription"), nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithContext(ctx, sub)))
	})
}

// lastStatus names the status of the user's newest row so the client can
// tell a lapsed payment from a missing subscription.
func (g *Gate) lastStatus(ctx context.Context, userID string) string {
	latest, err := g.store.GetLatest(ctx, userID)
	if err != nil {
		return "none"
	}
	return string(latest.Status)
}

type subscriptionCtxKey struct{}

// WithContext returns a copy of ctx carrying sub.
func WithContext(ctx context.Context, sub *Subscription) context.Context {
	return context.WithValue(ctx, subscriptionCtxKey{}, sub)
}

// FromContext returns the subscription stored by Gate.Middleware.
func FromContext(ctx context.Context) (*Subscription, bool) {
	sub, ok := ctx.Value(subscriptionCtxKey{}).(*Subscription)
	return sub, ok && sub != nil
}
