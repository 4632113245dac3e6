package subscription

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/dmitrymomot/mymechanic/pkg/logger"
)

const (
	metadataUserID = "user_id"
	metadataPlanID = "plan_id"

	// Customers created before the user_id key carry the identity provider's name for it.
	legacyMetadataUserID = "supabase_user_id"
)

// StripeProvider implements BillingProvider with stripe-go.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	timeout       time.Duration
	log           *slog.Logger
}

// NewStripeProvider creates a provider from cfg.
func NewStripeProvider(cfg StripeConfig, log *slog.Logger) (*StripeProvider, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}

	var backends *stripe.Backends
	if cfg.APIURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(cfg.APIURL),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	return &StripeProvider{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		timeout:       cfg.Timeout,
		log:           log.With(logger.Component("stripe")),
	}, nil
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.CustomerParams{Params: stripe.Params{Context: ctx}}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata(metadataUserID, userID)

	cus, err := p.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	p.log.InfoContext(ctx, "stripe customer created", logger.UserID(userID), logger.CustomerID(cus.ID))
	return cus.ID, nil
}

func (p *StripeProvider) CustomerUserID(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cus, err := p.api.Customers.Get(customerID, &stripe.CustomerParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	if cus.Deleted {
		return "", nil
	}
	if id := cus.Metadata[metadataUserID]; id != "" {
		return id, nil
	}
	return cus.Metadata[legacyMetadataUserID], nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutLink, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	meta := map[string]string{metadataUserID: req.UserID, metadataPlanID: req.PlanID}
	params := &stripe.CheckoutSessionParams{
		Params:             stripe.Params{Context: ctx},
		Customer:           stripe.String(req.CustomerID),
		ClientReferenceID:  stripe.String(req.UserID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		// Subscription metadata is what later subscription webhooks carry.
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{Metadata: meta},
	}
	for k, v := range meta {
		params.AddMetadata(k, v)
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	if sess.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	link := &CheckoutLink{URL: sess.URL, SessionID: sess.ID}
	if sess.ExpiresAt > 0 {
		link.ExpiresAt = time.Unix(sess.ExpiresAt, 0).UTC()
	}
	return link, nil
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalLink, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	sess, err := p.api.BillingPortalSessions.New(&stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return nil, err
	}
	if sess.URL == "" {
		return nil, ErrNoPortalURL
	}
	return &PortalLink{URL: sess.URL}, nil
}
