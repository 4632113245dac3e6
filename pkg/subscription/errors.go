package subscription

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPersistence          = errors.New("subscription persistence failed")

	ErrInvalidPlan            = errors.New("invalid subscription plan")
	ErrAlreadySubscribed      = errors.New("user already has an active subscription")
	ErrTrialLimitExceeded     = errors.New("trial plan limit exceeded")
	ErrCheckoutCreationFailed = errors.New("checkout session creation failed")
	ErrNoCustomer             = errors.New("no billing customer on file")
	ErrPortalCreationFailed   = errors.New("portal session creation failed")

	ErrInvalidSignature  = errors.New("webhook signature verification failed")
	ErrInvalidEvent      = errors.New("invalid webhook event")
	ErrUnknownEvent      = errors.New("unknown webhook event variant")
	ErrCustomerLookup    = errors.New("billing customer lookup failed")
	ErrMissingAPIKey     = errors.New("billing provider API key is required")
	ErrMissingWebhookKey = errors.New("billing provider webhook secret is required")
	ErrNoCheckoutURL     = errors.New("no checkout URL returned from provider")
	ErrNoPortalURL       = errors.New("no portal URL returned from provider")
	ErrInvalidCatalog    = errors.New("invalid plan catalog")
	ErrFailedToLoadPlans = errors.New("failed to load subscription plans")
	ErrLedgerUnavailable = errors.New("webhook ledger unavailable")
)
