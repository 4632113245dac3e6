package subscription

import (
	"context"
	"time"
)

// BillingProvider is the adapter boundary to the payments provider.
// Implementations use the provider's official SDK and keep its quirks internal.
type BillingProvider interface {
	// CreateCustomer registers a billing customer tagged with the local user id.
	CreateCustomer(ctx context.Context, userID, email string) (customerID string, err error)

	// CustomerUserID returns the local user id stored on the customer.
	// An empty id with a nil error means the customer carries no such metadata.
	CustomerUserID(ctx context.Context, customerID string) (string, error)

	// CreateCheckoutSession creates a hosted checkout for a recurring price.
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutLink, error)

	// CreatePortalSession returns a temporary link to the hosted billing portal.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalLink, error)

	// ParseWebhook verifies the signature and decodes the payload.
	// Signature failures wrap ErrInvalidSignature.
	ParseWebhook(payload []byte, signature string) (Event, error)
}

// CheckoutSessionRequest contains data needed to create a checkout session.
type CheckoutSessionRequest struct {
	CustomerID string // Provider customer id
	PriceID    string // Provider price id
	UserID     string // Local user id, attached as metadata
	PlanID     string // Local plan id, attached as metadata
	SuccessURL string // Redirect after successful payment
	CancelURL  string // Redirect if customer cancels
}

// CheckoutLink represents a hosted checkout session.
type CheckoutLink struct {
	URL       string    `json:"checkoutUrl"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"-"`
}

// PortalLink represents a customer portal session.
type PortalLink struct {
	URL string `json:"portalUrl"`
}
