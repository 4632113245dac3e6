package subscription_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mymechanic/pkg/subscription"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	args := m.Called(ctx, userID, email)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) CustomerUserID(ctx context.Context, customerID string) (string, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) CreateCheckoutSession(ctx context.Context, req subscription.CheckoutSessionRequest) (*subscription.CheckoutLink, error) {
	args := m.Called(ctx, req)
	if link := args.Get(0); link != nil {
		return link.(*subscription.CheckoutLink), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*subscription.PortalLink, error) {
	args := m.Called(ctx, customerID, returnURL)
	if link := args.Get(0); link != nil {
		return link.(*subscription.PortalLink), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) ParseWebhook(payload []byte, signature string) (subscription.Event, error) {
	args := m.Called(payload, signature)
	if ev := args.Get(0); ev != nil {
		return ev.(subscription.Event), args.Error(1)
	}
	return nil, args.Error(1)
}

// deliver registers ev as the decoded form of a payload equal to its id.
func (m *mockProvider) deliver(ev subscription.Event) []byte {
	payload := []byte(ev.Meta().ID)
	m.On("ParseWebhook", payload, "sig").Return(ev, nil)
	return payload
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []subscription.PaymentFailedNotice
}

func (n *recordingNotifier) NotifyPaymentFailed(_ context.Context, notice subscription.PaymentFailedNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) all() []subscription.PaymentFailedNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]subscription.PaymentFailedNotice(nil), n.notices...)
}

func testCatalog(t *testing.T) *subscription.Catalog {
	t.Helper()
	c, err := subscription.LoadCatalog(subscription.CatalogConfig{
		PriceTrial:        "price_trial",
		PriceBasic:        "price_basic",
		PriceStarter:      "price_starter",
		PriceProfessional: "price_pro",
		PriceUnlimited:    "price_unlimited",
		DefaultPlanID:     "starter",
		TrialCap:          2,
	})
	require.NoError(t, err)
	return c
}
