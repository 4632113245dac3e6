package subscription_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mymechanic/pkg/email"
	"github.com/dmitrymomot/mymechanic/pkg/subscription"
)

type captureSender struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
}

func (s *captureSender) SendEmail(_ context.Context, params email.SendEmailParams) error {
	time.Sleep(10 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, params)
	return nil
}

func TestEmailNotifier(t *testing.T) {
	t.Parallel()

	sender := &captureSender{}
	n := subscription.NewEmailNotifier(sender, testCatalog(t), "https://app.test/dashboard.html", nil)

	ctx, cancel := context.WithCancel(context.Background())
	n.NotifyPaymentFailed(ctx, subscription.PaymentFailedNotice{
		UserID: "u1",
		Email:  "driver@example.com",
		PlanID: "starter",
		Amount: subscription.Money{Amount: 499, Currency: "GBP"},
	})
	cancel() // the send outlives the webhook request

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
	defer closeCancel()
	require.NoError(t, n.Close(closeCtx))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "driver@example.com", msg.SendTo)
	assert.Equal(t, email.TagPaymentFailed, msg.Tag)
	assert.Contains(t, msg.Subject, "Starter")
	assert.Contains(t, msg.BodyHTML, "4.99")
	assert.Contains(t, msg.BodyHTML, "https://app.test/dashboard.html")
}

func TestEmailNotifier_DropsAfterClose(t *testing.T) {
	t.Parallel()

	sender := &captureSender{}
	n := subscription.NewEmailNotifier(sender, testCatalog(t), "https://app.test/dashboard.html", nil)
	require.NoError(t, n.Close(context.Background()))

	n.NotifyPaymentFailed(context.Background(), subscription.PaymentFailedNotice{
		UserID: "u1",
		Email:  "driver@example.com",
		PlanID: "starter",
	})
	require.NoError(t, n.Close(context.Background()))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Empty(t, sender.sent)
}
