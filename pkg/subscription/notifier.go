package subscription

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/mymechanic/pkg/email"
	"github.com/dmitrymomot/mymechanic/pkg/logger"
)

// EmailNotifier sends payment failure notices in the background.
type EmailNotifier struct {
	sender    email.EmailSender
	catalog   *Catalog
	manageURL string
	timeout   time.Duration
	log       *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewEmailNotifier returns a Notifier that emails the customer. manageURL is
// linked from the email so the customer can fix their payment method.
func NewEmailNotifier(sender email.EmailSender, catalog *Catalog, manageURL string, log *slog.Logger) *EmailNotifier {
	if sender == nil || catalog == nil {
		panic("subscription: email notifier requires a sender and a catalog")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &EmailNotifier{
		sender:    sender,
		catalog:   catalog,
		manageURL: manageURL,
		timeout:   15 * time.Second,
		log:       log.With(logger.Component("notifier")),
	}
}

func (n *EmailNotifier) NotifyPaymentFailed(ctx context.Context, notice PaymentFailedNotice) {
	productName := "MyMechanic"
	if p, ok := n.catalog.Plan(notice.PlanID); ok {
		productName = "MyMechanic " + p.Name
	}
	var amount string
	if notice.Amount.Amount > 0 {
		amount = notice.Amount.Format(DefaultLocale)
	}

	params, err := email.PaymentFailed(notice.Email, email.PaymentFailedData{
		ProductName: productName,
		Amount:      amount,
		ManageURL:   n.manageURL,
	})
	if err != nil {
		n.log.ErrorContext(ctx, "failed to render payment failed email", logger.UserID(notice.UserID), logger.Error(err))
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.log.WarnContext(ctx, "payment failed email after close dropped", logger.UserID(notice.UserID))
		return
	}

	// Detached from the webhook request, which is answered before the email goes out.
	sendCtx := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(sendCtx, n.timeout)
		defer cancel()

		if err := n.sender.SendEmail(sendCtx, params); err != nil {
			n.log.ErrorContext(sendCtx, "failed to send payment failed email", logger.UserID(notice.UserID), logger.Error(err))
			return
		}
		n.log.InfoContext(sendCtx, "payment failed email sent", logger.UserID(notice.UserID))
	}()
}

// Close stops accepting notices and waits for in-flight emails or until ctx ends.
func (n *EmailNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
