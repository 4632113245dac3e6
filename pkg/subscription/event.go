package subscription

import "time"

// Event is a verified webhook event. The variant set is closed: SubscriptionChanged,
// SubscriptionDeleted, PaymentSucceeded, PaymentFailed and IgnoredEvent.
type Event interface {
	Meta() EventMeta
	isEvent()
}

// EventMeta identifies a provider event.
type EventMeta struct {
	ID      string // provider event id, the idempotency key
	Type    string // provider event type, e.g. "customer.subscription.updated"
	Payload []byte // raw verified payload, kept for the ledger
}

func (m EventMeta) Meta() EventMeta { return m }
func (EventMeta) isEvent()          {}

// SubscriptionChanged reports a created or updated provider subscription.
type SubscriptionChanged struct {
	EventMeta
	SubscriptionID     string
	CustomerID         string
	Status             Status
	PlanID             string // from subscription metadata; may be empty or stale
	PriceID            string // first line item
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
}

// SubscriptionDeleted reports a provider subscription that ended.
type SubscriptionDeleted struct {
	EventMeta
	SubscriptionID string
	CustomerID     string
}

// PaymentSucceeded reports a paid invoice. SubscriptionID is empty for one-off invoices.
type PaymentSucceeded struct {
	EventMeta
	SubscriptionID string
	CustomerID     string
	InvoiceID      string
	AmountPaid     Money
}

// PaymentFailed reports a failed invoice payment.
type PaymentFailed struct {
	EventMeta
	SubscriptionID string
	CustomerID     string
	CustomerEmail  string
	InvoiceID      string
	AmountDue      Money
}

// IgnoredEvent is any provider event the reconciler does not act on.
type IgnoredEvent struct {
	EventMeta
}
