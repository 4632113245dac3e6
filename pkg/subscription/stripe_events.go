package subscription

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

// Stripe event types the reconciler acts on.
const (
	stripeSubscriptionCreated = "customer.subscription.created"
	stripeSubscriptionUpdated = "customer.subscription.updated"
	stripeSubscriptionDeleted = "customer.subscription.deleted"
	stripePaymentSucceeded    = "invoice.payment_succeeded"
	stripePaymentFailed       = "invoice.payment_failed"
)

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// Objects are decoded into local structs rather than stripe-go types so that
// payloads from newer API versions still parse.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	if event.ID == "" || event.Data == nil {
		return nil, fmt.Errorf("%w: missing id or data", ErrInvalidEvent)
	}

	meta := EventMeta{ID: event.ID, Type: string(event.Type), Payload: payload}
	return decodeStripeEvent(meta, event.Data.Raw)
}

func decodeStripeEvent(meta EventMeta, raw json.RawMessage) (Event, error) {
	switch meta.Type {
	case stripeSubscriptionCreated, stripeSubscriptionUpdated:
		var s stripeSubscription
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errors.Join(ErrInvalidEvent, err)
		}
		start, end := s.period()
		return SubscriptionChanged{
			EventMeta:          meta,
			SubscriptionID:     s.ID,
			CustomerID:         string(s.Customer),
			Status:             FromStripeStatus(s.Status),
			PlanID:             s.Metadata[metadataPlanID],
			PriceID:            s.priceID(),
			CurrentPeriodStart: start,
			CurrentPeriodEnd:   end,
			CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		}, nil

	case stripeSubscriptionDeleted:
		var s stripeSubscription
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errors.Join(ErrInvalidEvent, err)
		}
		return SubscriptionDeleted{EventMeta: meta, SubscriptionID: s.ID, CustomerID: string(s.Customer)}, nil

	case stripePaymentSucceeded:
		var inv stripeInvoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, errors.Join(ErrInvalidEvent, err)
		}
		return PaymentSucceeded{
			EventMeta:      meta,
			SubscriptionID: inv.subscriptionID(),
			CustomerID:     string(inv.Customer),
			InvoiceID:      inv.ID,
			AmountPaid:     Money{Amount: inv.AmountPaid, Currency: strings.ToUpper(inv.Currency)},
		}, nil

	case stripePaymentFailed:
		var inv stripeInvoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, errors.Join(ErrInvalidEvent, err)
		}
		return PaymentFailed{
			EventMeta:      meta,
			SubscriptionID: inv.subscriptionID(),
			CustomerID:     string(inv.Customer),
			CustomerEmail:  inv.CustomerEmail,
			InvoiceID:      inv.ID,
			AmountDue:      Money{Amount: inv.AmountDue, Currency: strings.ToUpper(inv.Currency)},
		}, nil

	default:
		return IgnoredEvent{EventMeta: meta}, nil
	}
}

// stripeRef is an expandable reference: either an id string or an object with an id.
type stripeRef string

func (r *stripeRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = stripeRef(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = stripeRef(obj.ID)
	return nil
}

// stripeTime is a unix timestamp. Values that do not parse decode as zero
// so a bad period never rejects the event carrying it.
type stripeTime int64

func (t *stripeTime) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	ts, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		*t = 0
		return nil
	}
	*t = stripeTime(ts)
	return nil
}

type stripeSubscription struct {
	ID                 string            `json:"id"`
	Customer           stripeRef         `json:"customer"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart *stripeTime       `json:"current_period_start"`
	CurrentPeriodEnd   *stripeTime       `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			CurrentPeriodStart *stripeTime `json:"current_period_start"`
			CurrentPeriodEnd   *stripeTime `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

func (s stripeSubscription) priceID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.ID
}

// period returns the billing period; newer API versions report it per item.
func (s stripeSubscription) period() (start, end *time.Time) {
	startTS, endTS := s.CurrentPeriodStart, s.CurrentPeriodEnd
	if len(s.Items.Data) > 0 {
		if unixTime(startTS) == nil {
			startTS = s.Items.Data[0].CurrentPeriodStart
		}
		if unixTime(endTS) == nil {
			endTS = s.Items.Data[0].CurrentPeriodEnd
		}
	}
	return unixTime(startTS), unixTime(endTS)
}

func unixTime(ts *stripeTime) *time.Time {
	if ts == nil || *ts <= 0 {
		return nil
	}
	t := time.Unix(int64(*ts), 0).UTC()
	return &t
}

type stripeInvoice struct {
	ID            string    `json:"id"`
	Customer      stripeRef `json:"customer"`
	CustomerEmail string    `json:"customer_email"`
	Subscription  stripeRef `json:"subscription"`
	AmountPaid    int64     `json:"amount_paid"`
	AmountDue     int64     `json:"amount_due"`
	Currency      string    `json:"currency"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription stripeRef `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (inv stripeInvoice) subscriptionID() string {
	if inv.Subscription != "" {
		return string(inv.Subscription)
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		return string(inv.Parent.SubscriptionDetails.Subscription)
	}
	return ""
}
