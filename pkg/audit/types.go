package audit

import (
	"fmt"
	"time"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Actions recorded by the billing, chat and conversation flows.
const (
	ActionSubscriptionUpdated = "subscription_updated"
	ActionSubscriptionDeleted = "subscription_deleted"
	ActionPaymentSucceeded    = "payment_succeeded"
	ActionPaymentFailed       = "payment_failed"
	ActionCheckoutStarted     = "checkout_started"
	ActionChat                = "chat"
	ActionConversationSaved   = "conversation_saved"
	ActionConversationDeleted = "conversation_deleted"
)

// Event represents a single audit log entry
type Event struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource,omitempty"`
	ResourceID string         `json:"resource_id,omitempty"`
	Result     Result         `json:"result"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	IP         string         `json:"ip,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	return nil
}

// EventOption applies configuration to an Event during creation.
type EventOption func(*Event)

// WithUserID overrides the user taken from context. Webhook handlers use it
// since provider callbacks carry no caller identity.
func WithUserID(id string) EventOption {
	return func(e *Event) {
		e.UserID = id
	}
}

func WithResource(resource, id string) EventOption {
	return func(e *Event) {
		e.Resource = resource
		e.ResourceID = id
	}
}

// WithMetadata merges key/value pairs into the event metadata.
func WithMetadata(kv map[string]any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any, len(kv))
		}
		for k, v := range kv {
			e.Metadata[k] = v
		}
	}
}

func WithResult(r Result) EventOption {
	return func(e *Event) {
		e.Result = r
	}
}
