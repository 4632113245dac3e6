package logger

import (
	"log/slog"
	"time"
)

// Error records err under the key "error". A nil error yields an empty attribute.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

// RequestID records the request identifier under the key "request_id".
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// EventID records a payment provider event identifier.
func EventID(id string) slog.Attr {
	return slog.String("event_id", id)
}

// EventType records a payment provider event type.
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// PlanID records a plan catalog identifier.
func PlanID(id string) slog.Attr {
	return slog.String("plan_id", id)
}

// SubscriptionID records a provider subscription identifier.
func SubscriptionID(id string) slog.Attr {
	return slog.String("subscription_id", id)
}

// CustomerID records a provider customer identifier.
func CustomerID(id string) slog.Attr {
	return slog.String("customer_id", id)
}

// Status records a subscription status.
func Status(status string) slog.Attr {
	return slog.String("status", status)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
