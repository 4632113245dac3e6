package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/dmitrymomot/mymechanic"

// Metrics holds the business counters of the billing and chat flows.
// A nil *Metrics records nothing.
type Metrics struct {
	webhooks      metric.Int64Counter
	checkouts     metric.Int64Counter
	accessDenied  metric.Int64Counter
	quotaDenied   metric.Int64Counter
	chatMessages  metric.Int64Counter
	chatTokens    metric.Int64Counter
	chatCost      metric.Float64Counter
	modelDuration metric.Float64Histogram
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}

	var err error
	if m.webhooks, err = meter.Int64Counter("mymechanic_webhook_events_total",
		metric.WithDescription("Payment provider webhook events by type and outcome"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create webhook counter: %w", err)
	}
	if m.checkouts, err = meter.Int64Counter("mymechanic_checkouts_total",
		metric.WithDescription("Checkout attempts by plan and outcome"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create checkout counter: %w", err)
	}
	if m.accessDenied, err = meter.Int64Counter("mymechanic_access_denied_total",
		metric.WithDescription("Requests rejected for lack of an entitling subscription"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create access denied counter: %w", err)
	}
	if m.quotaDenied, err = meter.Int64Counter("mymechanic_quota_exhausted_total",
		metric.WithDescription("Chat requests rejected because the monthly quota is used up"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create quota counter: %w", err)
	}
	if m.chatMessages, err = meter.Int64Counter("mymechanic_chat_messages_total",
		metric.WithDescription("Completed chat messages by plan"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create chat counter: %w", err)
	}
	if m.chatTokens, err = meter.Int64Counter("mymechanic_chat_tokens_total",
		metric.WithDescription("Model tokens consumed by direction"),
		metric.WithUnit("{token}")); err != nil {
		return nil, fmt.Errorf("failed to create token counter: %w", err)
	}
	if m.chatCost, err = meter.Float64Counter("mymechanic_chat_cost_gbp_total",
		metric.WithDescription("Estimated model cost in GBP"),
		metric.WithUnit("GBP")); err != nil {
		return nil, fmt.Errorf("failed to create cost counter: %w", err)
	}
	if m.modelDuration, err = meter.Float64Histogram("mymechanic_model_request_duration_seconds",
		metric.WithDescription("Latency of language model calls"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create model latency histogram: %w", err)
	}

	return m, nil
}

// Webhook records one handled webhook event.
func (m *Metrics) Webhook(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) Checkout(ctx context.Context, planID, outcome string) {
	if m == nil {
		return
	}
	m.checkouts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("plan_id", planID),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) AccessDenied(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.accessDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) QuotaExhausted(ctx context.Context, planID string) {
	if m == nil {
		return
	}
	m.quotaDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("plan_id", planID)))
}

// ChatCompleted records a successful model reply.
func (m *Metrics) ChatCompleted(ctx context.Context, planID string, inputTokens, outputTokens int64, costGBP float64, took time.Duration) {
	if m == nil {
		return
	}
	plan := metric.WithAttributes(attribute.String("plan_id", planID))
	m.chatMessages.Add(ctx, 1, plan)
	m.chatTokens.Add(ctx, inputTokens, metric.WithAttributes(attribute.String("direction", "input")))
	m.chatTokens.Add(ctx, outputTokens, metric.WithAttributes(attribute.String("direction", "output")))
	m.chatCost.Add(ctx, costGBP, plan)
	m.modelDuration.Record(ctx, took.Seconds(), metric.WithAttributes(attribute.Bool("success", true)))
}

// ModelFailed records a failed model call.
func (m *Metrics) ModelFailed(ctx context.Context, took time.Duration) {
	if m == nil {
		return
	}
	m.modelDuration.Record(ctx, took.Seconds(), metric.WithAttributes(attribute.Bool("success", false)))
}
