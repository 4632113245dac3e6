package subscription

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dmitrymomot/mymechanic/pkg/audit"
	"github.com/dmitrymomot/mymechanic/pkg/logger"
)

// Metrics receives billing counters. *telemetry.Metrics satisfies it.
type Metrics interface {
	Webhook(ctx context.Context, eventType, outcome string)
	Checkout(ctx context.Context, planID, outcome string)
	AccessDenied(ctx context.Context, status string)
}

// Auditor records billing actions. *audit.Logger satisfies it.
type Auditor interface {
	Log(ctx context.Context, action string, opts ...audit.EventOption) error
	LogError(ctx context.Context, action string, err error, opts ...audit.EventOption) error
}

// Notifier tells a customer about a failed payment. It must not block.
type Notifier interface {
	NotifyPaymentFailed(ctx context.Context, notice PaymentFailedNotice)
}

// PaymentFailedNotice is what a Notifier needs to reach the customer.
type PaymentFailedNotice struct {
	UserID string
	Email  string
	PlanID string
	Amount Money
}

type options struct {
	log      *slog.Logger
	metrics  Metrics
	auditor  Auditor
	notifier Notifier
	tracer   trace.Tracer
}

// Option configures Checkout, Reconciler and Gate.
type Option func(*options)

func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithAuditor(a Auditor) Option {
	return func(o *options) {
		if a != nil {
			o.auditor = a
		}
	}
}

// WithNotifier enables payment failure notices.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracer = tp.Tracer("github.com/dmitrymomot/mymechanic/pkg/subscription")
		}
	}
}

func newOptions(component string, opts []Option) options {
	o := options{
		log:      logger.Discard(),
		metrics:  noopMetrics{},
		auditor:  noopAuditor{},
		notifier: noopNotifier{},
		tracer:   noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = o.log.With(logger.Component(component))
	return o
}

type noopMetrics struct{}

func (noopMetrics) Webhook(context.Context, string, string)  {}
func (noopMetrics) Checkout(context.Context, string, string) {}
func (noopMetrics) AccessDenied(context.Context, string)     {}

type noopAuditor struct{}

func (noopAuditor) Log(context.Context, string, ...audit.EventOption) error { return nil }
func (noopAuditor) LogError(context.Context, string, error, ...audit.EventOption) error {
	return nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyPaymentFailed(context.Context, PaymentFailedNotice) {}
