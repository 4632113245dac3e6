package telemetry

import (
	"context"
	"log/slog"
	"slices"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"
)

// OTelHandler is a slog.Handler that emits records to an OpenTelemetry logger.
type OTelHandler struct {
	logger otellog.Logger
	level  slog.Leveler
	attrs  []otellog.KeyValue
	group  string
}

func NewOTelHandler(l otellog.Logger, level slog.Leveler) *OTelHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &OTelHandler{logger: l, level: level}
}

func (h *OTelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *OTelHandler) Handle(ctx context.Context, record slog.Record) error {
	var rec otellog.Record
	rec.SetTimestamp(record.Time)
	rec.SetBody(otellog.StringValue(record.Message))
	rec.SetSeverity(severity(record.Level))
	rec.SetSeverityText(record.Level.String())

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		rec.AddAttributes(
			otellog.String("trace_id", sc.TraceID().String()),
			otellog.String("span_id", sc.SpanID().String()),
		)
	}

	rec.AddAttributes(h.attrs...)
	record.Attrs(func(a slog.Attr) bool {
		rec.AddAttributes(h.convert(a))
		return true
	})

	h.logger.Emit(ctx, rec)
	return nil
}

func (h *OTelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		next.attrs = append(next.attrs, h.convert(a))
	}
	return &next
}

func (h *OTelHandler) WithGroup(name string) slog.Handler {
	next := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	next.group = name
	return &next
}

func (h *OTelHandler) convert(a slog.Attr) otellog.KeyValue {
	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return otellog.String(key, v.String())
	case slog.KindInt64:
		return otellog.Int64(key, v.Int64())
	case slog.KindUint64:
		return otellog.Int64(key, int64(v.Uint64()))
	case slog.KindFloat64:
		return otellog.Float64(key, v.Float64())
	case slog.KindBool:
		return otellog.Bool(key, v.Bool())
	case slog.KindDuration:
		return otellog.Int64(key, v.Duration().Milliseconds())
	case slog.KindTime:
		return otellog.String(key, v.Time().Format(time.RFC3339Nano))
	default:
		return otellog.String(key, v.String())
	}
}

func severity(level slog.Level) otellog.Severity {
	switch {
	case level >= slog.LevelError:
		return otellog.SeverityError
	case level >= slog.LevelWarn:
		return otellog.SeverityWarn
	case level >= slog.LevelInfo:
		return otellog.SeverityInfo
	default:
		return otellog.SeverityDebug
	}
}
