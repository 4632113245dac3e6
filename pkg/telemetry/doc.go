// Package telemetry wires OpenTelemetry traces, metrics and logs.
//
// When OTEL_ENABLED is false or no collector endpoint is set, New returns a
// disabled Provider: instruments fall back to the global no-op providers and
// LogHandler returns nil, so callers never branch on whether telemetry is on.
package telemetry
