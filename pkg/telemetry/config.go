package telemetry

import "time"

type Config struct {
	Enabled        bool          `env:"OTEL_ENABLED" envDefault:"false"`
	ExporterURL    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"` // host:port of the OTLP gRPC collector
	ServiceName    string        `env:"OTEL_SERVICE_NAME" envDefault:"mymechanic-api"`
	ServiceVersion string        `env:"OTEL_SERVICE_VERSION" envDefault:"dev"`
	SamplingRatio  float64       `env:"OTEL_SAMPLING_RATIO" envDefault:"1"`
	ExportInterval time.Duration `env:"OTEL_EXPORT_INTERVAL" envDefault:"10s"`
}
