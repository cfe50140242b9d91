package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// TelemetryConfig controls OpenTelemetry tracing. Tracing is off unless an
// exporter endpoint is configured.
type TelemetryConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `env:"OTEL_SERVICE_NAME"           envDefault:"pagetrail-server"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG"     envDefault:"1"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
}

// Enabled reports whether an exporter should be started.
func (t TelemetryConfig) Enabled() bool {
	return t.Endpoint != ""
}

func loadTelemetry() (TelemetryConfig, error) {
	var cfg TelemetryConfig
	if err := env.Parse(&cfg); err != nil {
		return TelemetryConfig{}, fmt.Errorf("parse telemetry env: %w", err)
	}
	return cfg, nil
}
