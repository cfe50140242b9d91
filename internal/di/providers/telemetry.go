package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/pagetrail/pagetrail-server/internal/config"
	"github.com/pagetrail/pagetrail-server/internal/logger"
	"github.com/pagetrail/pagetrail-server/internal/telemetry"
)

// TelemetryHandle flushes spans on shutdown.
type TelemetryHandle struct {
	*telemetry.Provider
}

// Shutdown implements do.Shutdownable.
func (h *TelemetryHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Provider.Shutdown(ctx)
}

// ProvideTelemetry provides the tracer provider. Without an exporter
// endpoint it is a no-op.
func ProvideTelemetry(i do.Injector) (*TelemetryHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	provider, err := telemetry.Setup(context.Background(), cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	if cfg.Telemetry.Enabled() {
		log.Info("Tracing enabled",
			"endpoint", cfg.Telemetry.Endpoint,
			"service", cfg.Telemetry.ServiceName,
			"sample_ratio", cfg.Telemetry.SampleRatio,
		)
	}

	return &TelemetryHandle{Provider: provider}, nil
}
