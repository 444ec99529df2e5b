package commands

import (
	"context"
	"log/slog"
	"os"
	"pricewatch-backend/internal/components/telemetry"
	"pricewatch-backend/pkg/configutil"
)

// setupTelemetry installs the otel exporters described by telemetry.json5, when it is
// found in the working directory or any of its parents.
func setupTelemetry(ctx context.Context, serviceName string) (telemetry.Otel, error) {
	cfg, err := configutil.ReadRecursively[telemetry.Config]("telemetry.json5")
	if os.IsNotExist(err) {
		slog.Debug("telemetry.json5 not found, otel exporters disabled")
		return telemetry.Otel{}, nil
	}
	if err != nil {
		return telemetry.Otel{}, err
	}
	return telemetry.SetupOtel(ctx, serviceName, cfg)
}
