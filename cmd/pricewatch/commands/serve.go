package commands

import (
	"context"
	"errors"
	"log/slog"
	"pricewatch-backend/internal/components/chrono"
	"pricewatch-backend/internal/components/telemetry"
	"pricewatch-backend/internal/config"
	"pricewatch-backend/internal/notify"
	"pricewatch-backend/internal/pipeline"
	"pricewatch-backend/internal/service"
	"pricewatch-backend/pkg/serviceutil"

	"github.com/spf13/cobra"
)

var serveScrape *bool

func init() {
	serveScrape = serveCmd.Flags().Bool("scrape", false, "Trigger a pipeline run immediately on start.")
	rootCmd.AddCommand(serveCmd)
}

func triggerRun(ctx context.Context, a *app, reason string) {
	id, err := a.runner.Trigger(ctx)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		slog.Warn("skipping pipeline run, another run is in progress", "reason", reason)
		return
	}
	if err != nil {
		slog.Error("failed to trigger pipeline run", "reason", reason, "err", err)
		return
	}
	slog.Info("started pipeline run", "reason", reason, "run_id", id)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--scrape]",
	Short: "Serves the HTTP API and runs the pipeline on its schedule.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := config.Read(*configPath)
		if err != nil {
			serviceutil.Fatal("read config", err)
		}

		otel, err := setupTelemetry(ctx, "pricewatch")
		if err != nil {
			serviceutil.Fatal("setup telemetry", err)
		}
		defer otel.Shutdown(context.Background())

		a, err := newApp(ctx, cfg)
		if err != nil {
			serviceutil.Fatal("init app", err)
		}
		defer a.Close()
		telemetry.InstrumentPerfStats(ctx, a.tel)

		if cfg.Nats.Url != "" {
			relay, err := notify.NewNatsRelay(cfg.Nats.Url, cfg.Nats.Subject)
			if err != nil {
				serviceutil.Fatal("connect nats relay", err)
			}
			defer relay.Close()
			a.hub.Register(relay)
			slog.Info("relaying notifications to nats", "subject", cfg.Nats.Subject)
		}

		cron := chrono.NewStandardCron(a.tel, a.location)
		defer cron.Stop()
		if cfg.Pipeline.Schedule != "" {
			err = cron.Cron(cfg.Pipeline.Schedule, func() {
				triggerRun(ctx, a, "schedule")
			})
			if err != nil {
				serviceutil.Fatal("schedule pipeline", err)
			}
			slog.Info("scheduled pipeline runs", "schedule", cfg.Pipeline.Schedule)
		}
		if *serveScrape {
			triggerRun(ctx, a, "startup")
		}

		api := service.NewAPI(
			a.prices,
			a.runner,
			notify.NewWebsocketHandler(a.hub, cfg.Notify.AllowedOrigins, a.tel),
			a.metrics,
			a.tel,
		)
		slog.Info("listening to http", "port", cfg.ListenPort)
		err = serviceutil.ServeHttp(ctx, cfg.ListenPort, api.Routes())
		if err != nil {
			serviceutil.Fatal("serve http", err)
		}
	},
}
