package commands

import (
	"context"
	"database/sql"
	"pricewatch-backend/internal/components/chrono"
	"pricewatch-backend/internal/components/db"
	"pricewatch-backend/internal/components/telemetry"
	"pricewatch-backend/internal/config"
	"pricewatch-backend/internal/notify"
	"pricewatch-backend/internal/pipeline"
	"pricewatch-backend/internal/pricing"
	"pricewatch-backend/internal/scrapers/catalog"
	"pricewatch-backend/pkg/restyutil"
	"time"
)

// app wires every component of the pipeline together.
type app struct {
	cfg      config.Config
	location *time.Location
	database *sql.DB
	time     chrono.TimeAPI
	metrics  *telemetry.Metrics
	tel      telemetry.API
	hub      *notify.Hub
	prices   pricing.Service
	runner   *pipeline.Runner
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	tel := telemetry.NewSlogAPI()
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	timeApi := chrono.NewStandardTime(location)
	metrics := telemetry.NewMetrics()

	var dump restyutil.Output
	if cfg.Catalog.DumpDir != "" {
		dump, err = restyutil.NewFilesystemOutput(cfg.Catalog.DumpDir)
		if err != nil {
			return nil, err
		}
	}

	database, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	qry := db.New(database)
	makeTx := db.NewMakeTx(database)

	client, err := catalog.NewClient(catalog.ClientOptions{
		BaseUrl:           cfg.Catalog.BaseUrl,
		PageSize:          cfg.Catalog.PageSize,
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		RequestTimeout:    cfg.Catalog.RequestTimeout.Duration,
		RetryCount:        cfg.Catalog.RetryCount,
		UserAgent:         cfg.Catalog.UserAgent,
		CloudflareBypass:  cfg.Catalog.CloudflareBypass,
		Selectors:         cfg.Catalog.Selectors,
		Dump:              dump,
	}, tel)
	if err != nil {
		database.Close()
		return nil, err
	}
	walker := catalog.NewWalker(client, timeApi, tel, catalog.WalkerOptions{
		PageDelay:          cfg.Catalog.PageDelay.Duration,
		Workers:            cfg.Catalog.Workers,
		SkipMalformedItems: cfg.Catalog.SkipMalformedItems,
	})

	hub := notify.NewHub(metrics, tel)
	hub.SetSendTimeout(cfg.Notify.SendTimeout.Duration)

	runner := pipeline.NewRunner(
		walker,
		pricing.NewReconciler(makeTx, tel),
		hub,
		timeApi,
		metrics,
		tel,
		pipeline.Options{RunTimeout: cfg.Pipeline.RunTimeout.Duration},
	)

	return &app{
		cfg:      cfg,
		location: location,
		database: database,
		time:     timeApi,
		metrics:  metrics,
		tel:      tel,
		hub:      hub,
		prices:   pricing.NewService(qry, makeTx, hub, metrics, tel),
		runner:   runner,
	}, nil
}

func (a *app) Close() error {
	a.runner.Close()
	return a.database.Close()
}
