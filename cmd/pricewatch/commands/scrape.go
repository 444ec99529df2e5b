package commands

import (
	"context"
	"log/slog"
	"os"
	"pricewatch-backend/internal/config"
	"pricewatch-backend/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var scrapeDump *string

func init() {
	scrapeDump = scrapeCmd.Flags().String("dump", "", "A directory to write every catalog response to.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--dump <dir>]",
	Short: "Runs the pipeline once and prints the resulting changes.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := config.Read(*configPath)
		if err != nil {
			serviceutil.Fatal("read config", err)
		}
		if *scrapeDump != "" {
			cfg.Catalog.DumpDir = *scrapeDump
		}
		otel, err := setupTelemetry(ctx, "pricewatch-cli")
		if err != nil {
			serviceutil.Fatal("setup telemetry", err)
		}
		defer otel.Shutdown(context.Background())

		a, err := newApp(ctx, cfg)
		if err != nil {
			serviceutil.Fatal("init app", err)
		}
		defer a.Close()

		result, err := a.runner.Run(ctx)
		if err != nil {
			serviceutil.Fatal("pipeline run", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Change", "ID", "Name", "Price"})
		for _, e := range result.Events {
			t.AppendRow(table.Row{e.Kind, e.ID, e.Name, e.Price})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		slog.Info(
			"pipeline run finished",
			"run_id", result.ID,
			"items", result.Items,
			"changes", len(result.Events),
			"seconds", result.Finished.Sub(result.Started).Seconds(),
		)
	},
}
