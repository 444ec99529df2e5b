package commands

import (
	"os"
	"pricewatch-backend/internal/config"
	"pricewatch-backend/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	pricesOffset *int64
	pricesLimit  *int64
)

func init() {
	pricesOffset = pricesCmd.Flags().Int64("offset", 0, "The number of rows to skip.")
	pricesLimit = pricesCmd.Flags().Int64("limit", 100, "The maximum number of rows to print.")
	rootCmd.AddCommand(pricesCmd)
}

var pricesCmd = &cobra.Command{
	Use:   "prices [--offset <n>] [--limit <n>]",
	Short: "Prints the stored price table.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Read(*configPath)
		if err != nil {
			serviceutil.Fatal("read config", err)
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			serviceutil.Fatal("init app", err)
		}
		defer a.Close()

		prices, err := a.prices.List(cmd.Context(), *pricesOffset, *pricesLimit)
		if err != nil {
			serviceutil.Fatal("list prices", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Name", "Cost"})
		for _, p := range prices {
			t.AppendRow(table.Row{p.ID, p.Name, p.Cost})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
