package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/serpent/internal/pipeline"
	"github.com/FranksOps/serpent/internal/report"
	"github.com/FranksOps/serpent/internal/storage"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize stored results",
	Long: `Report reads results from a store and prints totals per query,
strategy and domain.

Examples:
  serpent report --store sqlite:results.db
  serpent report --store json:results.ndjson --query golang --since 72h --format html -o report.html`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	flags := reportCmd.Flags()
	flags.String("query", "", "only include this search term")
	flags.String("strategy", "", "only include results from this strategy (direct, render)")
	flags.Duration("since", 0, "only include results newer than this (e.g. 24h)")
	flags.Int("limit", 0, "most records to read (0 = all)")
	flags.String("format", "text", "output format: text, json, html")
	flags.StringP("output", "o", "", "output file (default: stdout)")

	for _, name := range []string{"query", "strategy", "since", "limit", "format", "output"} {
		_ = viper.BindPFlag("report."+name, flags.Lookup(name))
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	dsn := viper.GetString("store")
	if dsn == "" {
		return errors.New("report: --store is required")
	}

	ctx := context.Background()
	store, err := pipeline.OpenStore(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	filter := storage.Filter{
		Query:    viper.GetString("report.query"),
		Strategy: viper.GetString("report.strategy"),
		Limit:    viper.GetInt("report.limit"),
	}
	if since := viper.GetDuration("report.since"); since > 0 {
		cutoff := time.Now().Add(-since)
		filter.Since = &cutoff
	}

	records, err := store.Query(ctx, filter)
	if err != nil {
		return err
	}
	slog.Debug("loaded records", "count", len(records), "store", dsn)

	out, err := openOutput(viper.GetString("report.output"))
	if err != nil {
		return fmt.Errorf("report: open output: %w", err)
	}
	defer func() { _ = out.Close() }()

	summary := report.GenerateSummary(records)
	switch format := viper.GetString("report.format"); format {
	case "text", "":
		return report.WriteText(out, summary)
	case "json":
		return report.WriteJSON(out, summary)
	case "html":
		return report.WriteHTML(out, summary)
	default:
		return fmt.Errorf("report: unsupported format %q", format)
	}
}
