package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ai-concierge/internal/analytics"
	"ai-concierge/internal/app"
)

var (
	reportDate string
	reportJSON bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize one day of recorded trace events",
	RunE: func(cmd *cobra.Command, args []string) error {
		day := time.Now().UTC()
		if reportDate != "" {
			d, err := time.Parse("2006-01-02", reportDate)
			if err != nil {
				return fmt.Errorf("invalid --date %q: %w", reportDate, err)
			}
			day = d
		}

		sink, err := app.OpenSink(cfg)
		if err != nil {
			return fmt.Errorf("open trace sink: %w", err)
		}
		if sink == nil {
			return fmt.Errorf("TRACE_SINK is none, nothing to report")
		}
		defer sink.Close()

		events, err := sink.LoadEvents()
		if err != nil {
			return err
		}
		stats := analytics.AnalyzeDailyEvents(events, day)

		if reportJSON {
			out, err := stats.ToJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), stats.GenerateReportSummary())
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportDate, "date", "", "day to report on (YYYY-MM-DD, default today UTC)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the report as JSON")
}
