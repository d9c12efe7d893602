package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/ephemera/internal/dashboard"
	"github.com/yairfalse/ephemera/internal/journal"
	"github.com/yairfalse/ephemera/internal/naming"
	"github.com/yairfalse/ephemera/internal/report"
	"github.com/yairfalse/ephemera/internal/trends"
)

var (
	dashboardMetricsFile string
	dashboardOutput      string
	dashboardDays        int

	historyPR    string
	historySince time.Duration
	historyLimit int
	historyJSON  bool
)

// dashboardCmd represents the dashboard command
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render the provisioning trends dashboard",
	Long: `Render a static HTML page with deploy and destroy durations, success
rate and drift compliance over a trailing window. A missing or malformed
metrics file renders an empty dashboard.`,
	Example: `  ephemera dashboard
  ephemera dashboard --days 7 --output /tmp/trends.html`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show journaled reclaim actions",
	Example: `  ephemera history --pr 42
  ephemera history --since 24h --json`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(historyCmd)

	dashboardCmd.Flags().StringVar(&dashboardMetricsFile, "metrics-file", "", "Metrics JSON file (default from config, metrics/operations.json)")
	dashboardCmd.Flags().StringVarP(&dashboardOutput, "output", "o", "", "Output HTML file (default from config, dashboard/trends.html)")
	dashboardCmd.Flags().IntVar(&dashboardDays, "days", 0, "Days to analyze (default from config, 30)")

	historyCmd.Flags().StringVar(&historyPR, "pr", "", "Only show this PR")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "Only show entries newer than this (e.g. 24h)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum entries to show, 0 for all")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output JSON")
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	metricsFile := firstNonEmpty(dashboardMetricsFile, app.cfg.Trends.MetricsFile)
	output := firstNonEmpty(dashboardOutput, app.cfg.Trends.Output)
	days := dashboardDays
	if days <= 0 {
		days = app.cfg.Trends.Days
	}

	now := app.clock()
	analyzer := trends.NewAnalyzer(trends.Load(metricsFile, app.logger), now)
	if err := dashboard.WriteFile(output, analyzer, days, now); err != nil {
		return err
	}

	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Dashboard written: %s\n", output)
	return err
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if app.cfg.Journal.Path == "" {
		return fmt.Errorf("journal is disabled, set journal.path in the config")
	}
	if _, err := os.Stat(app.cfg.Journal.Path); err != nil {
		return fmt.Errorf("no journal at %s: %w", app.cfg.Journal.Path, err)
	}

	q := journal.Query{Limit: historyLimit}
	if historyPR != "" {
		pr, err := naming.ParsePRNumber(historyPR)
		if err != nil {
			return err
		}
		q.PR = pr
	}
	if historySince > 0 {
		q.Since = app.clock().Add(-historySince)
	}

	j, err := app.openJournal()
	if err != nil {
		return err
	}
	defer closeJournal(j, app.logger)

	entries, err := j.List(q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		return report.JSON(out, entries)
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "No journal entries")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tPR\tKIND\tNAME\tACTION\tOUTCOME\tERROR")
	_, _ = fmt.Fprintln(w, "----\t--\t----\t----\t------\t-------\t-----")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t#%d\t%s\t%s\t%s\t%s\t%s\n",
			e.Time.Format(time.RFC3339), e.PR, e.Kind, e.Name, e.Action, e.Outcome, e.Error)
	}
	return w.Flush()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
