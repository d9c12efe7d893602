package main

import (
	"github.com/spf13/cobra"

	"github.com/yairfalse/ephemera/internal/report"
	"github.com/yairfalse/ephemera/internal/retention"
	"github.com/yairfalse/ephemera/internal/scanner"
)

var (
	analyzeMaxAge float64
	analyzeOutput string
	summaryJSON   bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Find preview environment objects older than the retention threshold",
	Long: `Scan containers, volumes and networks that belong to preview environments
and list those older than the retention threshold.

Nothing is removed. Objects with an unknown creation time are never
reported as stale.`,
	Example: `  ephemera analyze                      # Default 72h threshold
  ephemera analyze --max-age 24          # Anything older than a day
  ephemera analyze -o markdown           # Markdown for a PR comment
  ephemera analyze -o json               # Machine readable`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

// summaryCmd represents the summary command
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count preview environment objects",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(summaryCmd)

	analyzeCmd.Flags().Float64Var(&analyzeMaxAge, "max-age", 0, "Maximum age in hours (default from config, 72)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "text", "Output format: text, markdown, json")

	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "Output JSON")
}

func maxAge(flag float64) float64 {
	if flag > 0 {
		return flag
	}
	return app.cfg.Retention.MaxAgeHours
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(analyzeOutput)
	if err != nil {
		return err
	}

	rt, release, err := app.runtime()
	if err != nil {
		return err
	}
	defer release()

	now := app.clock()
	scan := app.scanner(rt).Scan(cmd.Context(), now)
	rep := retention.Classify(scan, maxAge(analyzeMaxAge), now)

	return report.Render(cmd.OutOrStdout(), format, rep)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	rt, release, err := app.runtime()
	if err != nil {
		return err
	}
	defer release()

	summary := scanner.Summarize(app.scanner(rt).Scan(cmd.Context(), app.clock()))
	if summaryJSON {
		return report.JSON(cmd.OutOrStdout(), summary)
	}
	return report.Summary(cmd.OutOrStdout(), summary)
}
