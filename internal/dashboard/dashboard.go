// Package dashboard renders the provisioning trends as a static HTML page.
package dashboard

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/yairfalse/ephemera/internal/trends"
)

// RecentDays is how many daily rows the page shows.
const RecentDays = 14

// ComplianceTarget is the drift compliance percentage shown as healthy.
const ComplianceTarget = 90.0

//go:embed dashboard.html.tmpl
var pageSource string

var page = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"pct":             func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"secs":            func(v float64) string { return fmt.Sprintf("%.1fs", v) },
	"complianceClass": ComplianceClass,
	"failureClass":    FailureClass,
}).Parse(pageSource))

type pageData struct {
	Days       int
	RecentDays int
	Generated  string
	Ops        trends.OperationTrends
	Drift      trends.DriftTrends
	OpsDays    []trends.OperationDay
	DriftDays  []trends.DriftDay
}

// ComplianceClass is the CSS class for a compliance percentage.
func ComplianceClass(rate float64) string {
	if rate >= ComplianceTarget {
		return "success"
	}
	return "warning"
}

// FailureClass is the CSS class for a daily failure count.
func FailureClass(failures int) string {
	if failures > 0 {
		return "error"
	}
	return "success"
}

// Render writes the dashboard for the trailing days window ending at now.
func Render(w io.Writer, a *trends.Analyzer, days int, now time.Time) error {
	ops := a.OperationTrends(days)
	drift := a.DriftTrends(days)

	data := pageData{
		Days:       days,
		RecentDays: RecentDays,
		Generated:  now.Format("2006-01-02 15:04:05"),
		Ops:        ops,
		Drift:      drift,
		OpsDays:    lastN(ops.Daily, RecentDays),
		DriftDays:  lastN(drift.Daily, RecentDays),
	}
	if err := page.Execute(w, data); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}

// WriteFile renders the dashboard to path, creating its directory.
func WriteFile(path string, a *trends.Analyzer, days int, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create dashboard directory: %w", err)
	}
	f, err := os.Create(path) // #nosec G304 -- output path comes from flags
	if err != nil {
		return fmt.Errorf("create dashboard file: %w", err)
	}
	if err := Render(f, a, days, now); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func lastN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
