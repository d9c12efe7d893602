package trends

import (
	"time"

	"github.com/montanaflynn/stats"
)

const dayLayout = "2006-01-02"

// Stats summarizes a series of values.
type Stats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

// OperationDay is one day of operation activity.
type OperationDay struct {
	Date     string `json:"date"`
	Deploys  int    `json:"deploys"`
	Destroys int    `json:"destroys"`
	Failures int    `json:"failures"`
}

// DriftDay is one day of drift checks.
type DriftDay struct {
	Date           string  `json:"date"`
	TotalChecks    int     `json:"total_checks"`
	ZeroDrift      int     `json:"zero_drift"`
	ComplianceRate float64 `json:"compliance_rate"`
}

// OperationTrends summarizes deploys and destroys.
type OperationTrends struct {
	PeriodDays      int            `json:"period_days"`
	TotalOperations int            `json:"total_operations"`
	DeployStats     *Stats         `json:"deploy_stats"`
	DestroyStats    *Stats         `json:"destroy_stats"`
	SuccessRate     float64        `json:"success_rate"`
	Daily           []OperationDay `json:"daily_operations"`
}

// DriftTrends summarizes drift checks.
type DriftTrends struct {
	PeriodDays      int        `json:"period_days"`
	TotalChecks     int        `json:"total_checks"`
	ZeroDriftChecks int        `json:"zero_drift_checks"`
	ComplianceRate  float64    `json:"compliance_rate"`
	DriftStats      *Stats     `json:"drift_stats"`
	Daily           []DriftDay `json:"daily_drift"`
}

// Analyzer computes trends over a dataset as of a fixed instant.
type Analyzer struct {
	data Dataset
	now  time.Time
}

// NewAnalyzer creates an analyzer. Windows end at now and days are
// bucketed in now's location.
func NewAnalyzer(data Dataset, now time.Time) *Analyzer {
	return &Analyzer{data: data, now: now}
}

// OperationTrends covers operations newer than now minus days. Duration
// stats only count successful operations.
func (a *Analyzer) OperationTrends(days int) OperationTrends {
	cutoff := a.cutoff(days)
	out := OperationTrends{PeriodDays: days}

	daily, index := a.operationDays(days)
	var deploys, destroys []float64
	successes := 0

	for _, op := range a.data.Operations {
		t, ok := parseTime(op.Timestamp, a.now.Location())
		if !ok || !t.After(cutoff) {
			continue
		}
		out.TotalOperations++

		if op.Status == StatusSuccess {
			successes++
			switch op.Operation {
			case OpDeploy:
				deploys = append(deploys, op.DurationSeconds)
			case OpDestroy:
				destroys = append(destroys, op.DurationSeconds)
			}
		}

		if i, ok := index[t.In(a.now.Location()).Format(dayLayout)]; ok {
			switch op.Operation {
			case OpDeploy:
				daily[i].Deploys++
			case OpDestroy:
				daily[i].Destroys++
			}
			if op.Status == StatusFailed {
				daily[i].Failures++
			}
		}
	}

	out.DeployStats = computeStats(deploys)
	out.DestroyStats = computeStats(destroys)
	out.SuccessRate = percent(successes, out.TotalOperations)
	out.Daily = daily
	return out
}

// DriftTrends covers drift checks newer than now minus days. A check is
// compliant when its drift is exactly zero.
func (a *Analyzer) DriftTrends(days int) DriftTrends {
	cutoff := a.cutoff(days)
	out := DriftTrends{PeriodDays: days}

	daily, index := a.driftDays(days)
	var drifted []float64

	for _, check := range a.data.DriftChecks {
		t, ok := parseTime(check.Timestamp, a.now.Location())
		if !ok || !t.After(cutoff) {
			continue
		}
		out.TotalChecks++
		if check.DriftPercent == 0 {
			out.ZeroDriftChecks++
		}
		if check.Status == DriftDetected {
			drifted = append(drifted, check.DriftPercent)
		}

		if i, ok := index[t.In(a.now.Location()).Format(dayLayout)]; ok {
			daily[i].TotalChecks++
			if check.DriftPercent == 0 {
				daily[i].ZeroDrift++
			}
		}
	}

	for i := range daily {
		daily[i].ComplianceRate = percent(daily[i].ZeroDrift, daily[i].TotalChecks)
	}

	out.ComplianceRate = percent(out.ZeroDriftChecks, out.TotalChecks)
	out.DriftStats = computeStats(drifted)
	out.Daily = daily
	return out
}

func (a *Analyzer) cutoff(days int) time.Time {
	return a.now.Add(-time.Duration(days) * 24 * time.Hour)
}

// dates lists the last days calendar days, oldest first, ending today.
func (a *Analyzer) dates(days int) []string {
	out := make([]string, 0, days)
	for i := days - 1; i >= 0; i-- {
		out = append(out, a.now.AddDate(0, 0, -i).Format(dayLayout))
	}
	return out
}

func (a *Analyzer) operationDays(days int) ([]OperationDay, map[string]int) {
	dates := a.dates(days)
	daily := make([]OperationDay, len(dates))
	index := make(map[string]int, len(dates))
	for i, d := range dates {
		daily[i] = OperationDay{Date: d}
		index[d] = i
	}
	return daily, index
}

func (a *Analyzer) driftDays(days int) ([]DriftDay, map[string]int) {
	dates := a.dates(days)
	daily := make([]DriftDay, len(dates))
	index := make(map[string]int, len(dates))
	for i, d := range dates {
		daily[i] = DriftDay{Date: d}
		index[d] = i
	}
	return daily, index
}

// computeStats returns nil for an empty series. StdDev is the sample
// standard deviation, 0 for a single value.
func computeStats(values []float64) *Stats {
	if len(values) == 0 {
		return nil
	}
	data := stats.Float64Data(values)

	// errors only signal empty input, ruled out above
	lo, _ := stats.Min(data)
	hi, _ := stats.Max(data)
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)

	var stddev float64
	if data.Len() > 1 {
		stddev, _ = stats.StandardDeviationSample(data)
	}

	return &Stats{
		Count:  data.Len(),
		Min:    lo,
		Max:    hi,
		Mean:   mean,
		Median: median,
		StdDev: stddev,
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
