// Package retention decides which scanned objects have outlived the
// retention threshold.
package retention

import (
	"time"

	"github.com/google/btree"

	"github.com/yairfalse/ephemera/pkg/resource"
)

// DefaultMaxAgeHours is the threshold used when none is configured.
const DefaultMaxAgeHours = 72.0

// IsCandidate reports whether a record of the given age should be cleaned up.
// Records of unknown age never are.
func IsCandidate(age float64, known bool, maxAgeHours float64) bool {
	return known && age > maxAgeHours
}

// Classify builds the report for scan. It performs no I/O and never
// removes anything; the same inputs always give the same report.
func Classify(scan resource.ScanResult, maxAgeHours float64, now time.Time) resource.Report {
	report := resource.Report{
		Totals:      scan.Counts(),
		MaxAgeHours: maxAgeHours,
		AnalyzedAt:  now,
		Incomplete:  append([]resource.Kind(nil), scan.Incomplete...),
	}

	prs := btree.NewOrderedG[int](8)

	for _, kind := range resource.Kinds {
		var candidates []resource.Candidate
		for _, rec := range scan.ByKind(kind) {
			age, known := rec.AgeHours(now)
			if !IsCandidate(age, known, maxAgeHours) {
				continue
			}

			c := resource.Candidate{Record: rec, Age: age}
			if pr, ok := rec.PRNumber(); ok {
				c.PR = &pr
				prs.ReplaceOrInsert(pr)
			}
			candidates = append(candidates, c)
		}

		switch kind {
		case resource.KindContainer:
			report.Containers = candidates
		case resource.KindVolume:
			report.Volumes = candidates
		case resource.KindNetwork:
			report.Networks = candidates
		}
	}

	report.PRNumbers = make([]int, 0, prs.Len())
	prs.Ascend(func(pr int) bool {
		report.PRNumbers = append(report.PRNumbers, pr)
		return true
	})

	return report
}
