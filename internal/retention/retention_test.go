package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ephemera/pkg/resource"
)

var now = time.Date(2024, 1, 4, 10, 0, 0, 0, time.UTC)

func hoursAgo(h float64) string {
	return now.Add(-time.Duration(h * float64(time.Hour))).Format("2006-01-02 15:04:05 -0700")
}

func container(name string, created string) resource.Record {
	return resource.Record{Kind: resource.KindContainer, Name: name, Status: "Up", CreatedAtRaw: created}
}

func TestClassify_Threshold(t *testing.T) {
	scan := resource.ScanResult{
		Containers: []resource.Record{
			container("ephemeral-pr-123-app", hoursAgo(100)),
			container("ephemeral-pr-124-app", hoursAgo(10)),
			container("ephemeral-pr-125-app", hoursAgo(72)),
		},
	}

	report := Classify(scan, 72, now)

	require.Len(t, report.Containers, 1)
	assert.Equal(t, "ephemeral-pr-123-app", report.Containers[0].Name)
	assert.InDelta(t, 100.0, report.Containers[0].Age, 1e-9)
	require.NotNil(t, report.Containers[0].PR)
	assert.Equal(t, 123, *report.Containers[0].PR)
	assert.Equal(t, []int{123}, report.PRNumbers)
	assert.Equal(t, 3, report.Totals.Containers)
	assert.Equal(t, 72.0, report.MaxAgeHours)
	assert.Equal(t, now, report.AnalyzedAt)
}

func TestClassify_ExactlyAtThresholdIsKept(t *testing.T) {
	scan := resource.ScanResult{Containers: []resource.Record{container("ephemeral-pr-1-app", hoursAgo(72))}}
	report := Classify(scan, 72, now)
	assert.Empty(t, report.Containers)
	assert.True(t, report.Empty())
}

func TestClassify_UnknownAgeNeverCandidate(t *testing.T) {
	scan := resource.ScanResult{
		Containers: []resource.Record{container("ephemeral-pr-1-app", "garbage")},
		Volumes: []resource.Record{
			{Kind: resource.KindVolume, Name: "ephemeral-pr-1-data", CreatedAtRaw: "unknown"},
			{Kind: resource.KindVolume, Name: "ephemeral-pr-2-data"},
		},
	}

	report := Classify(scan, 0, now)

	assert.True(t, report.Empty())
	assert.Empty(t, report.PRNumbers)
	assert.Equal(t, 2, report.Totals.Volumes)
}

func TestClassify_CandidateWithoutPR(t *testing.T) {
	scan := resource.ScanResult{Containers: []resource.Record{container("legacy-preview", hoursAgo(200))}}

	report := Classify(scan, 72, now)

	require.Len(t, report.Containers, 1)
	assert.Nil(t, report.Containers[0].PR)
	assert.Empty(t, report.PRNumbers)
}

func TestClassify_PRSetIsDistinctAndSorted(t *testing.T) {
	scan := resource.ScanResult{
		Containers: []resource.Record{
			container("ephemeral-pr-50-app", hoursAgo(80)),
			container("ephemeral-pr-7-app", hoursAgo(90)),
			container("ephemeral-pr-50-db", hoursAgo(80)),
		},
		Volumes: []resource.Record{
			{Kind: resource.KindVolume, Name: "ephemeral-pr-7-data", CreatedAtRaw: hoursAgo(100)},
		},
		Networks: []resource.Record{
			{Kind: resource.KindNetwork, Name: "ephemeral-pr-12-net", CreatedAtRaw: hoursAgo(75)},
		},
	}

	report := Classify(scan, 72, now)

	assert.Equal(t, []int{7, 12, 50}, report.PRNumbers)
	assert.Equal(t, resource.KindCounts{Containers: 3, Volumes: 1, Networks: 1}, report.CandidateCounts())
	// scan order preserved within a kind
	assert.Equal(t, "ephemeral-pr-50-app", report.Containers[0].Name)
	assert.Equal(t, "ephemeral-pr-7-app", report.Containers[1].Name)
	assert.Equal(t, "ephemeral-pr-50-db", report.Containers[2].Name)
}

func TestClassify_Deterministic(t *testing.T) {
	scan := resource.ScanResult{
		Containers: []resource.Record{container("ephemeral-pr-3-app", hoursAgo(99))},
		Incomplete: []resource.Kind{resource.KindVolume},
	}

	a := Classify(scan, 72, now)
	b := Classify(scan, 72, now)
	assert.Equal(t, a, b)
	assert.Equal(t, []resource.Kind{resource.KindVolume}, a.Incomplete)
}

func TestClassify_EmptyScan(t *testing.T) {
	report := Classify(resource.ScanResult{}, DefaultMaxAgeHours, now)
	assert.True(t, report.Empty())
	assert.Equal(t, 0, report.Totals.Total())
	assert.NotNil(t, report.PRNumbers)
}

func TestIsCandidate(t *testing.T) {
	assert.True(t, IsCandidate(72.01, true, 72))
	assert.False(t, IsCandidate(72, true, 72))
	assert.False(t, IsCandidate(1000, false, 72))
}
