package trends

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func sampleDataset() Dataset {
	return Dataset{
		Operations: []Operation{
			{Timestamp: "2024-03-15T10:00:00Z", Operation: OpDeploy, Status: StatusSuccess, DurationSeconds: 120},
			{Timestamp: "2024-03-14T09:00:00Z", Operation: OpDeploy, Status: StatusSuccess, DurationSeconds: 180},
			{Timestamp: "2024-03-14T11:00:00Z", Operation: OpDeploy, Status: StatusFailed, DurationSeconds: 30},
			{Timestamp: "2024-03-13T08:00:00+00:00", Operation: OpDestroy, Status: StatusSuccess, DurationSeconds: 60},
			{Timestamp: "2024-01-01T00:00:00Z", Operation: OpDeploy, Status: StatusSuccess, DurationSeconds: 100},
			{Timestamp: "yesterday", Operation: OpDeploy, Status: StatusSuccess, DurationSeconds: 999},
		},
		DriftChecks: []DriftCheck{
			{Timestamp: "2024-03-15T09:00:00Z", Status: DriftNone, DriftPercent: 0},
			{Timestamp: "2024-03-15T10:00:00Z", Status: DriftDetected, DriftPercent: 12.5},
			{Timestamp: "2024-03-14T10:00:00Z", Status: DriftNone, DriftPercent: 0},
			{Timestamp: "2024-03-14T11:00:00Z", Status: DriftDetected, DriftPercent: 7.5},
		},
	}
}

func TestOperationTrends(t *testing.T) {
	tr := NewAnalyzer(sampleDataset(), now).OperationTrends(30)

	assert.Equal(t, 30, tr.PeriodDays)
	assert.Equal(t, 4, tr.TotalOperations)
	assert.InDelta(t, 75.0, tr.SuccessRate, 1e-9)

	require.NotNil(t, tr.DeployStats)
	assert.Equal(t, 2, tr.DeployStats.Count)
	assert.Equal(t, 120.0, tr.DeployStats.Min)
	assert.Equal(t, 180.0, tr.DeployStats.Max)
	assert.Equal(t, 150.0, tr.DeployStats.Mean)
	assert.Equal(t, 150.0, tr.DeployStats.Median)
	assert.InDelta(t, 42.4264, tr.DeployStats.StdDev, 1e-4)

	require.NotNil(t, tr.DestroyStats)
	assert.Equal(t, 1, tr.DestroyStats.Count)
	assert.Equal(t, 0.0, tr.DestroyStats.StdDev)

	require.Len(t, tr.Daily, 30)
	assert.Equal(t, OperationDay{Date: "2024-03-13", Destroys: 1}, tr.Daily[27])
	assert.Equal(t, OperationDay{Date: "2024-03-14", Deploys: 2, Failures: 1}, tr.Daily[28])
	assert.Equal(t, OperationDay{Date: "2024-03-15", Deploys: 1}, tr.Daily[29])
	assert.Equal(t, "2024-02-15", tr.Daily[0].Date)
}

func TestOperationTrendsEmpty(t *testing.T) {
	tr := NewAnalyzer(Dataset{}, now).OperationTrends(7)

	assert.Zero(t, tr.TotalOperations)
	assert.Zero(t, tr.SuccessRate)
	assert.Nil(t, tr.DeployStats)
	assert.Nil(t, tr.DestroyStats)
	assert.Len(t, tr.Daily, 7)
}

func TestDriftTrends(t *testing.T) {
	tr := NewAnalyzer(sampleDataset(), now).DriftTrends(30)

	assert.Equal(t, 4, tr.TotalChecks)
	assert.Equal(t, 2, tr.ZeroDriftChecks)
	assert.InDelta(t, 50.0, tr.ComplianceRate, 1e-9)

	require.NotNil(t, tr.DriftStats)
	assert.Equal(t, 2, tr.DriftStats.Count)
	assert.Equal(t, 10.0, tr.DriftStats.Mean)
	assert.Equal(t, 10.0, tr.DriftStats.Median)

	require.Len(t, tr.Daily, 30)
	assert.Equal(t, DriftDay{Date: "2024-03-15", TotalChecks: 2, ZeroDrift: 1, ComplianceRate: 50}, tr.Daily[29])
	assert.Equal(t, DriftDay{Date: "2024-03-13"}, tr.Daily[27])
}

func TestDriftTrendsNoDrift(t *testing.T) {
	ds := Dataset{DriftChecks: []DriftCheck{
		{Timestamp: "2024-03-15 08:00:00", Status: DriftNone},
	}}
	tr := NewAnalyzer(ds, now).DriftTrends(1)

	assert.Equal(t, 1, tr.TotalChecks)
	assert.Equal(t, 100.0, tr.ComplianceRate)
	assert.Nil(t, tr.DriftStats)
	assert.Equal(t, []DriftDay{{Date: "2024-03-15", TotalChecks: 1, ZeroDrift: 1, ComplianceRate: 100}}, tr.Daily)
}

func TestComputeStats(t *testing.T) {
	assert.Nil(t, computeStats(nil))

	s := computeStats([]float64{5, 1, 3})
	require.NotNil(t, s)
	assert.Equal(t, 3.0, s.Median)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 5.0, s.Max)
	assert.Equal(t, 3.0, s.Mean)
	assert.InDelta(t, 2.0, s.StdDev, 1e-9)

	even := computeStats([]float64{4, 1, 3, 2})
	require.NotNil(t, even)
	assert.Equal(t, 4, even.Count)
	assert.InDelta(t, 2.5, even.Median, 1e-9)
	assert.InDelta(t, 2.5, even.Mean, 1e-9)
	assert.InDelta(t, 1.2909944487, even.StdDev, 1e-9)

	single := computeStats([]float64{7})
	require.NotNil(t, single)
	assert.Equal(t, 7.0, single.Median)
	assert.Zero(t, single.StdDev)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.Nop()

	assert.Equal(t, Dataset{}, Load(filepath.Join(dir, "missing.json"), logger))

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o600))
	assert.Equal(t, Dataset{}, Load(corrupt, logger))

	valid := filepath.Join(dir, "operations.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{
  "operations": [{"timestamp": "2024-03-15T10:00:00Z", "operation": "deploy", "status": "success", "duration_seconds": 42.5}],
  "drift_checks": [{"timestamp": "2024-03-15T10:00:00Z", "status": "no_drift", "drift_percent": 0}]
}`), 0o600))
	ds := Load(valid, logger)
	require.Len(t, ds.Operations, 1)
	assert.Equal(t, 42.5, ds.Operations[0].DurationSeconds)
	require.Len(t, ds.DriftChecks, 1)
}

func TestRecordOperation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics", "operations.json")
	logger := zerolog.Nop()

	start := time.Now().Add(-2 * time.Second)
	require.NoError(t, RecordOperation(path, NewOperation(OpDeploy, 12, start, nil), logger))
	require.NoError(t, RecordOperation(path, NewOperation(OpDestroy, 12, start, errors.New("boom")), logger))

	ds := Load(path, logger)
	require.Len(t, ds.Operations, 2)
	assert.Equal(t, OpDeploy, ds.Operations[0].Operation)
	assert.Equal(t, StatusSuccess, ds.Operations[0].Status)
	assert.Equal(t, 12, ds.Operations[0].PR)
	assert.GreaterOrEqual(t, ds.Operations[0].DurationSeconds, 2.0)
	assert.Equal(t, StatusFailed, ds.Operations[1].Status)
	assert.NotNil(t, ds.DriftChecks)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "operations.json", entries[0].Name())
}
