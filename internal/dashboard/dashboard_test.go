package dashboard

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ephemera/internal/trends"
)

var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func TestClasses(t *testing.T) {
	assert.Equal(t, "success", ComplianceClass(90))
	assert.Equal(t, "success", ComplianceClass(100))
	assert.Equal(t, "warning", ComplianceClass(89.9))
	assert.Equal(t, "error", FailureClass(1))
	assert.Equal(t, "success", FailureClass(0))
}

func TestRender(t *testing.T) {
	ds := trends.Dataset{
		Operations: []trends.Operation{
			{Timestamp: "2024-03-15T10:00:00Z", Operation: trends.OpDeploy, Status: trends.StatusSuccess, DurationSeconds: 120},
			{Timestamp: "2024-03-15T11:00:00Z", Operation: trends.OpDeploy, Status: trends.StatusFailed, DurationSeconds: 10},
			{Timestamp: "2024-02-20T10:00:00Z", Operation: trends.OpDestroy, Status: trends.StatusSuccess, DurationSeconds: 45},
		},
		DriftChecks: []trends.DriftCheck{
			{Timestamp: "2024-03-15T09:00:00Z", Status: trends.DriftDetected, DriftPercent: 20},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, trends.NewAnalyzer(ds, now), 30, now))
	out := buf.String()

	assert.Contains(t, out, "Period: last 30 days | Generated: 2024-03-15 12:00:00")
	assert.Contains(t, out, "<strong>Total operations:</strong> 3")
	assert.Contains(t, out, `<span class="success">66.7%</span>`)
	assert.Contains(t, out, `<span class="warning">0.0%</span>`)
	assert.Contains(t, out, "<td>Mean</td><td>120.0s</td>")
	assert.Contains(t, out, `<td><span class="error">1</span></td>`)

	// Only the most recent days are listed, oldest first.
	assert.Equal(t, 2*RecentDays, strings.Count(out, "<td>2024-0"))
	assert.NotContains(t, out, "<td>2024-03-01</td>")
	assert.Contains(t, out, "<td>2024-03-02</td>")
	assert.Less(t, strings.Index(out, "<td>2024-03-02</td>"), strings.Index(out, "<td>2024-03-15</td>"))
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, trends.NewAnalyzer(trends.Dataset{}, now), 7, now))
	out := buf.String()

	assert.Equal(t, 2, strings.Count(out, "<p>No data available</p>"))
	assert.Equal(t, 14, strings.Count(out, "<td>2024-03-"))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard", "trends.html")
	require.NoError(t, WriteFile(path, trends.NewAnalyzer(trends.Dataset{}, now), 30, now))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<!DOCTYPE html>"))
}
