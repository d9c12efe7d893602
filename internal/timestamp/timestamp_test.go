package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 1, 4, 10, 0, 0, 0, time.UTC)

func TestAgeHoursLayouts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"offset", "2024-01-01 10:00:00 +0000", 72},
		{"colon offset", "2024-01-01 10:00:00 +00:00", 72},
		{"docker cli", "2024-01-01 10:00:00 +0000 UTC", 72},
		{"non-utc offset", "2024-01-01 12:00:00 +0200", 72},
		{"local", "2024-01-03 10:00:00", 24},
		{"rfc3339", "2024-01-04T08:30:00+00:00", 1.5},
		{"iso offset without colon", "2024-01-01T10:00:00+0000", 72},
		{"iso non-utc offset without colon", "2024-01-01T12:00:00+0200", 72},
		{"rfc3339 zulu", "2024-01-04T09:00:00Z", 1},
		{"rfc3339 fractional", "2024-01-04T09:00:00.5Z", 1 - 0.5/3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AgeHours(tt.raw, now)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAgeHoursUsesNowLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	localNow := time.Date(2024, 1, 4, 13, 0, 0, 0, loc)

	got, ok := AgeHours("2024-01-04 11:00:00", localNow)
	require.True(t, ok)
	assert.InDelta(t, 2.0, got, 1e-9)
}

func TestAgeHoursAbsent(t *testing.T) {
	for _, raw := range []string{"", "unknown", "yesterday", "2024/01/01 10:00:00", "01-01-2024"} {
		_, ok := AgeHours(raw, now)
		assert.False(t, ok, "raw %q", raw)
	}
}

func TestAgeHoursFutureIsZero(t *testing.T) {
	got, ok := AgeHours("2024-01-05 10:00:00 +0000", now)
	require.True(t, ok)
	assert.Zero(t, got)
}

func TestAgeHoursUnrounded(t *testing.T) {
	got, ok := AgeHours("2024-01-04 09:59:24 +0000", now)
	require.True(t, ok)
	assert.InDelta(t, 0.01, got, 1e-9)
}

func TestFormatParsesBack(t *testing.T) {
	ts := time.Date(2024, 3, 5, 6, 7, 8, 0, time.UTC)
	got, ok := Parse(Format(ts), time.UTC)
	require.True(t, ok)
	assert.True(t, ts.Equal(got))
}
