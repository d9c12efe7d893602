// Package timestamp parses runtime creation times and computes ages.
package timestamp

import (
	"strings"
	"time"
)

// Unknown is the placeholder runtimes print when no creation time exists.
const Unknown = "unknown"

// DockerLayout is the layout the docker CLI uses for CreatedAt.
const DockerLayout = "2006-01-02 15:04:05 -0700 MST"

var offsetLayouts = []string{
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -07:00",
	DockerLayout,
	"2006-01-02T15:04:05.999999999-0700",
}

const localLayout = "2006-01-02 15:04:05"

// Parse reads raw using the accepted layouts in order. Timestamps without an
// offset are taken to be in loc.
func Parse(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == Unknown {
		return time.Time{}, false
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if t, err := time.ParseInLocation(localLayout, raw, loc); err == nil {
		return t, true
	}
	// Also accepts fractional seconds and a Z suffix.
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// AgeHours returns the hours elapsed between raw and now, unrounded.
// Creation times after now count as zero.
func AgeHours(raw string, now time.Time) (float64, bool) {
	t, ok := Parse(raw, now.Location())
	if !ok {
		return 0, false
	}
	age := now.Sub(t).Hours()
	if age < 0 {
		age = 0
	}
	return age, true
}

// Format renders t the way the docker CLI prints creation times.
func Format(t time.Time) string {
	return t.Format(DockerLayout)
}
