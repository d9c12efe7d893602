// Package resource defines the runtime object model for preview environments.
package resource

import (
	"time"

	"github.com/yairfalse/ephemera/internal/naming"
	"github.com/yairfalse/ephemera/internal/timestamp"
)

// Kind is the category of a container runtime object.
type Kind string

const (
	KindContainer Kind = "container"
	KindVolume    Kind = "volume"
	KindNetwork   Kind = "network"
)

// Kinds lists every kind in scan order.
var Kinds = []Kind{KindContainer, KindVolume, KindNetwork}

// Record is one runtime object as observed by a scan.
// Ownership and age are derived on demand, never stored.
type Record struct {
	Kind         Kind   `json:"kind"`
	Name         string `json:"name"`
	Status       string `json:"status,omitempty"`     // containers only
	Driver       string `json:"driver,omitempty"`     // volumes and networks
	CreatedAtRaw string `json:"created_at,omitempty"` // "unknown" or empty when not reported
	Labels       string `json:"labels,omitempty"`     // opaque runtime label string
}

// PRNumber returns the PR that owns the record, if its name encodes one.
func (r Record) PRNumber() (int, bool) {
	return naming.ExtractPRNumber(r.Name)
}

// AgeHours returns the record age relative to now, if its creation time is known.
func (r Record) AgeHours(now time.Time) (float64, bool) {
	return timestamp.AgeHours(r.CreatedAtRaw, now)
}

// ScanResult holds the records of one scan, grouped by kind.
type ScanResult struct {
	Containers []Record  `json:"containers"`
	Volumes    []Record  `json:"volumes"`
	Networks   []Record  `json:"networks"`
	ScannedAt  time.Time `json:"scanned_at"`
	Incomplete []Kind    `json:"incomplete,omitempty"` // kinds whose query failed
}

// ByKind returns the records of a single kind.
func (s ScanResult) ByKind(kind Kind) []Record {
	switch kind {
	case KindContainer:
		return s.Containers
	case KindVolume:
		return s.Volumes
	case KindNetwork:
		return s.Networks
	}
	return nil
}

// Counts returns the number of observed records per kind.
func (s ScanResult) Counts() KindCounts {
	return KindCounts{
		Containers: len(s.Containers),
		Volumes:    len(s.Volumes),
		Networks:   len(s.Networks),
	}
}

// KindCounts is a per-kind tally.
type KindCounts struct {
	Containers int `json:"containers"`
	Volumes    int `json:"volumes"`
	Networks   int `json:"networks"`
}

// Add increments the tally for kind by n.
func (c *KindCounts) Add(kind Kind, n int) {
	switch kind {
	case KindContainer:
		c.Containers += n
	case KindVolume:
		c.Volumes += n
	case KindNetwork:
		c.Networks += n
	}
}

// Get returns the tally for kind.
func (c KindCounts) Get(kind Kind) int {
	switch kind {
	case KindContainer:
		return c.Containers
	case KindVolume:
		return c.Volumes
	case KindNetwork:
		return c.Networks
	}
	return 0
}

// Total sums all kinds.
func (c KindCounts) Total() int {
	return c.Containers + c.Volumes + c.Networks
}

// Candidate is a record selected for cleanup, with its derived fields
// evaluated at classification time.
type Candidate struct {
	Record
	PR  *int    `json:"pr_number,omitempty"`
	Age float64 `json:"age_hours"`
}

// Report is the outcome of classifying a scan against a retention threshold.
// It is not modified after construction.
type Report struct {
	Totals      KindCounts  `json:"total_resources"`
	Containers  []Candidate `json:"containers"`
	Volumes     []Candidate `json:"volumes"`
	Networks    []Candidate `json:"networks"`
	PRNumbers   []int       `json:"pr_numbers"` // distinct, ascending
	MaxAgeHours float64     `json:"max_age_hours"`
	AnalyzedAt  time.Time   `json:"timestamp"`
	Incomplete  []Kind      `json:"incomplete,omitempty"`
}

// CandidatesByKind returns the candidates of a single kind.
func (r Report) CandidatesByKind(kind Kind) []Candidate {
	switch kind {
	case KindContainer:
		return r.Containers
	case KindVolume:
		return r.Volumes
	case KindNetwork:
		return r.Networks
	}
	return nil
}

// CandidateCounts returns the number of candidates per kind.
func (r Report) CandidateCounts() KindCounts {
	return KindCounts{
		Containers: len(r.Containers),
		Volumes:    len(r.Volumes),
		Networks:   len(r.Networks),
	}
}

// Empty reports whether nothing needs cleanup.
func (r Report) Empty() bool {
	return r.CandidateCounts().Total() == 0
}
