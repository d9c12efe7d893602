package scanner

import (
	"slices"
	"strings"
	"sync"

	"github.com/yairfalse/ephemera/pkg/resource"
)

// DiffTracker tracks runtime objects between scans and detects changes.
type DiffTracker struct {
	mu          sync.RWMutex
	previous    map[string]resource.Record
	initialized bool
}

// NewDiffTracker creates a new diff tracker.
func NewDiffTracker() *DiffTracker {
	return &DiffTracker{
		previous: make(map[string]resource.Record),
	}
}

// ComputeDiff compares current records against the previous scan.
// Returns nil on the first scan, an empty slice if nothing changed.
// Kinds whose listing failed are skipped so an outage is not reported
// as mass deletion.
func (d *DiffTracker) ComputeDiff(current resource.ScanResult) []resource.Diff {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return nil
	}

	currentMap := indexRecords(current.Records())
	diffs := make([]resource.Diff, 0)
	diffs = append(diffs, d.findDeletedAndModified(currentMap, current.Incomplete)...)
	diffs = append(diffs, d.findAdded(currentMap)...)

	slices.SortFunc(diffs, func(a, b resource.Diff) int {
		return strings.Compare(resource.Key(a.Record), resource.Key(b.Record))
	})
	return diffs
}

func indexRecords(records []resource.Record) map[string]resource.Record {
	m := make(map[string]resource.Record, len(records))
	for _, r := range records {
		m[resource.Key(r)] = r
	}
	return m
}

func (d *DiffTracker) findDeletedAndModified(currentMap map[string]resource.Record, incomplete []resource.Kind) []resource.Diff {
	var diffs []resource.Diff
	for key, prev := range d.previous {
		if curr, exists := currentMap[key]; exists {
			if changes := detectChanges(prev, curr); len(changes) > 0 {
				prevCopy := prev
				diffs = append(diffs, resource.Diff{
					Type:     resource.DiffModified,
					Record:   curr,
					Previous: &prevCopy,
					Changes:  changes,
				})
			}
			continue
		}
		if slices.Contains(incomplete, prev.Kind) {
			continue
		}
		prevCopy := prev
		diffs = append(diffs, resource.Diff{
			Type:     resource.DiffDeleted,
			Record:   prev,
			Previous: &prevCopy,
		})
	}
	return diffs
}

func (d *DiffTracker) findAdded(currentMap map[string]resource.Record) []resource.Diff {
	var diffs []resource.Diff
	for key, curr := range currentMap {
		if _, exists := d.previous[key]; !exists {
			diffs = append(diffs, resource.Diff{
				Type:   resource.DiffAdded,
				Record: curr,
			})
		}
	}
	return diffs
}

// Update stores the scan as the baseline for the next comparison.
// Records of incomplete kinds carry over from the previous baseline.
func (d *DiffTracker) Update(current resource.ScanResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := indexRecords(current.Records())
	for key, prev := range d.previous {
		if slices.Contains(current.Incomplete, prev.Kind) {
			next[key] = prev
		}
	}
	d.previous = next
	d.initialized = true
}

// detectChanges compares the observed fields of two records.
// Creation time is identity, not state, and is not compared.
func detectChanges(prev, curr resource.Record) map[string]resource.Change {
	changes := make(map[string]resource.Change)

	if prev.Status != curr.Status {
		changes["status"] = resource.Change{Previous: prev.Status, Current: curr.Status}
	}
	if prev.Driver != curr.Driver {
		changes["driver"] = resource.Change{Previous: prev.Driver, Current: curr.Driver}
	}
	if prev.Labels != curr.Labels {
		changes["labels"] = resource.Change{Previous: prev.Labels, Current: curr.Labels}
	}

	return changes
}
