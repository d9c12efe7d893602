package resource

// DiffType represents the type of change detected between two scans.
type DiffType string

const (
	// DiffAdded indicates a new object appeared.
	DiffAdded DiffType = "added"
	// DiffDeleted indicates an object no longer exists.
	DiffDeleted DiffType = "deleted"
	// DiffModified indicates an object's observed fields changed.
	DiffModified DiffType = "modified"
)

// Change represents a single field change.
// The field name is the map key in Diff.Changes.
type Change struct {
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

// Diff is one detected change of a runtime object between scans.
type Diff struct {
	Type     DiffType          `json:"type"`
	Record   Record            `json:"record"`
	Previous *Record           `json:"previous,omitempty"` // nil for added records
	Changes  map[string]Change `json:"changes,omitempty"`  // field name → change details
}

// Key identifies a record across scans. Runtime object names are unique
// per kind.
func Key(r Record) string {
	return string(r.Kind) + "|" + r.Name
}

// Records flattens a scan in kind order.
func (s ScanResult) Records() []Record {
	out := make([]Record, 0, len(s.Containers)+len(s.Volumes)+len(s.Networks))
	for _, kind := range Kinds {
		out = append(out, s.ByKind(kind)...)
	}
	return out
}
