// Package docker lists and removes container runtime objects, either through
// the docker CLI or the Engine API.
package docker

import (
	"context"
	"fmt"

	"github.com/yairfalse/ephemera/internal/naming"
	"github.com/yairfalse/ephemera/pkg/resource"
)

// EphemeralLabel marks containers started for preview environments.
const EphemeralLabel = "environment=ephemeral"

// Runtime lists and removes runtime objects of one kind at a time.
type Runtime interface {
	List(ctx context.Context, kind resource.Kind, filter Filter) ([]resource.Record, error)
	Remove(ctx context.Context, kind resource.Kind, name string) error
}

// Filter narrows a listing. Empty fields are not applied.
// Name is a substring match, as in the runtime itself.
type Filter struct {
	Label string
	Name  string
}

// ScanFilter returns the filter a full scan uses for kind.
func ScanFilter(kind resource.Kind) Filter {
	if kind == resource.KindContainer {
		return Filter{Label: EphemeralLabel}
	}
	return Filter{Name: naming.Prefix}
}

// PRFilter returns the filter that narrows a listing to the objects of one PR.
// Callers still need naming.OwnedBy since the runtime matches substrings.
func PRFilter(pr int) (Filter, error) {
	name, err := naming.StackName(pr)
	if err != nil {
		return Filter{}, err
	}
	return Filter{Name: name}, nil
}

func unknownKind(kind resource.Kind) error {
	return fmt.Errorf("unknown resource kind %q", kind)
}
