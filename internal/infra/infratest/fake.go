// Package infratest provides an in-memory Provisioner for tests.
package infratest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/yairfalse/ephemera/internal/infra"
	"github.com/yairfalse/ephemera/internal/naming"
)

// Fake tracks stacks in memory and records every call.
type Fake struct {
	mu     sync.Mutex
	stacks map[int][]string
	calls  []string

	// Resources is what Apply creates for a new stack.
	Resources []string
	// Err, when set, is returned by every operation.
	Err error
}

// NewFake creates a fake whose stacks hold a single resource.
func NewFake() *Fake {
	return &Fake{
		stacks:    make(map[int][]string),
		Resources: []string{"docker_container.app"},
	}
}

var _ infra.Provisioner = (*Fake)(nil)

func (f *Fake) record(op string, pr int) (string, error) {
	f.calls = append(f.calls, fmt.Sprintf("%s %d", op, pr))
	if f.Err != nil {
		return "", f.Err
	}
	return naming.StackName(pr)
}

// Apply implements infra.Provisioner.
func (f *Fake) Apply(_ context.Context, pr int) (*infra.ApplyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stack, err := f.record("apply", pr)
	if err != nil {
		return nil, err
	}
	f.stacks[pr] = append([]string(nil), f.Resources...)
	return &infra.ApplyResult{Stack: stack, Outputs: map[string]any{"stack_name": stack}}, nil
}

// Destroy implements infra.Provisioner.
func (f *Fake) Destroy(_ context.Context, pr int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.record("destroy", pr); err != nil {
		return err
	}
	delete(f.stacks, pr)
	return nil
}

// Plan implements infra.Provisioner. A missing stack always has changes.
func (f *Fake) Plan(_ context.Context, pr int) (*infra.PlanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stack, err := f.record("plan", pr)
	if err != nil {
		return nil, err
	}
	_, exists := f.stacks[pr]
	return &infra.PlanResult{Stack: stack, HasChanges: !exists}, nil
}

// State implements infra.Provisioner.
func (f *Fake) State(_ context.Context, pr int) (*infra.StackState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stack, err := f.record("state", pr)
	if err != nil {
		return nil, err
	}
	resources := append([]string(nil), f.stacks[pr]...)
	sort.Strings(resources)
	return &infra.StackState{Stack: stack, Resources: resources}, nil
}

// StackExists implements infra.Provisioner.
func (f *Fake) StackExists(_ context.Context, pr int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.record("exists", pr); err != nil {
		return false, err
	}
	return len(f.stacks[pr]) > 0, nil
}

// Calls returns the recorded operations, such as "apply 12".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
