// Package infra drives the infrastructure-as-code tool that owns each
// preview stack.
package infra

import "context"

// Provisioner manages the infrastructure stack of one PR.
type Provisioner interface {
	Apply(ctx context.Context, pr int) (*ApplyResult, error)
	Destroy(ctx context.Context, pr int) error
	Plan(ctx context.Context, pr int) (*PlanResult, error)
	State(ctx context.Context, pr int) (*StackState, error)
	StackExists(ctx context.Context, pr int) (bool, error)
}

// ApplyResult describes a successful apply.
type ApplyResult struct {
	Stack   string         `json:"stack"`
	Outputs map[string]any `json:"outputs"`
}

// PlanResult describes a plan.
type PlanResult struct {
	Stack      string `json:"stack"`
	HasChanges bool   `json:"has_changes"`
}

// StackState lists the resources tracked for a stack.
type StackState struct {
	Stack     string   `json:"stack"`
	Resources []string `json:"resources"`
}

// Scope identifies one persisted state: a stack directory and the
// workspace inside it. An empty workspace means the selected one.
type Scope struct {
	Dir       string
	Workspace string
}
