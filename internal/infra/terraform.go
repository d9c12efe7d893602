package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yairfalse/ephemera/internal/command"
	"github.com/yairfalse/ephemera/internal/naming"
)

// Terraform runs the terraform CLI in a stack directory, one workspace per PR.
type Terraform struct {
	runner command.Runner
	binary string
	dir    string
	logger zerolog.Logger
}

// NewTerraform creates a Terraform backend for the stack in dir.
func NewTerraform(runner command.Runner, binary, dir string, logger zerolog.Logger) *Terraform {
	if binary == "" {
		binary = "terraform"
	}
	return &Terraform{
		runner: runner,
		binary: binary,
		dir:    dir,
		logger: logger.With().Str("component", "terraform").Logger(),
	}
}

// Scope returns the state scope of PR pr.
func (t *Terraform) Scope(pr int) (Scope, error) {
	stack, err := naming.StackName(pr)
	if err != nil {
		return Scope{}, err
	}
	return Scope{Dir: t.dir, Workspace: stack}, nil
}

// Apply creates or updates the PR's stack and returns its outputs.
func (t *Terraform) Apply(ctx context.Context, pr int) (*ApplyResult, error) {
	stack, err := t.prepare(ctx, pr, true)
	if err != nil {
		return nil, err
	}

	if _, err := t.run(ctx, stack, "apply", "-auto-approve", "-input=false", "-no-color", prVar(pr)); err != nil {
		return nil, fmt.Errorf("apply %s: %w", stack, err)
	}

	out, err := t.run(ctx, stack, "output", "-json")
	if err != nil {
		return nil, fmt.Errorf("read outputs %s: %w", stack, err)
	}
	outputs, err := parseOutputs(out)
	if err != nil {
		return nil, fmt.Errorf("parse outputs %s: %w", stack, err)
	}

	t.logger.Info().Str("stack", stack).Int("outputs", len(outputs)).Msg("stack applied")
	return &ApplyResult{Stack: stack, Outputs: outputs}, nil
}

// Destroy removes every resource of the PR's stack. The workspace is kept
// so its now empty state can still be listed.
func (t *Terraform) Destroy(ctx context.Context, pr int) error {
	stack, err := t.prepare(ctx, pr, false)
	if err != nil {
		return err
	}

	if _, err := t.run(ctx, stack, "destroy", "-auto-approve", "-input=false", "-no-color", prVar(pr)); err != nil {
		return fmt.Errorf("destroy %s: %w", stack, err)
	}
	t.logger.Info().Str("stack", stack).Msg("stack destroyed")
	return nil
}

// Plan reports whether applying would change the PR's stack.
func (t *Terraform) Plan(ctx context.Context, pr int) (*PlanResult, error) {
	stack, err := t.prepare(ctx, pr, true)
	if err != nil {
		return nil, err
	}

	_, err = t.run(ctx, stack, "plan", "-input=false", "-no-color", "-detailed-exitcode", prVar(pr))
	switch command.ExitCode(err) {
	case 0:
		return &PlanResult{Stack: stack}, nil
	case 2:
		return &PlanResult{Stack: stack, HasChanges: true}, nil
	}
	return nil, fmt.Errorf("plan %s: %w", stack, err)
}

// State lists the resource addresses tracked for the PR's stack.
func (t *Terraform) State(ctx context.Context, pr int) (*StackState, error) {
	scope, err := t.Scope(pr)
	if err != nil {
		return nil, err
	}
	resources, err := t.stateList(ctx, scope)
	if err != nil {
		return nil, err
	}
	return &StackState{Stack: scope.Workspace, Resources: resources}, nil
}

// StackExists reports whether the PR's workspace exists and tracks at
// least one resource.
func (t *Terraform) StackExists(ctx context.Context, pr int) (bool, error) {
	scope, err := t.Scope(pr)
	if err != nil {
		return false, err
	}
	resources, err := t.stateList(ctx, scope)
	if err != nil {
		return false, err
	}
	return len(resources) > 0, nil
}

// StateEmpty reports whether scope's state tracks no resources.
// Any failure to list the state reports false.
func (t *Terraform) StateEmpty(ctx context.Context, scope Scope) bool {
	resources, err := t.stateList(ctx, scope)
	if err != nil {
		t.logger.Warn().Err(err).Str("dir", scope.Dir).Str("workspace", scope.Workspace).Msg("state list failed")
		return false
	}
	return len(resources) == 0
}

// ResourceCount returns the number of resources in scope's state, or -1
// when the state cannot be listed.
func (t *Terraform) ResourceCount(ctx context.Context, scope Scope) int {
	resources, err := t.stateList(ctx, scope)
	if err != nil {
		t.logger.Warn().Err(err).Str("dir", scope.Dir).Str("workspace", scope.Workspace).Msg("state list failed")
		return -1
	}
	return len(resources)
}

// stateList lists scope's resources. A workspace that does not exist has
// no state and lists nothing.
func (t *Terraform) stateList(ctx context.Context, scope Scope) ([]string, error) {
	if scope.Workspace != "" {
		workspaces, err := t.workspaces(ctx, scope.Dir)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(workspaces, scope.Workspace) {
			return nil, nil
		}
	}

	cmd := command.Cmd{Name: t.binary, Args: []string{"state", "list"}, Dir: scope.Dir}
	if scope.Workspace != "" {
		cmd.Env = []string{"TF_WORKSPACE=" + scope.Workspace}
	}
	out, err := t.runner.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("state list: %w", err)
	}
	return lines(string(out)), nil
}

func (t *Terraform) workspaces(ctx context.Context, dir string) ([]string, error) {
	out, err := t.runner.Run(ctx, command.Cmd{Name: t.binary, Args: []string{"workspace", "list"}, Dir: dir})
	if err != nil {
		return nil, fmt.Errorf("workspace list: %w", err)
	}
	var names []string
	for _, l := range lines(string(out)) {
		names = append(names, strings.TrimSpace(strings.TrimPrefix(l, "*")))
	}
	return names, nil
}

// prepare initializes the stack directory and selects the PR's workspace,
// creating it when create is set.
func (t *Terraform) prepare(ctx context.Context, pr int, create bool) (string, error) {
	stack, err := naming.StackName(pr)
	if err != nil {
		return "", err
	}

	if _, err := t.runner.Run(ctx, command.Cmd{
		Name: t.binary,
		Args: []string{"init", "-input=false", "-no-color"},
		Dir:  t.dir,
	}); err != nil {
		return "", fmt.Errorf("init %s: %w", t.dir, err)
	}

	args := []string{"workspace", "select"}
	if create {
		args = append(args, "-or-create=true")
	}
	args = append(args, stack)
	if _, err := t.runner.Run(ctx, command.Cmd{Name: t.binary, Args: args, Dir: t.dir}); err != nil {
		return "", fmt.Errorf("select workspace %s: %w", stack, err)
	}
	return stack, nil
}

func (t *Terraform) run(ctx context.Context, stack string, args ...string) ([]byte, error) {
	t.logger.Debug().Str("stack", stack).Strs("args", args).Msg("running terraform")
	return t.runner.Run(ctx, command.Cmd{
		Name: t.binary,
		Args: args,
		Dir:  t.dir,
		Env:  []string{"TF_WORKSPACE=" + stack},
	})
}

func prVar(pr int) string {
	return "-var=pr_number=" + strconv.Itoa(pr)
}

func parseOutputs(raw []byte) (map[string]any, error) {
	var decoded map[string]struct {
		Value any `json:"value"`
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]any{}, nil
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	outputs := make(map[string]any, len(decoded))
	for k, v := range decoded {
		outputs[k] = v.Value
	}
	return outputs, nil
}

func lines(out string) []string {
	var result []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			result = append(result, l)
		}
	}
	return result
}
