// Package guard evaluates the Rego policy that gates automatic reclaims.
package guard

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/ephemera/pkg/resource"
)

//go:embed default.rego
var defaultPolicy string

const query = "data.ephemera.reclaim"

// Input is the document a policy sees as `input`.
type Input struct {
	PRNumber    int                 `json:"pr_number"`
	PRState     string              `json:"pr_state"`
	Candidates  resource.KindCounts `json:"candidates"`
	MaxAgeHours float64             `json:"max_age_hours"`
}

// Decision is the policy outcome for one PR.
type Decision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
}

// Guard holds a prepared policy query.
type Guard struct {
	query  rego.PreparedEvalQuery
	tracer trace.Tracer
}

// New compiles src, or the built-in policy when src is empty. The policy
// must live in package ephemera.reclaim and define allow.
func New(ctx context.Context, src string) (*Guard, error) {
	name := "custom.rego"
	if src == "" {
		src = defaultPolicy
		name = "default.rego"
	}

	prepared, err := rego.New(
		rego.Query(query),
		rego.Module(name, src),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policy %s: %w", name, err)
	}

	return &Guard{query: prepared, tracer: otel.Tracer("ephemera.guard")}, nil
}

// Load compiles the policy file at path, or the built-in policy when
// path is empty.
func Load(ctx context.Context, path string) (*Guard, error) {
	if path == "" {
		return New(ctx, "")
	}
	src, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return New(ctx, string(src))
}

// Evaluate decides whether in's PR may be reclaimed. An undefined allow
// denies.
func (g *Guard) Evaluate(ctx context.Context, in Input) (Decision, error) {
	ctx, span := g.tracer.Start(ctx, "guard.evaluate",
		trace.WithAttributes(attribute.Int("pr.number", in.PRNumber), attribute.String("pr.state", in.PRState)))
	defer span.End()

	results, err := g.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate policy: %w", err)
	}

	var d Decision
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return d, nil
	}
	doc, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return d, nil
	}
	if allow, ok := doc["allow"].(bool); ok {
		d.Allow = allow
	}
	if reason, ok := doc["reason"].(string); ok {
		d.Reason = reason
	}
	span.SetAttributes(attribute.Bool("guard.allow", d.Allow))
	return d, nil
}
