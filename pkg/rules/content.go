// Package rules implements the RulesEngine capability:
// ValidateContent over a compiled Rego policy bundle, and
// ValidateArtifact plus DQM/TGE gate expressions over CEL. These are
// kept as two distinct mechanisms deliberately: Rego suits declarative
// compliance policy over unstructured content, CEL suits typed boolean
// expressions evaluated against a structured activation context,
// alongside the mandatory/non-mandatory completion-criterion gate
// pattern used elsewhere in this package.
package rules

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
)

// ContentViolation is one Rego policy violation.
type ContentViolation struct {
	Rule    string
	Message string
}

// ContentReport is RulesEngine.ValidateContent's result.
type ContentReport struct {
	Compliant  bool
	Score      float64
	Violations []ContentViolation
}

// ContentPolicy wraps a compiled Rego query evaluated over arbitrary
// structured input (e.g. {"text": ..., "category": ...}).
type ContentPolicy struct {
	query rego.PreparedEvalQuery
}

// CompileContentPolicy compiles a Rego module's "data.<pkg>.result" rule
// into a reusable prepared query. The rule is expected to produce an
// object: {"compliant": bool, "score": number, "violations": [{"rule":
// string, "message": string}, ...]}.
func CompileContentPolicy(ctx context.Context, regoModule, resultQuery string) (*ContentPolicy, error) {
	r := rego.New(
		rego.Query(resultQuery),
		rego.Module("content_policy.rego", regoModule),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "rules: failed to compile content policy")
	}
	return &ContentPolicy{query: query}, nil
}

// Evaluate runs the policy against input (expected to be
// map[string]interface{} or JSON-marshalable).
func (p *ContentPolicy) Evaluate(ctx context.Context, input map[string]any) (ContentReport, error) {
	results, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return ContentReport{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "rules: content policy evaluation failed")
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return ContentReport{Compliant: true}, nil
	}

	raw, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return ContentReport{}, apperrors.New(apperrors.ErrorTypeInternal, "rules: unexpected content policy result shape")
	}

	report := ContentReport{
		Compliant: asBool(raw["compliant"]),
		Score:     asFloat(raw["score"]),
	}
	if violations, ok := raw["violations"].([]any); ok {
		for _, v := range violations {
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			report.Violations = append(report.Violations, ContentViolation{
				Rule:    fmt.Sprint(m["rule"]),
				Message: fmt.Sprint(m["message"]),
			})
		}
	}
	return report, nil
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
