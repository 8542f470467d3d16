package rules

import (
	"github.com/google/cel-go/cel"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
)

// GateType classifies a Gate expression's evaluation target, mirroring
// this package's PostCondition{Type, Expression} shape.
type GateType string

const (
	GateExpression GateType = "expression"
)

// Gate is one typed boolean expression evaluated against a structured
// activation context — used for DQM quality gates and TGE blocker/
// completion-criterion rules.
type Gate struct {
	Name       string
	Type       GateType
	Expression string
	Mandatory  bool

	program cel.Program
}

// Declaration names one variable available to a Gate's CEL expression.
type Declaration struct {
	Name string
	Type *cel.Type
}

// CompileGate compiles expr against the given variable declarations.
func CompileGate(name, expr string, mandatory bool, decls []Declaration) (*Gate, error) {
	opts := make([]cel.EnvOption, 0, len(decls))
	for _, d := range decls {
		opts = append(opts, cel.Variable(d.Name, d.Type))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "rules: cel env construction failed")
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, apperrors.Wrap(issues.Err(), apperrors.ErrorTypeValidation, "rules: gate expression failed to compile").
			WithDetails(expr)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "rules: cel program construction failed")
	}

	return &Gate{Name: name, Type: GateExpression, Expression: expr, Mandatory: mandatory, program: program}, nil
}

// GateResult is one Gate's evaluation outcome.
type GateResult struct {
	Name      string
	Mandatory bool
	Passed    bool
}

// Evaluate runs the gate's compiled expression against activation
// (a map of variable name -> value matching the Declarations it was
// compiled with).
func (g *Gate) Evaluate(activation map[string]any) (GateResult, error) {
	out, _, err := g.program.Eval(activation)
	if err != nil {
		return GateResult{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "rules: gate evaluation failed").
			WithDetails(g.Expression)
	}

	passed, ok := out.Value().(bool)
	if !ok {
		return GateResult{}, apperrors.New(apperrors.ErrorTypeInternal, "rules: gate expression must evaluate to bool").
			WithDetails(g.Expression)
	}

	return GateResult{Name: g.Name, Mandatory: g.Mandatory, Passed: passed}, nil
}

// EvaluateAll evaluates every gate against the same activation context,
// short-circuiting on compile/eval errors (which are bugs, not domain
// failures) but collecting every pass/fail result.
func EvaluateAll(gates []*Gate, activation map[string]any) ([]GateResult, error) {
	results := make([]GateResult, 0, len(gates))
	for _, g := range gates {
		r, err := g.Evaluate(activation)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// AnyMandatoryFailed reports whether a mandatory gate failed.
func AnyMandatoryFailed(results []GateResult) bool {
	for _, r := range results {
		if r.Mandatory && !r.Passed {
			return true
		}
	}
	return false
}

// AnyNonMandatoryFailed reports whether a non-mandatory gate failed.
func AnyNonMandatoryFailed(results []GateResult) bool {
	for _, r := range results {
		if !r.Mandatory && !r.Passed {
			return true
		}
	}
	return false
}
