package analysis

import (
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/model"
)

// riskExpr is one CEL expression pair computing a RiskCell's probability
// and impact for a RiskFactor. Used directly against
// cel-go rather than through pkg/rules.Gate, since a Gate evaluates to a
// single bool and a risk cell needs two independent doubles.
type riskExpr struct {
	factor         model.RiskFactor
	probabilityCEL string
	impactCEL      string
}

var riskMatrixExprs = []riskExpr{
	{
		factor:         model.RiskTechnical,
		probabilityCEL: "integration_signal > 0.0 ? 0.65 : 0.3",
		impactCEL:      "todo_count > 8 ? 0.7 : 0.4",
	},
	{
		factor:         model.RiskResource,
		probabilityCEL: "capacity_fit < 0.5 ? 0.7 : 0.25",
		impactCEL:      "capacity_fit < 0.3 ? 0.8 : 0.4",
	},
	{
		factor:         model.RiskTimeline,
		probabilityCEL: "total_effort_hours > 40.0 ? 0.7 : double(todo_count) / 10.0",
		impactCEL:      "total_effort_hours > 60.0 ? 0.9 : 0.5",
	},
	{
		factor:         model.RiskCompliance,
		probabilityCEL: "sensitivity_score >= 70 ? 0.6 : 0.15",
		impactCEL:      "sensitivity_score >= 70 ? 0.8 : 0.3",
	},
	{
		factor:         model.RiskSecurity,
		probabilityCEL: "sensitivity_score >= 90 ? 0.8 : (sensitivity_score >= 70 ? 0.4 : 0.1)",
		impactCEL:      "sensitivity_score >= 90 ? 0.9 : 0.4",
	},
	{
		factor:         model.RiskBusiness,
		probabilityCEL: "workgroup_matches == 0 ? 0.5 : 0.2",
		impactCEL:      "workgroup_matches == 0 ? 0.6 : 0.3",
	},
}

var riskDecls = []cel.EnvOption{
	cel.Variable("todo_count", cel.IntType),
	cel.Variable("total_effort_hours", cel.DoubleType),
	cel.Variable("sensitivity_score", cel.IntType),
	cel.Variable("capacity_fit", cel.DoubleType),
	cel.Variable("workgroup_matches", cel.IntType),
	cel.Variable("integration_signal", cel.DoubleType),
}

type compiledRiskCell struct {
	factor    model.RiskFactor
	probGate  cel.Program
	impactGate cel.Program
}

var (
	riskProgramsOnce sync.Once
	riskPrograms     []compiledRiskCell
	riskCompileErr   error
)

func compileRiskPrograms() ([]compiledRiskCell, error) {
	riskProgramsOnce.Do(func() {
		env, err := cel.NewEnv(riskDecls...)
		if err != nil {
			riskCompileErr = apperrors.Wrap(err, apperrors.ErrorTypeInternal, "analysis: risk cel env construction failed")
			return
		}

		compiled := make([]compiledRiskCell, 0, len(riskMatrixExprs))
		for _, e := range riskMatrixExprs {
			probProgram, err := compileRiskExpr(env, e.probabilityCEL)
			if err != nil {
				riskCompileErr = err
				return
			}
			impactProgram, err := compileRiskExpr(env, e.impactCEL)
			if err != nil {
				riskCompileErr = err
				return
			}
			compiled = append(compiled, compiledRiskCell{factor: e.factor, probGate: probProgram, impactGate: impactProgram})
		}
		riskPrograms = compiled
	})
	return riskPrograms, riskCompileErr
}

func compileRiskExpr(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, apperrors.Wrap(issues.Err(), apperrors.ErrorTypeValidation, "analysis: risk expression failed to compile").
			WithDetails(expr)
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "analysis: risk program construction failed")
	}
	return program, nil
}

// riskSignals summarizes the analysis-in-progress for the risk matrix's
// activation context.
type riskSignals struct {
	todoCount         int
	totalEffortHours  float64
	sensitivityScore  int
	capacityFit       float64
	workgroupMatches  int
	integrationSignal float64
}

func gatherRiskSignals(todos []model.TodoItem, workgroups []model.RelatedWorkgroup, sensitivityScore int) riskSignals {
	sig := riskSignals{
		sensitivityScore: sensitivityScore,
		capacityFit:      1.0,
		workgroupMatches: len(workgroups),
	}

	for _, t := range todos {
		sig.todoCount++
		sig.totalEffortHours += t.EstimatedHours
	}

	minFit := 1.0
	for _, wg := range workgroups {
		if wg.Capacity.FitScore < minFit {
			minFit = wg.Capacity.FitScore
		}
	}
	if len(workgroups) > 0 {
		sig.capacityFit = minFit
	}

	for _, t := range todos {
		lower := strings.ToLower(t.Description)
		for _, kw := range integrationKeywords {
			if strings.Contains(lower, kw) {
				sig.integrationSignal = 1.0
				break
			}
		}
		if sig.integrationSignal > 0 {
			break
		}
	}

	return sig
}

// assessRisk evaluates the six-factor risk matrix against the analysis's
// current signals, with Overall set to the max cell score.
func assessRisk(todos []model.TodoItem, workgroups []model.RelatedWorkgroup, sensitivityScore int) (model.RiskAssessment, error) {
	programs, err := compileRiskPrograms()
	if err != nil {
		return model.RiskAssessment{}, err
	}

	sig := gatherRiskSignals(todos, workgroups, sensitivityScore)
	activation := map[string]any{
		"todo_count":         int64(sig.todoCount),
		"total_effort_hours": sig.totalEffortHours,
		"sensitivity_score":  int64(sig.sensitivityScore),
		"capacity_fit":       sig.capacityFit,
		"workgroup_matches":  int64(sig.workgroupMatches),
		"integration_signal": sig.integrationSignal,
	}

	cells := make([]model.RiskCell, 0, len(programs))
	var overall float64
	for _, p := range programs {
		prob, _, err := p.probGate.Eval(activation)
		if err != nil {
			return model.RiskAssessment{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "analysis: risk probability eval failed")
		}
		impact, _, err := p.impactGate.Eval(activation)
		if err != nil {
			return model.RiskAssessment{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "analysis: risk impact eval failed")
		}

		cell := model.RiskCell{
			Factor:      p.factor,
			Probability: prob.Value().(float64),
			Impact:      impact.Value().(float64),
		}
		cells = append(cells, cell)
		if score := cell.Score(); score > overall {
			overall = score
		}
	}

	return model.RiskAssessment{Cells: cells, Overall: overall}, nil
}
