package rules_test

import (
	"testing"

	"github.com/google/cel-go/cel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/orchestrator/pkg/rules"
)

func TestGateEvaluatesBooleanExpression(t *testing.T) {
	gate, err := rules.CompileGate("overall_quality", "overall >= 70.0", true, []rules.Declaration{
		{Name: "overall", Type: cel.DoubleType},
	})
	require.NoError(t, err)

	result, err := gate.Evaluate(map[string]any{"overall": 82.0})
	require.NoError(t, err)
	assert.True(t, result.Passed)

	result, err = gate.Evaluate(map[string]any{"overall": 50.0})
	require.NoError(t, err)
	assert.False(t, result.Passed)
}

func TestAnyMandatoryFailed(t *testing.T) {
	mandatory, err := rules.CompileGate("mandatory", "false", true, nil)
	require.NoError(t, err)
	optional, err := rules.CompileGate("optional", "false", false, nil)
	require.NoError(t, err)

	results, err := rules.EvaluateAll([]*rules.Gate{mandatory, optional}, map[string]any{})
	require.NoError(t, err)

	assert.True(t, rules.AnyMandatoryFailed(results))
	assert.True(t, rules.AnyNonMandatoryFailed(results))
}

func TestNonBooleanExpressionFailsAtEvaluation(t *testing.T) {
	gate, err := rules.CompileGate("bad", "1 + 1", true, nil)
	require.NoError(t, err)

	_, err = gate.Evaluate(map[string]any{})
	assert.Error(t, err)
}
