package rules_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/orchestrator/pkg/rules"
)

const testPolicy = `
package content_policy

default compliant := true

violations[v] {
	contains(lower(input.text), "confidential")
	v := {"rule": "no_confidential_markers", "message": "content contains a confidential marker"}
}

compliant := false {
	count(violations) > 0
}

score := 100 {
	count(violations) == 0
} else := 40

result := {"compliant": compliant, "score": score, "violations": [v | v := violations[_]]}
`

func TestValidateContentFlagsViolation(t *testing.T) {
	policy, err := rules.CompileContentPolicy(context.Background(), testPolicy, "data.content_policy.result")
	require.NoError(t, err)

	report, err := policy.Evaluate(context.Background(), map[string]any{"text": "This document is CONFIDENTIAL."})
	require.NoError(t, err)

	assert.False(t, report.Compliant)
	assert.Equal(t, float64(40), report.Score)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "no_confidential_markers", report.Violations[0].Rule)
}

func TestValidateContentPassesCleanText(t *testing.T) {
	policy, err := rules.CompileContentPolicy(context.Background(), testPolicy, "data.content_policy.result")
	require.NoError(t, err)

	report, err := policy.Evaluate(context.Background(), map[string]any{"text": "Implement OAuth2 login."})
	require.NoError(t, err)

	assert.True(t, report.Compliant)
	assert.Empty(t, report.Violations)
}
