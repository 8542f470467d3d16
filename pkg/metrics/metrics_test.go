package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/orchestrator/pkg/metrics"
)

func TestTodoStatusTransitionsIncrements(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.TodoStatusTransitions.WithLabelValues("pending", "in_progress").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, f := range families {
		if f.GetName() == "taskforge_todograph_status_transitions_total" {
			found = true
			require.Len(t, f.Metric, 1)
			assert.Equal(t, float64(1), f.Metric[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}
