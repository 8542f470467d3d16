package todograph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskforge/orchestrator/pkg/model"
)

func TestIsLegalTransition(t *testing.T) {
	cases := []struct {
		from, to model.TodoStatus
		legal    bool
	}{
		{model.TodoStatusPending, model.TodoStatusInProgress, true},
		{model.TodoStatusPending, model.TodoStatusCompleted, false},
		{model.TodoStatusInProgress, model.TodoStatusCompleted, true},
		{model.TodoStatusCompleted, model.TodoStatusInProgress, false},
		{model.TodoStatusBlocked, model.TodoStatusPending, true},
		{model.TodoStatusPending, model.TodoStatusPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.legal, IsLegalTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestDetectCycle(t *testing.T) {
	acyclic := &taskGraph{nodes: map[string]*model.TodoItem{
		"a": {ID: "a"},
		"b": {ID: "b", Dependencies: []string{"a"}},
		"c": {ID: "c", Dependencies: []string{"b"}},
	}}
	assert.False(t, acyclic.detectCycle())

	cyclic := &taskGraph{nodes: map[string]*model.TodoItem{
		"a": {ID: "a", Dependencies: []string{"c"}},
		"b": {ID: "b", Dependencies: []string{"a"}},
		"c": {ID: "c", Dependencies: []string{"b"}},
	}}
	assert.True(t, cyclic.detectCycle())
}

func TestTransitiveDependencyClosure(t *testing.T) {
	g := &taskGraph{nodes: map[string]*model.TodoItem{
		"a": {ID: "a"},
		"b": {ID: "b", Dependencies: []string{"a"}},
		"c": {ID: "c", Dependencies: []string{"b"}},
	}}
	assert.ElementsMatch(t, []string{"a", "b"}, g.transitiveDependencyClosure("c"))
	assert.Empty(t, g.transitiveDependencyClosure("a"))
}

func TestIsOnCriticalPath(t *testing.T) {
	// a -> b -> c is the longer (12h) path; a -> d is shorter (5h).
	g := &taskGraph{nodes: map[string]*model.TodoItem{
		"a": {ID: "a", EstimatedHours: 2},
		"b": {ID: "b", Dependencies: []string{"a"}, EstimatedHours: 8},
		"c": {ID: "c", Dependencies: []string{"b"}, EstimatedHours: 2},
		"d": {ID: "d", Dependencies: []string{"a"}, EstimatedHours: 3},
	}}
	assert.True(t, g.isOnCriticalPath("b"))
	assert.True(t, g.isOnCriticalPath("c"))
	assert.False(t, g.isOnCriticalPath("d"))
}

func TestSnapshotIsADeepCopy(t *testing.T) {
	g := newTaskGraph()
	g.nodes["a"] = &model.TodoItem{ID: "a", Title: "original"}

	snap := g.snapshot()
	require := assert.New(t)
	require.Len(snap, 1)

	snap[0].Title = "mutated"
	require.Equal("original", g.nodes["a"].Title)
}
