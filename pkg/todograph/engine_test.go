package todograph_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/orchestrator/internal/clock"
	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/model"
	"github.com/taskforge/orchestrator/pkg/todograph"
)

func seedSimpleChain(t *testing.T, e *todograph.Engine, taskID string) {
	t.Helper()
	todos := []model.TodoItem{
		{ID: "t1", TaskID: taskID, Title: "design", Status: model.TodoStatusPending, EstimatedHours: 4},
		{ID: "t2", TaskID: taskID, Title: "implement", Status: model.TodoStatusPending, Dependencies: []string{"t1"}, EstimatedHours: 8},
		{ID: "t3", TaskID: taskID, Title: "review", Status: model.TodoStatusPending, Dependencies: []string{"t2"}, EstimatedHours: 2},
	}
	require.NoError(t, e.SeedTodos(taskID, todos))
}

func TestSeedTodosRejectsCycle(t *testing.T) {
	e := todograph.New(clock.NewFake(time.Now()), nil, nil, nil)
	cyclic := []model.TodoItem{
		{ID: "a", Status: model.TodoStatusPending, Dependencies: []string{"b"}},
		{ID: "b", Status: model.TodoStatusPending, Dependencies: []string{"a"}},
	}
	err := e.SeedTodos("task-1", cyclic)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestUpdateStatusIllegalTransitionFromCompleted(t *testing.T) {
	e := todograph.New(clock.NewFake(time.Now()), nil, nil, nil)
	seedSimpleChain(t, e, "task-1")

	_, err := e.UpdateStatus(context.Background(), "task-1", "t1", model.TodoStatusInProgress, todograph.UpdateMetadata{Actor: "alice"})
	require.NoError(t, err)
	_, err = e.UpdateStatus(context.Background(), "task-1", "t1", model.TodoStatusCompleted, todograph.UpdateMetadata{Actor: "alice"})
	require.NoError(t, err)

	_, err = e.UpdateStatus(context.Background(), "task-1", "t1", model.TodoStatusInProgress, todograph.UpdateMetadata{Actor: "alice"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidState))
}

func TestUpdateStatusBlocksOnUnmetDependencies(t *testing.T) {
	e := todograph.New(clock.NewFake(time.Now()), nil, nil, nil)
	seedSimpleChain(t, e, "task-1")

	_, err := e.UpdateStatus(context.Background(), "task-1", "t2", model.TodoStatusInProgress, todograph.UpdateMetadata{Actor: "alice"})
	require.NoError(t, err)

	_, err = e.UpdateStatus(context.Background(), "task-1", "t2", model.TodoStatusCompleted, todograph.UpdateMetadata{Actor: "alice"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidState))
}

func TestUpdateStatusForceBypassesUnmetDependencies(t *testing.T) {
	e := todograph.New(clock.NewFake(time.Now()), nil, nil, nil)
	seedSimpleChain(t, e, "task-1")

	_, err := e.UpdateStatus(context.Background(), "task-1", "t2", model.TodoStatusInProgress, todograph.UpdateMetadata{Actor: "alice"})
	require.NoError(t, err)

	impact, err := e.UpdateStatus(context.Background(), "task-1", "t2", model.TodoStatusCompleted, todograph.UpdateMetadata{
		Actor: "alice", Force: true, Reason: "hotfix shipped manually",
	})
	require.NoError(t, err)
	assert.Equal(t, "t2", impact.TodoID)
}

func TestUpdateStatusRequiresMandatoryCriteria(t *testing.T) {
	e := todograph.New(clock.NewFake(time.Now()), nil, nil, nil)
	e.SeedTodos("task-1", []model.TodoItem{
		{ID: "t1", Status: model.TodoStatusInProgress, CompletionCriteria: []model.CompletionCriterion{
			{ID: "c1", Mandatory: true, Met: false},
		}},
	})

	_, err := e.UpdateStatus(context.Background(), "task-1", "t1", model.TodoStatusCompleted, todograph.UpdateMetadata{Actor: "alice"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidState))
}

func TestCompletingDependencyUnlocksDependent(t *testing.T) {
	e := todograph.New(clock.NewFake(time.Now()), nil, nil, nil)
	seedSimpleChain(t, e, "task-1")

	_, err := e.UpdateStatus(context.Background(), "task-1", "t1", model.TodoStatusInProgress, todograph.UpdateMetadata{Actor: "alice"})
	require.NoError(t, err)
	impact, err := e.UpdateStatus(context.Background(), "task-1", "t1", model.TodoStatusCompleted, todograph.UpdateMetadata{Actor: "alice"})
	require.NoError(t, err)

	assert.Contains(t, impact.NewlyEligibleTodoIDs, "t2")
	assert.NotContains(t, impact.NewlyEligibleTodoIDs, "t3") // t3 still depends on t2
}

func TestUpdateStatusNotFound(t *testing.T) {
	e := todograph.New(clock.NewFake(time.Now()), nil, nil, nil)
	seedSimpleChain(t, e, "task-1")

	_, err := e.UpdateStatus(context.Background(), "task-1", "ghost", model.TodoStatusInProgress, todograph.UpdateMetadata{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestProgressComputesCompletionPercentage(t *testing.T) {
	e := todograph.New(clock.NewFake(time.Now()), nil, nil, nil)
	seedSimpleChain(t, e, "task-1")

	_, err := e.UpdateStatus(context.Background(), "task-1", "t1", model.TodoStatusInProgress, todograph.UpdateMetadata{Actor: "alice"})
	require.NoError(t, err)
	_, err = e.UpdateStatus(context.Background(), "task-1", "t1", model.TodoStatusCompleted, todograph.UpdateMetadata{Actor: "alice"})
	require.NoError(t, err)

	snap := e.Progress("task-1")
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, 1, snap.Completed)
	assert.InDelta(t, 33.33, snap.CompletionPct, 0.1)
}

func TestIdentifyBlockersDetectsExplicitAndDependentBlockers(t *testing.T) {
	e := todograph.New(clock.NewFake(time.Now()), nil, nil, nil)
	e.SeedTodos("task-1", []model.TodoItem{
		{ID: "t1", Status: model.TodoStatusBlocked, Description: "awaiting vendor API access (external)"},
		{ID: "t2", Status: model.TodoStatusPending, Dependencies: []string{"t1"}},
	})

	blockers := e.IdentifyBlockers("task-1")
	require.Len(t, blockers, 2)

	var kinds []model.BlockerKind
	for _, b := range blockers {
		kinds = append(kinds, b.Kind)
	}
	assert.Contains(t, kinds, model.BlockerExternal)
	assert.Contains(t, kinds, model.BlockerDependency)
}

func TestIdentifyBlockersDetectsOverdueTodo(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	e := todograph.New(fake, nil, nil, nil)
	due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.SeedTodos("task-1", []model.TodoItem{
		{ID: "t1", Status: model.TodoStatusPending, DueDate: &due},
	})

	blockers := e.IdentifyBlockers("task-1")
	require.Len(t, blockers, 1)
	assert.Equal(t, model.BlockerTimeline, blockers[0].Kind)
}

func TestIdentifyBlockersElevatesCriticalPriorityOnCriticalPathToCritical(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	e := todograph.New(fake, nil, nil, nil)
	due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.SeedTodos("task-1", []model.TodoItem{
		{ID: "t1", Status: model.TodoStatusInProgress, Priority: model.PriorityCritical, DueDate: &due},
	})

	blockers := e.IdentifyBlockers("task-1")
	require.Len(t, blockers, 1)
	assert.Equal(t, model.BlockerTimeline, blockers[0].Kind)
	assert.Equal(t, model.SeverityCritical, blockers[0].Severity)
}

func TestIdentifyBlockersDetectsOverloadedOwner(t *testing.T) {
	e := todograph.New(clock.NewFake(time.Now()), nil, nil, nil)
	var todos []model.TodoItem
	for i := 0; i < 6; i++ {
		todos = append(todos, model.TodoItem{
			ID:       "t" + string(rune('a'+i)),
			Status:   model.TodoStatusPending,
			Assignee: "bob",
		})
	}
	e.SeedTodos("task-1", todos)

	blockers := e.IdentifyBlockers("task-1")
	require.Len(t, blockers, 6)
	for _, b := range blockers {
		assert.Equal(t, model.BlockerResource, b.Kind)
	}
}

func TestBlockedTransitionOpensAndResolvesBlockerRecord(t *testing.T) {
	e := todograph.New(clock.NewFake(time.Now()), nil, nil, nil)
	seedSimpleChain(t, e, "task-1")

	_, err := e.UpdateStatus(context.Background(), "task-1", "t1", model.TodoStatusBlocked, todograph.UpdateMetadata{
		Actor: "alice", Reason: "awaiting vendor approval",
	})
	require.NoError(t, err)

	blockers := e.IdentifyBlockers("task-1")
	require.NotEmpty(t, blockers)
	var found bool
	for _, b := range blockers {
		if b.TodoID == "t1" {
			found = true
			assert.True(t, b.IsOpen())
			assert.Equal(t, model.BlockerApproval, b.Kind)
		}
	}
	assert.True(t, found)

	_, err = e.UpdateStatus(context.Background(), "task-1", "t1", model.TodoStatusPending, todograph.UpdateMetadata{Actor: "alice"})
	require.NoError(t, err)

	afterResolve := e.IdentifyBlockers("task-1")
	for _, b := range afterResolve {
		assert.NotEqual(t, "t1", b.TodoID)
	}
}

func TestGenerateReportFiltersCompletionsByRange(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	e := todograph.New(fake, nil, nil, nil)
	e.SeedTodos("task-1", []model.TodoItem{
		{ID: "t1", Status: model.TodoStatusInProgress},
	})

	_, err := e.UpdateStatus(context.Background(), "task-1", "t1", model.TodoStatusCompleted, todograph.UpdateMetadata{Actor: "alice"})
	require.NoError(t, err)

	report := e.GenerateReport("task-1", model.ReportRange{
		Since: fake.Now().Add(-time.Hour),
		Until: fake.Now().Add(time.Hour),
	}, model.ReportConfig{IncludeQualityMetrics: true})

	require.Len(t, report.CompletedInRange, 1)
	assert.NotNil(t, report.Quality)

	empty := e.GenerateReport("task-1", model.ReportRange{
		Since: fake.Now().Add(-48 * time.Hour),
		Until: fake.Now().Add(-24 * time.Hour),
	}, model.ReportConfig{})
	assert.Empty(t, empty.CompletedInRange)
}

func TestSubscribeEventsDeliversMatchingEvents(t *testing.T) {
	e := todograph.New(clock.NewFake(time.Now()), nil, nil, nil)
	seedSimpleChain(t, e, "task-1")

	events, unsubscribe := e.SubscribeEvents(model.EventFilter{TaskID: "task-1", Kinds: []model.EventKind{model.EventStatusChanged}})
	defer unsubscribe()

	_, err := e.UpdateStatus(context.Background(), "task-1", "t1", model.TodoStatusInProgress, todograph.UpdateMetadata{Actor: "alice"})
	require.NoError(t, err)

	select {
	case evt := <-events:
		assert.Equal(t, model.EventStatusChanged, evt.Kind)
		assert.Equal(t, "t1", evt.TodoID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}
