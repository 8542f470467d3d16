package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/model"
	"github.com/taskforge/orchestrator/pkg/store"
)

func TestTaskStorePutGetRoundTrip(t *testing.T) {
	s := store.NewInMemoryTaskStore()
	ctx := context.Background()

	task := model.WorkTask{ID: "t1", Title: "Add OAuth", Team: "platform", Status: model.TaskStatusSubmitted, CreatedAt: time.Now()}
	require.NoError(t, s.PutTask(ctx, task))

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Add OAuth", got.Title)
	assert.Equal(t, 1, got.Version)
}

func TestTaskStoreGetMissingReturnsNotFound(t *testing.T) {
	s := store.NewInMemoryTaskStore()
	_, err := s.GetTask(context.Background(), "missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestTaskStoreUpdateCASRejectsStaleVersion(t *testing.T) {
	s := store.NewInMemoryTaskStore()
	ctx := context.Background()
	require.NoError(t, s.PutTask(ctx, model.WorkTask{ID: "t1", Status: model.TaskStatusSubmitted}))

	stale := model.WorkTask{ID: "t1", Status: model.TaskStatusAnalyzing, Version: 99}
	err := s.UpdateTask(ctx, stale)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	current, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	fresh := current
	fresh.Status = model.TaskStatusAnalyzing
	require.NoError(t, s.UpdateTask(ctx, fresh))

	updated, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusAnalyzing, updated.Status)
	assert.Equal(t, 2, updated.Version)
}

func TestTaskStoreQueryTasksByTeamStatus(t *testing.T) {
	s := store.NewInMemoryTaskStore()
	ctx := context.Background()
	require.NoError(t, s.PutTask(ctx, model.WorkTask{ID: "a", Team: "sec", Status: model.TaskStatusSubmitted, CreatedAt: time.Now()}))
	require.NoError(t, s.PutTask(ctx, model.WorkTask{ID: "b", Team: "sec", Status: model.TaskStatusAnalyzed, CreatedAt: time.Now()}))
	require.NoError(t, s.PutTask(ctx, model.WorkTask{ID: "c", Team: "other", Status: model.TaskStatusSubmitted, CreatedAt: time.Now()}))

	out, err := s.QueryTasksByTeamStatus(ctx, "sec", model.TaskStatusSubmitted)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestTaskStoreAnalysisVersionsMonotonic(t *testing.T) {
	s := store.NewInMemoryTaskStore()
	ctx := context.Background()

	v1, err := s.NextVersion(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, v1)
	require.NoError(t, s.SaveAnalysisResult(ctx, model.TaskAnalysisResult{TaskID: "t1", Version: v1}))

	v2, err := s.NextVersion(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, v2)
	require.NoError(t, s.SaveAnalysisResult(ctx, model.TaskAnalysisResult{TaskID: "t1", Version: v2}))

	latest, err := s.GetLatestAnalysisResult(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
}

func TestTaskStoreTodoAndDeliverableQueries(t *testing.T) {
	s := store.NewInMemoryTaskStore()
	ctx := context.Background()
	due := time.Now().Add(-24 * time.Hour)

	require.NoError(t, s.PutTodo(ctx, model.TodoItem{ID: "td1", TaskID: "t1", Status: model.TodoStatusPending, Assignee: "alice", DueDate: &due}))
	require.NoError(t, s.PutTodo(ctx, model.TodoItem{ID: "td2", TaskID: "t1", Status: model.TodoStatusCompleted}))

	pending, err := s.QueryTodosByTaskStatus(ctx, "t1", model.TodoStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "td1", pending[0].ID)

	overdue, err := s.QueryTodosByAssigneeDueDate(ctx, "alice", time.Now())
	require.NoError(t, err)
	require.Len(t, overdue, 1)

	require.NoError(t, s.PutDeliverable(ctx, model.Deliverable{ID: "d1", TodoID: "td1", Status: model.DeliverableSubmitted, SubmittedAt: time.Now()}))
	delivs, err := s.QueryDeliverablesByTodo(ctx, "td1")
	require.NoError(t, err)
	require.Len(t, delivs, 1)
}
