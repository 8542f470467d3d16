package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/orchestrator/internal/clock"
	"github.com/taskforge/orchestrator/pkg/analysis"
	"github.com/taskforge/orchestrator/pkg/conversation"
	"github.com/taskforge/orchestrator/pkg/deliverable"
	"github.com/taskforge/orchestrator/pkg/model"
	"github.com/taskforge/orchestrator/pkg/orchestrator"
	"github.com/taskforge/orchestrator/pkg/sensitivity"
	"github.com/taskforge/orchestrator/pkg/store"
	"github.com/taskforge/orchestrator/pkg/todograph"
)

func newTestOrchestrator(t *testing.T) (*orchestrator.Orchestrator, store.TaskStore) {
	t.Helper()

	clk := clock.NewReal()
	gate := sensitivity.New(nil, sensitivity.DefaultRules(), nil)
	tasks := store.NewInMemoryTaskStore()
	sessions := store.NewInMemorySessionStore()
	todoEngine := todograph.New(clk, nil, nil, nil)
	analysisPipeline := analysis.New(analysis.DefaultConfig(), gate, nil, nil, tasks, todoEngine, nil, nil, nil)
	deliverablePipeline := deliverable.New(deliverable.DefaultPipelineConfig(), gate, nil, deliverable.HeuristicScorer{}, clk, nil, nil)
	conversationOrchestrator := conversation.New(conversation.DefaultConfig(), nil, clk, nil)

	o := orchestrator.New(orchestrator.Deps{
		Gate:         gate,
		Analysis:     analysisPipeline,
		TodoEngine:   todoEngine,
		Deliverable:  deliverablePipeline,
		Conversation: conversationOrchestrator,
		Tasks:        tasks,
		Sessions:     sessions,
		Clock:        clk,
	})
	return o, tasks
}

const taskContent = "Design the new onboarding flow. " +
	"Implement the backend API for account creation. " +
	"Test the end-to-end signup experience across browsers."

func TestSubmitAnalyzeAndProgressTaskLifecycle(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	task, err := o.SubmitTask(ctx, model.WorkTask{Title: "Onboarding", Content: taskContent})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusSubmitted, task.Status)

	result, err := o.AnalyzeTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotEmpty(t, result.Todos)

	todos, err := o.GetTodos(ctx, task.ID, "")
	require.NoError(t, err)
	require.NotEmpty(t, todos)

	first := todos[0]
	impact, err := o.UpdateTodoStatus(ctx, task.ID, first.ID, model.TodoStatusInProgress, todograph.UpdateMetadata{Actor: "alice"})
	require.NoError(t, err)
	assert.NotNil(t, impact)

	progress := o.GetProgress(ctx, task.ID)
	assert.Equal(t, len(todos), progress.Total)
}

func TestSubmitTaskRejectsMissingFields(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	_, err := o.SubmitTask(context.Background(), model.WorkTask{Title: "no content"})
	assert.Error(t, err)
}

func TestSubmitDeliverableApprovesAndStores(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	task, err := o.SubmitTask(ctx, model.WorkTask{Title: "Onboarding", Content: taskContent})
	require.NoError(t, err)
	_, err = o.AnalyzeTask(ctx, task.ID)
	require.NoError(t, err)

	todos, err := o.GetTodos(ctx, task.ID, "")
	require.NoError(t, err)
	require.NotEmpty(t, todos)

	content := []byte("A thorough, well-structured deliverable covering every requirement in detail, with examples and edge cases addressed throughout.")
	d, err := o.SubmitDeliverable(ctx, todos[0].ID, "report.md", "md", "alice", content)
	require.NoError(t, err)
	assert.NotEmpty(t, d.Checksum)

	versions, err := o.GetDeliverables(ctx, todos[0].ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestConversationSessionLifecycle(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, err := o.StartSession(ctx, "user-1", "team-1", "persona-1", "")
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, sess.Status)

	msg := model.Message{ID: "msg-1", SessionID: sess.ID, Role: model.RoleUser, Content: "hello"}
	require.NoError(t, o.SendMessage(ctx, sess.ID, msg, nil))

	page, err := o.GetSessionHistory(ctx, sess.ID, model.HistoryFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Messages, 1)

	summary, err := o.EndSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, summary.SessionID)
}
