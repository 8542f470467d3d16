package conversation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/orchestrator/internal/clock"
	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/conversation"
	"github.com/taskforge/orchestrator/pkg/model"
)

func newOrchestrator(clk clock.Clock) *conversation.Orchestrator {
	return conversation.New(conversation.DefaultConfig(), nil, clk, nil)
}

func TestAppendMessageOrdersByMonotonicSeqNo(t *testing.T) {
	fake := clock.NewFake(time.Now())
	o := newOrchestrator(fake)
	sess := o.StartSession("alice", "team-a", "default", "")

	require.NoError(t, o.AppendMessage(sess.ID, model.Message{Role: model.RoleUser, Content: "hello"}, nil))
	require.NoError(t, o.AppendMessage(sess.ID, model.Message{Role: model.RoleAgent, Content: "hi there"}, nil))

	page, err := o.GetHistory(sess.ID, model.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, int64(1), page.Messages[0].SeqNo)
	assert.Equal(t, int64(2), page.Messages[1].SeqNo)
}

func TestBranchingIsolatesHistory(t *testing.T) {
	fake := clock.NewFake(time.Now())
	o := newOrchestrator(fake)
	sess := o.StartSession("alice", "team-a", "default", "")

	require.NoError(t, o.AppendMessage(sess.ID, model.Message{ID: "m1", Role: model.RoleUser, Content: "M1"}, nil))
	require.NoError(t, o.AppendMessage(sess.ID, model.Message{ID: "m2", Role: model.RoleUser, Content: "M2"}, nil))

	branch, err := o.CreateBranch(sess.ID, "m2", "alt-path", "")
	require.NoError(t, err)

	require.NoError(t, o.AppendMessage(sess.ID, model.Message{ID: "m3", Role: model.RoleUser, Content: "M3"}, nil))
	require.NoError(t, o.AppendMessage(sess.ID, model.Message{ID: "m4", Role: model.RoleUser, Content: "M4"}, &branch.ID))

	mainHistory, err := o.GetHistory(sess.ID, model.HistoryFilter{})
	require.NoError(t, err)
	var mainIDs []string
	for _, m := range mainHistory.Messages {
		mainIDs = append(mainIDs, m.ID)
	}
	assert.Equal(t, []string{"m1", "m2", "m3"}, mainIDs)

	branchHistory, err := o.GetHistory(sess.ID, model.HistoryFilter{BranchID: &branch.ID})
	require.NoError(t, err)
	var branchIDs []string
	for _, m := range branchHistory.Messages {
		branchIDs = append(branchIDs, m.ID)
	}
	assert.Equal(t, []string{"m1", "m2", "m4"}, branchIDs)
}

func TestAppendMessageFailsAfterExpiry(t *testing.T) {
	fake := clock.NewFake(time.Now())
	cfg := conversation.DefaultConfig()
	cfg.IdleExpiry = time.Hour
	o := conversation.New(cfg, nil, fake, nil)

	sess := o.StartSession("alice", "team-a", "default", "")
	fake.Advance(2 * time.Hour)

	err := o.AppendMessage(sess.ID, model.Message{Role: model.RoleUser, Content: "still here?"}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidState))
}

func TestPeriodicSummaryTriggersAtThreshold(t *testing.T) {
	fake := clock.NewFake(time.Now())
	cfg := conversation.DefaultConfig()
	cfg.SummaryThreshold = 3
	o := conversation.New(cfg, nil, fake, nil)

	sess := o.StartSession("alice", "team-a", "default", "")
	for i := 0; i < 3; i++ {
		require.NoError(t, o.AppendMessage(sess.ID, model.Message{Role: model.RoleUser, Content: "message content here"}, nil))
	}

	page, err := o.GetHistory(sess.ID, model.HistoryFilter{})
	require.NoError(t, err)
	require.NotNil(t, page.LatestSummary)
	assert.Equal(t, model.SummaryPeriodic, page.LatestSummary.Kind)
}

func TestEndSessionProducesSessionSummary(t *testing.T) {
	fake := clock.NewFake(time.Now())
	o := newOrchestrator(fake)
	sess := o.StartSession("alice", "team-a", "default", "")
	require.NoError(t, o.AppendMessage(sess.ID, model.Message{Role: model.RoleUser, Content: "we need to follow up on billing"}, nil))

	summary, err := o.EndSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SummarySession, summary.Kind)

	err = o.AppendMessage(sess.ID, model.Message{Role: model.RoleUser, Content: "too late"}, nil)
	require.Error(t, err)
}

func TestBuildMemoryContextAssemblesAllFour(t *testing.T) {
	fake := clock.NewFake(time.Now())
	o := newOrchestrator(fake)
	sess := o.StartSession("alice", "team-a", "default", "")

	require.NoError(t, o.AppendMessage(sess.ID, model.Message{
		Role: model.RoleUser, Content: "we should investigate the outage", References: []string{"doc-1"},
	}, nil))
	require.NoError(t, o.AppendMessage(sess.ID, model.Message{
		Role: model.RoleAgent, Content: "here is what I found", References: []string{"doc-1", "doc-2"},
	}, nil))

	_, err := o.GenerateSummary(context.Background(), sess.ID, model.SummaryPeriodic, nil)
	require.NoError(t, err)

	memCtx, err := o.BuildMemoryContext(sess.ID)
	require.NoError(t, err)
	assert.Len(t, memCtx.ShortTerm, 2)
	assert.Len(t, memCtx.LongTerm, 1)
	assert.ElementsMatch(t, []string{"doc-1", "doc-2"}, memCtx.Semantic)
	assert.NotEmpty(t, memCtx.Procedural)
}

func TestSweepExpiredSessionsPromotesIdleSessions(t *testing.T) {
	fake := clock.NewFake(time.Now())
	cfg := conversation.DefaultConfig()
	cfg.IdleExpiry = time.Hour
	o := conversation.New(cfg, nil, fake, nil)

	o.StartSession("alice", "team-a", "default", "")
	fake.Advance(2 * time.Hour)

	swept := o.SweepExpiredSessions()
	assert.Equal(t, 1, swept)
}
