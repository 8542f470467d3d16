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

func TestSessionStorePutGetRoundTrip(t *testing.T) {
	s := store.NewInMemorySessionStore()
	ctx := context.Background()

	sess := model.Session{ID: "s1", UserID: "u1", Status: model.SessionActive}
	require.NoError(t, s.PutSession(ctx, sess))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, got.Status)
	assert.Equal(t, 1, got.Version)
}

func TestSessionStoreUpdateCAS(t *testing.T) {
	s := store.NewInMemorySessionStore()
	ctx := context.Background()
	require.NoError(t, s.PutSession(ctx, model.Session{ID: "s1", Status: model.SessionActive}))

	stale := model.Session{ID: "s1", Status: model.SessionEnded, Version: 7}
	err := s.UpdateSession(ctx, stale)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestSessionStoreMessagesOrderedByTimestampThenSeqNo(t *testing.T) {
	s := store.NewInMemorySessionStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.AppendMessage(ctx, model.Message{ID: "m2", SessionID: "s1", Timestamp: base, SeqNo: 2, Content: "second"}))
	require.NoError(t, s.AppendMessage(ctx, model.Message{ID: "m1", SessionID: "s1", Timestamp: base, SeqNo: 1, Content: "first"}))
	require.NoError(t, s.AppendMessage(ctx, model.Message{ID: "m3", SessionID: "s1", Timestamp: base.Add(time.Second), SeqNo: 3, Content: "third"}))

	msgs, total, err := s.QueryMessages(ctx, "s1", nil, nil, nil, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestSessionStoreMessagesFilteredByBranch(t *testing.T) {
	s := store.NewInMemorySessionStore()
	ctx := context.Background()
	branch := "b1"
	base := time.Now()

	require.NoError(t, s.AppendMessage(ctx, model.Message{ID: "m1", SessionID: "s1", Timestamp: base, SeqNo: 1}))
	require.NoError(t, s.AppendMessage(ctx, model.Message{ID: "m2", SessionID: "s1", Timestamp: base.Add(time.Second), SeqNo: 2, BranchID: &branch}))

	main, _, err := s.QueryMessages(ctx, "s1", nil, nil, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, main, 1)
	assert.Equal(t, "m1", main[0].ID)

	onBranch, _, err := s.QueryMessages(ctx, "s1", &branch, nil, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, onBranch, 1)
	assert.Equal(t, "m2", onBranch[0].ID)
}

func TestSessionStoreLatestSummaryPerKind(t *testing.T) {
	s := store.NewInMemorySessionStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.PutSummary(ctx, model.Summary{ID: "sum1", SessionID: "s1", Kind: model.SummaryPeriodic, CreatedAt: now}))
	require.NoError(t, s.PutSummary(ctx, model.Summary{ID: "sum2", SessionID: "s1", Kind: model.SummaryPeriodic, CreatedAt: now.Add(time.Minute)}))

	latest, err := s.GetLatestSummary(ctx, "s1", model.SummaryPeriodic)
	require.NoError(t, err)
	assert.Equal(t, "sum2", latest.ID)

	_, err = s.GetLatestSummary(ctx, "s1", model.SummarySession)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
