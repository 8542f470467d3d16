package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/orchestrator/pkg/audit"
)

type fakeStore struct {
	events []audit.Event
	err    error
}

func (f *fakeStore) Record(ctx context.Context, e audit.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func TestRecordForcedCompletionPersists(t *testing.T) {
	store := &fakeStore{}
	client := audit.New(store, logr.Discard(), nil)

	client.RecordForcedCompletion(context.Background(), "task-1", "todo-1", "admin@example.com", "deadline pressure", []string{"todo-0"})

	require.Len(t, store.events, 1)
	assert.Equal(t, audit.EventForcedCompletion, store.events[0].Kind)
	assert.Equal(t, "todo-1", store.events[0].TodoID)
	assert.NotEmpty(t, store.events[0].CorrelationID)
}

func TestRecordNeverPanicsOnStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("store down")}
	client := audit.New(store, logr.Discard(), nil)

	assert.NotPanics(t, func() {
		client.RecordNeedsApproval(context.Background(), "task-1", 80)
	})
}

func TestRecordWithNilStoreLogsOnly(t *testing.T) {
	client := audit.New(nil, logr.Discard(), nil)
	assert.NotPanics(t, func() {
		client.RecordDeliverableVerdict(context.Background(), "todo-1", "deliv-1", "approved")
	})
}
