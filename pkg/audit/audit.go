// Package audit provides a fire-and-forget AuditClient that records
// administrative overrides (forced todo completion), NeedsApproval
// decisions,
// and deliverable verdicts. It never panics and never blocks business
// logic: a store failure degrades to a logged, locally-generated
// correlation id rather than propagating an error to the caller — this
// is an administrative-override audit trail, and recording it should
// never be the reason a caller's operation fails.
package audit

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/taskforge/orchestrator/internal/clock"
)

// EventKind classifies an audit record.
type EventKind string

const (
	EventForcedCompletion  EventKind = "forced_completion"
	EventNeedsApproval     EventKind = "needs_approval"
	EventDeliverableVerdict EventKind = "deliverable_verdict"
)

// Event is one audit record.
type Event struct {
	Kind          EventKind
	CorrelationID string
	TaskID        string
	TodoID        string
	DeliverableID string
	Actor         string
	Reason        string
	Detail        map[string]string
}

// Store persists audit events. Implementations may be a database table,
// a log sink, or any durable store; AuditClient degrades gracefully if
// it errors.
type Store interface {
	Record(ctx context.Context, e Event) error
}

// AuditClient records events without ever failing the caller's
// operation. If Store.Record errors, the failure is logged with a
// secondary correlation id and swallowed.
type AuditClient struct {
	store  Store
	logger logr.Logger
	clock  clock.Clock
}

// New constructs an AuditClient. A nil store is valid: every event is
// then logged only (useful for tests and environments without a
// dedicated audit sink).
func New(store Store, logger logr.Logger, clk clock.Clock) *AuditClient {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &AuditClient{store: store, logger: logger, clock: clk}
}

// Record persists e, generating a CorrelationID if one was not supplied.
// It never returns an error to the caller; failures are logged.
func (c *AuditClient) Record(ctx context.Context, e Event) {
	if e.CorrelationID == "" {
		e.CorrelationID = uuid.NewString()
	}

	if c.store == nil {
		c.logger.Info("audit event (no store configured)", "kind", e.Kind, "correlationId", e.CorrelationID, "taskId", e.TaskID, "todoId", e.TodoID)
		return
	}

	if err := c.store.Record(ctx, e); err != nil {
		fallbackID := uuid.NewString()
		c.logger.Error(err, "audit: store.Record failed, degrading",
			"kind", e.Kind, "correlationId", e.CorrelationID, "fallbackCorrelationId", fallbackID)
	}
}

// RecordForcedCompletion records an administrative override that forced
// a todo to completed status past an unmet dependency closure.
func (c *AuditClient) RecordForcedCompletion(ctx context.Context, taskID, todoID, actor, reason string, unmetDeps []string) {
	detail := map[string]string{"unmetDeps": fmt.Sprintf("%v", unmetDeps)}
	c.Record(ctx, Event{
		Kind:   EventForcedCompletion,
		TaskID: taskID,
		TodoID: todoID,
		Actor:  actor,
		Reason: reason,
		Detail: detail,
	})
}

// RecordNeedsApproval records an AP gate-stage NeedsApproval decision.
func (c *AuditClient) RecordNeedsApproval(ctx context.Context, taskID string, score int) {
	c.Record(ctx, Event{
		Kind:   EventNeedsApproval,
		TaskID: taskID,
		Detail: map[string]string{"score": fmt.Sprintf("%d", score)},
	})
}

// RecordDeliverableVerdict records a DQM verdict.
func (c *AuditClient) RecordDeliverableVerdict(ctx context.Context, todoID, deliverableID, verdict string) {
	c.Record(ctx, Event{
		Kind:          EventDeliverableVerdict,
		TodoID:        todoID,
		DeliverableID: deliverableID,
		Detail:        map[string]string{"verdict": verdict},
	})
}
