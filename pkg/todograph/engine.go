package todograph

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace/noop"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/taskforge/orchestrator/internal/clock"
	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/audit"
	"github.com/taskforge/orchestrator/pkg/metrics"
	"github.com/taskforge/orchestrator/pkg/model"
)

// UpdateMetadata parameterizes UpdateStatus.
type UpdateMetadata struct {
	Actor  string
	Reason string
	// Force permits an in_progress->completed transition to bypass the
	// dependency-closure check; every forced completion is recorded in
	// statusHistory and pkg/audit (see DESIGN.md for the override policy).
	Force bool
}

// Engine is the Todo Graph Engine.
type Engine struct {
	clock   clock.Clock
	logger  *logrus.Logger
	metrics *metrics.Metrics
	tracer  oteltrace.Tracer
	audit   *audit.AuditClient

	mu     sync.RWMutex
	graphs map[string]*taskGraph // taskID -> graph

	progressMu    sync.Mutex
	progressCache map[string]model.ProgressSnapshot

	eventsMu sync.RWMutex
	subs     map[int]chan model.Event
	nextSub  int

	blockersMu sync.Mutex
	blockers   map[string]map[string]*model.Blocker // taskID -> todoID -> open/closed record
}

// New constructs an Engine. Any of metrics/auditClient/tracer/logger may
// be nil; metrics/tracing are then no-ops and audit recording is
// log-only.
func New(clk clock.Clock, logger *logrus.Logger, m *metrics.Metrics, auditClient *audit.AuditClient) *Engine {
	if clk == nil {
		clk = clock.NewReal()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		clock:         clk,
		logger:        logger,
		metrics:       m,
		tracer:        noop.NewTracerProvider().Tracer("todograph"),
		audit:         auditClient,
		graphs:        map[string]*taskGraph{},
		progressCache: map[string]model.ProgressSnapshot{},
		subs:          map[int]chan model.Event{},
		blockers:      map[string]map[string]*model.Blocker{},
	}
}

func (e *Engine) graphFor(taskID string) *taskGraph {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.graphs[taskID]
	if !ok {
		g = newTaskGraph()
		e.graphs[taskID] = g
	}
	return g
}

// SeedTodos replaces the pending todo set for a task with newly generated
// todos (AP stage 6), preserving any existing in_progress/completed todos
// as-is and linking new refinement todos to them as parents (see DESIGN.md
// for the idempotency rationale).
func (e *Engine) SeedTodos(taskID string, todos []model.TodoItem) error {
	g := e.graphFor(taskID)
	g.mu.Lock()
	defer g.mu.Unlock()

	preserved := map[string]*model.TodoItem{}
	for id, n := range g.nodes {
		if n.Status == model.TodoStatusInProgress || n.Status == model.TodoStatusCompleted {
			preserved[id] = n
		}
	}

	next := map[string]*model.TodoItem{}
	for id, n := range preserved {
		next[id] = n
	}
	for i := range todos {
		t := todos[i]
		if t.Status == "" {
			t.Status = model.TodoStatusPending
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = e.clock.Now()
		}
		t.UpdatedAt = e.clock.Now()
		next[t.ID] = &t
	}

	candidate := &taskGraph{nodes: next}
	if candidate.detectCycle() {
		return apperrors.New(apperrors.ErrorTypeValidation, "todograph: seeding todos would introduce a dependency cycle")
	}

	g.nodes = next
	e.invalidateProgress(taskID)
	return nil
}

func (e *Engine) invalidateProgress(taskID string) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	delete(e.progressCache, taskID)
}

// UpdateStatus transitions a single todo, enforcing the state machine and
// the dependency-closure, immutability, and completion-criteria checks
// below.
func (e *Engine) UpdateStatus(ctx context.Context, taskID, todoID string, newStatus model.TodoStatus, meta UpdateMetadata) (model.StatusChangeImpact, error) {
	ctx, span := e.tracer.Start(ctx, "todograph.UpdateStatus")
	defer span.End()

	g := e.graphFor(taskID)
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[todoID]
	if !ok {
		return model.StatusChangeImpact{}, apperrors.NewNotFoundError("todo")
	}

	from := node.Status
	if from == model.TodoStatusCompleted {
		return model.StatusChangeImpact{}, apperrors.New(apperrors.ErrorTypeInvalidState, "invalid_status_transition").
			WithDetails("completed todos are immutable")
	}
	if !IsLegalTransition(from, newStatus) {
		return model.StatusChangeImpact{}, apperrors.New(apperrors.ErrorTypeInvalidState, "invalid_status_transition").
			WithDetailsf("%s -> %s is not permitted", from, newStatus)
	}

	var unmetDeps []string
	forced := false
	if newStatus == model.TodoStatusCompleted {
		unmetDeps = e.unmetDependencies(g, node)
		if len(unmetDeps) > 0 {
			if !meta.Force {
				return model.StatusChangeImpact{}, apperrors.New(apperrors.ErrorTypeInvalidState, "dependencies_not_satisfied").
					WithDetailsf("unmet dependencies: %s", strings.Join(unmetDeps, ","))
			}
			forced = true
		}
		if !node.MandatoryCriteriaMet() && !meta.Force {
			return model.StatusChangeImpact{}, apperrors.New(apperrors.ErrorTypeInvalidState, "completion_criteria_unmet")
		}
	}

	now := e.clock.Now()
	node.StatusHistory = append(node.StatusHistory, model.StatusHistoryEntry{
		From:      from,
		To:        newStatus,
		At:        now,
		Actor:     meta.Actor,
		Forced:    forced,
		UnmetDeps: unmetDeps,
		Reason:    meta.Reason,
	})
	node.Status = newStatus
	node.UpdatedAt = now
	node.Version++

	if newStatus == model.TodoStatusBlocked {
		e.openBlocker(taskID, node, meta.Reason, g, now)
	} else if from == model.TodoStatusBlocked {
		e.resolveBlocker(taskID, todoID, now)
	}

	if forced && e.audit != nil {
		e.audit.RecordForcedCompletion(ctx, taskID, todoID, meta.Actor, meta.Reason, unmetDeps)
	}

	if e.metrics != nil {
		e.metrics.TodoStatusTransitions.WithLabelValues(string(from), string(newStatus)).Inc()
	}

	impact := model.StatusChangeImpact{
		TodoID:             todoID,
		AffectsCriticalPath: g.isOnCriticalPath(todoID),
		RiskLevel:          model.SeverityLow,
	}

	e.publish(model.Event{Kind: model.EventStatusChanged, TaskID: taskID, TodoID: todoID, At: now, Payload: map[string]any{"from": string(from), "to": string(newStatus)}})

	if newStatus == model.TodoStatusCompleted {
		impact.NewlyEligibleTodoIDs = e.reEvaluateDependents(g, taskID, todoID, now)
		impact.DependentTodoIDs = g.dependents()[todoID]
	}
	if impact.AffectsCriticalPath {
		impact.RiskLevel = model.SeverityHigh
		impact.RecommendedActions = append(impact.RecommendedActions, "prioritize dependent todos on the critical path")
	}

	e.invalidateProgress(taskID)
	return impact, nil
}

// unmetDependencies returns the subset of node's transitive dependency
// closure that is not yet completed.
func (e *Engine) unmetDependencies(g *taskGraph, node *model.TodoItem) []string {
	var unmet []string
	for _, depID := range g.transitiveDependencyClosure(node.ID) {
		dep, ok := g.nodes[depID]
		if !ok || dep.Status != model.TodoStatusCompleted {
			unmet = append(unmet, depID)
		}
	}
	return unmet
}

// reEvaluateDependents checks every direct dependent of a newly completed
// todo; those whose dependency closure is now fully satisfied emit an
// EligibleToStart event. The dependent itself stays
// pending.
func (e *Engine) reEvaluateDependents(g *taskGraph, taskID, completedID string, now time.Time) []string {
	var eligible []string
	for _, depID := range g.dependents()[completedID] {
		dependent, ok := g.nodes[depID]
		if !ok || dependent.Status != model.TodoStatusPending {
			continue
		}
		if len(e.unmetDependencies(g, dependent)) == 0 {
			eligible = append(eligible, depID)
			e.publish(model.Event{Kind: model.EventEligibleToStart, TaskID: taskID, TodoID: depID, At: now})
		}
	}
	return eligible
}

// Publish fans an externally-originated event (e.g. AP's NeedsApproval)
// out to subscribers through the same channel as the engine's own
// events.
func (e *Engine) Publish(evt model.Event) {
	e.publish(evt)
}

// publish fans out an event to every matching subscriber without
// blocking on slow consumers (buffered channels, dropped on overflow).
func (e *Engine) publish(evt model.Event) {
	e.eventsMu.RLock()
	defer e.eventsMu.RUnlock()
	for _, ch := range e.subs {
		select {
		case ch <- evt:
		default:
			e.logger.WithField("taskId", evt.TaskID).Warn("todograph: event subscriber channel full, dropping event")
		}
	}
}

// SubscribeEvents returns a channel of events matching filter, and an
// unsubscribe function.
func (e *Engine) SubscribeEvents(filter model.EventFilter) (<-chan model.Event, func()) {
	raw := make(chan model.Event, 64)
	filtered := make(chan model.Event, 64)

	e.eventsMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = raw
	e.eventsMu.Unlock()

	go func() {
		for evt := range raw {
			if filter.Matches(evt) {
				select {
				case filtered <- evt:
				default:
				}
			}
		}
		close(filtered)
	}()

	unsubscribe := func() {
		e.eventsMu.Lock()
		defer e.eventsMu.Unlock()
		if ch, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	}
	return filtered, unsubscribe
}

// Snapshot returns a defensive copy of every todo in a task, for callers
// (reports, facade reads) that must not mutate engine-owned state.
func (e *Engine) Snapshot(taskID string) []model.TodoItem {
	return e.graphFor(taskID).snapshot()
}
