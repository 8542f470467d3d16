// Package orchestrator composes the Sensitivity Gate, Knowledge &
// Workgroup Resolver, Analysis Pipeline, Todo Graph Engine, Deliverable
// Quality Machine, and Conversation Orchestrator behind one facade. It
// is the only thing cmd/server talks to: every exposed operation here
// persists through pkg/store, runs the appropriate component, and fans
// out events/audit/notifications/metrics consistently so no caller has
// to remember the wiring order.
package orchestrator

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/taskforge/orchestrator/internal/clock"
	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/analysis"
	"github.com/taskforge/orchestrator/pkg/audit"
	"github.com/taskforge/orchestrator/pkg/conversation"
	"github.com/taskforge/orchestrator/pkg/deliverable"
	"github.com/taskforge/orchestrator/pkg/knowledge"
	"github.com/taskforge/orchestrator/pkg/metrics"
	"github.com/taskforge/orchestrator/pkg/model"
	"github.com/taskforge/orchestrator/pkg/notify"
	"github.com/taskforge/orchestrator/pkg/objectstore"
	"github.com/taskforge/orchestrator/pkg/sensitivity"
	"github.com/taskforge/orchestrator/pkg/store"
	"github.com/taskforge/orchestrator/pkg/todograph"
)

const deliverablesBucket = "deliverables"

// Deps bundles every collaborator the facade wires together. All fields
// are required except Notifier, which may be nil (notifications are
// then skipped rather than failing the calling operation).
type Deps struct {
	Gate          *sensitivity.Gate
	Resolver      *knowledge.Resolver
	Analysis      *analysis.Pipeline
	TodoEngine    *todograph.Engine
	Deliverable   *deliverable.Pipeline
	Conversation  *conversation.Orchestrator
	Tasks         store.TaskStore
	Sessions      store.SessionStore
	Notifier      *notify.Router
	Audit         *audit.AuditClient
	Metrics       *metrics.Metrics
	Clock         clock.Clock
	Logger        *logrus.Logger

	// Objects is optional: a nil Objects skips durable payload storage
	// (validation/quality assessment still runs against the in-memory
	// content the caller supplied), matching the degrade-not-abort
	// posture used for every other optional collaborator here.
	Objects objectstore.Store

	// ProgressCache and NotifyDedup are optional cross-instance caches.
	// Leave nil to skip caching (Progress is still computed correctly on
	// every call; notifications are still sent on every eligible update).
	ProgressCache Cache[model.ProgressSnapshot]
	NotifyDedup   Cache[bool]
}

// Orchestrator is the facade every transport (HTTP, CLI, tests) drives.
type Orchestrator struct {
	gate         *sensitivity.Gate
	resolver     *knowledge.Resolver
	analysis     *analysis.Pipeline
	todoEngine   *todograph.Engine
	deliverable  *deliverable.Pipeline
	conversation *conversation.Orchestrator
	tasks        store.TaskStore
	sessions     store.SessionStore
	notifier     *notify.Router
	audit        *audit.AuditClient
	metrics      *metrics.Metrics
	clock        clock.Clock
	logger       *logrus.Logger
	objects      objectstore.Store

	progressCache Cache[model.ProgressSnapshot]
	notifyDedup   Cache[bool]
}

// New constructs an Orchestrator from deps. Clock and Logger default to
// a real clock and a discard-level logger when left zero.
func New(deps Deps) *Orchestrator {
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewReal()
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		gate:         deps.Gate,
		resolver:     deps.Resolver,
		analysis:     deps.Analysis,
		todoEngine:   deps.TodoEngine,
		deliverable:  deps.Deliverable,
		conversation: deps.Conversation,
		tasks:        deps.Tasks,
		sessions:     deps.Sessions,
		notifier:     deps.Notifier,
		audit:        deps.Audit,
		metrics:      deps.Metrics,
		objects:      deps.Objects,
		clock:        clk,
		logger:       logger,

		progressCache: deps.ProgressCache,
		notifyDedup:   deps.NotifyDedup,
	}
}

// SubmitTask runs the Sensitivity Gate against task.Content, sets the
// resulting status (submitted or needs_approval) and score, and
// persists the task. The caller's ID/timestamps are ignored in favor of
// server-assigned values.
func (o *Orchestrator) SubmitTask(ctx context.Context, task model.WorkTask) (model.WorkTask, error) {
	if task.Title == "" {
		return model.WorkTask{}, apperrors.NewValidationError("title is required")
	}
	if task.Content == "" {
		return model.WorkTask{}, apperrors.NewValidationError("content is required")
	}

	now := o.clock.Now()
	task.ID = "task-" + uuid.NewString()
	task.Status = model.TaskStatusSubmitted
	task.CreatedAt = now
	task.UpdatedAt = now

	if o.gate != nil {
		scan, err := o.gate.Scan(ctx, task.Content, nil)
		if err != nil {
			return model.WorkTask{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "orchestrator: sensitivity scan failed")
		}
		task.SensitivityScore = scan.Score
		if scan.RequiresApproval {
			task.Status = model.TaskStatusAnalyzing
			if o.audit != nil {
				o.audit.RecordNeedsApproval(ctx, task.ID, scan.Score)
			}
		}
	}

	if err := o.tasks.PutTask(ctx, task); err != nil {
		return model.WorkTask{}, err
	}
	return task, nil
}

// GetTask returns the task by id.
func (o *Orchestrator) GetTask(ctx context.Context, taskID string) (model.WorkTask, error) {
	return o.tasks.GetTask(ctx, taskID)
}

// ListTasks returns every task matching team and status.
func (o *Orchestrator) ListTasks(ctx context.Context, team string, status model.TaskStatus) ([]model.WorkTask, error) {
	return o.tasks.QueryTasksByTeamStatus(ctx, team, status)
}

// ApproveTaskSubmission clears a task's sensitivity-gate hold, letting
// AnalyzeTask proceed.
func (o *Orchestrator) ApproveTaskSubmission(ctx context.Context, taskID string) (model.WorkTask, error) {
	task, err := o.tasks.GetTask(ctx, taskID)
	if err != nil {
		return model.WorkTask{}, err
	}
	if task.Status != model.TaskStatusAnalyzing {
		return model.WorkTask{}, apperrors.NewInvalidStateError("task is not awaiting approval")
	}
	task.Status = model.TaskStatusSubmitted
	task.UpdatedAt = o.clock.Now()
	if err := o.tasks.UpdateTask(ctx, task); err != nil {
		return model.WorkTask{}, err
	}
	task.Version++
	return task, nil
}

// AnalyzeTask runs the Analysis Pipeline against taskID, seeds the
// resulting todo DAG into the Todo Graph Engine, persists every
// generated TodoItem, and advances the task to analyzed.
func (o *Orchestrator) AnalyzeTask(ctx context.Context, taskID string) (model.TaskAnalysisResult, error) {
	task, err := o.tasks.GetTask(ctx, taskID)
	if err != nil {
		return model.TaskAnalysisResult{}, err
	}

	result, err := o.analysis.Analyze(ctx, task)
	if err != nil {
		return model.TaskAnalysisResult{}, err
	}

	if o.todoEngine != nil {
		if err := o.todoEngine.SeedTodos(task.ID, result.Todos); err != nil {
			return model.TaskAnalysisResult{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "orchestrator: seed todos failed")
		}
	}
	for _, todo := range result.Todos {
		if err := o.tasks.PutTodo(ctx, todo); err != nil {
			return model.TaskAnalysisResult{}, err
		}
	}

	task.Status = model.TaskStatusAnalyzed
	task.UpdatedAt = o.clock.Now()
	if err := o.tasks.UpdateTask(ctx, task); err != nil {
		return model.TaskAnalysisResult{}, err
	}

	if o.metrics != nil {
		o.metrics.AnalysisDuration.WithLabelValues("total").Observe(time.Since(result.GeneratedAt).Seconds())
	}
	return result, nil
}

// GetTodos returns every todo for taskID, optionally filtered by status
// (empty string means no filter).
func (o *Orchestrator) GetTodos(ctx context.Context, taskID string, status model.TodoStatus) ([]model.TodoItem, error) {
	return o.tasks.QueryTodosByTaskStatus(ctx, taskID, status)
}

// UpdateTodoStatus transitions todoID within taskID through the Todo
// Graph Engine's state machine, persists the resulting todo, and
// notifies the assignee when the update unblocks new work.
func (o *Orchestrator) UpdateTodoStatus(ctx context.Context, taskID, todoID string, newStatus model.TodoStatus, meta todograph.UpdateMetadata) (model.StatusChangeImpact, error) {
	impact, err := o.todoEngine.UpdateStatus(ctx, taskID, todoID, newStatus, meta)
	if err != nil {
		return model.StatusChangeImpact{}, err
	}

	todo, err := o.tasks.GetTodo(ctx, todoID)
	if err != nil {
		return model.StatusChangeImpact{}, err
	}
	todo.Status = newStatus
	todo.UpdatedAt = o.clock.Now()
	if err := o.tasks.UpdateTodo(ctx, todo); err != nil {
		return model.StatusChangeImpact{}, err
	}

	if o.progressCache != nil {
		_ = o.progressCache.Delete(ctx, taskID)
	}

	if meta.Force && o.audit != nil {
		o.audit.RecordForcedCompletion(ctx, taskID, todoID, meta.Actor, meta.Reason, impact.DependentTodoIDs)
	}
	if o.notifier != nil && len(impact.NewlyEligibleTodoIDs) > 0 && todo.Assignee != "" {
		dedupKey := "unblocked:" + todoID
		if o.notifyOnce(ctx, dedupKey) {
			_ = o.notifier.Send(ctx, "todo-"+todoID, todo.Assignee, notify.ChannelSlack,
				"Dependent work is now eligible to start", notify.UrgencyNormal)
		}
	}
	return impact, nil
}

// SubmitDeliverable runs content through the Deliverable Quality
// Machine, persists the resulting Deliverable, and feeds an approved
// verdict's completion criteria back into the Todo Graph Engine.
func (o *Orchestrator) SubmitDeliverable(ctx context.Context, todoID, fileName, fileType, submitter string, content []byte) (model.Deliverable, error) {
	todo, err := o.tasks.GetTodo(ctx, todoID)
	if err != nil {
		return model.Deliverable{}, err
	}

	existing, err := o.tasks.QueryDeliverablesByTodo(ctx, todoID)
	if err != nil {
		return model.Deliverable{}, err
	}
	version := 1
	var previousVersionID *string
	for _, d := range existing {
		if d.FileName != fileName {
			continue
		}
		if d.Status == model.DeliverableSubmitted || d.Status == model.DeliverableValidating || d.Status == model.DeliverableNeedsRevision {
			return model.Deliverable{}, apperrors.NewConflictError("a non-terminal version of this deliverable is already pending")
		}
		if d.Version >= version {
			version = d.Version + 1
			id := d.ID
			previousVersionID = &id
		}
	}

	sum := sha256.Sum256(content)
	d := &model.Deliverable{
		ID:                "deliverable-" + uuid.NewString(),
		TodoID:            todoID,
		FileName:          fileName,
		FileType:          fileType,
		Size:              int64(len(content)),
		Submitter:         submitter,
		SubmittedAt:       o.clock.Now(),
		Version:           version,
		PreviousVersionID: previousVersionID,
		Status:            model.DeliverableSubmitted,
		Checksum:          hex.EncodeToString(sum[:]),
	}

	processed, err := o.deliverable.Process(ctx, d, string(content))
	if err != nil {
		return model.Deliverable{}, err
	}

	if o.objects != nil {
		storageKey := processed.ID + "/" + fileName
		if err := o.objects.Put(ctx, deliverablesBucket, storageKey, bytes.NewReader(content)); err != nil {
			return model.Deliverable{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "orchestrator: deliverable storage failed")
		}
		processed.StorageKey = storageKey
	}

	if err := o.tasks.PutDeliverable(ctx, *processed); err != nil {
		return model.Deliverable{}, err
	}

	if o.metrics != nil {
		o.metrics.DeliverableVerdicts.WithLabelValues(string(processed.Status)).Inc()
	}
	if o.audit != nil {
		o.audit.RecordDeliverableVerdict(ctx, todoID, processed.ID, string(processed.Status))
	}

	if processed.Status == model.DeliverableApproved && o.todoEngine != nil {
		for i := range todo.CompletionCriteria {
			if todo.CompletionCriteria[i].SourceID == processed.ID {
				todo.CompletionCriteria[i].Met = true
			}
		}
		_ = o.tasks.UpdateTodo(ctx, todo)
	}

	return *processed, nil
}

// GetDeliverables returns every deliverable version submitted for todoID.
func (o *Orchestrator) GetDeliverables(ctx context.Context, todoID string) ([]model.Deliverable, error) {
	return o.tasks.QueryDeliverablesByTodo(ctx, todoID)
}

// GetDeliverableStatus returns a single deliverable by id.
func (o *Orchestrator) GetDeliverableStatus(ctx context.Context, deliverableID string) (model.Deliverable, error) {
	return o.tasks.GetDeliverable(ctx, deliverableID)
}

// GetProgress returns the cached-or-computed progress snapshot for taskID.
func (o *Orchestrator) GetProgress(ctx context.Context, taskID string) model.ProgressSnapshot {
	return o.cachedProgress(ctx, taskID)
}

// GetBlockers returns every open blocker for taskID.
func (o *Orchestrator) GetBlockers(_ context.Context, taskID string) []model.Blocker {
	return o.todoEngine.IdentifyBlockers(taskID)
}

// GenerateReport assembles a ProgressReport for taskID over rng.
func (o *Orchestrator) GenerateReport(_ context.Context, taskID string, rng model.ReportRange, cfg model.ReportConfig) model.ProgressReport {
	return o.todoEngine.GenerateReport(taskID, rng, cfg)
}

// StartSession opens a new conversation session.
func (o *Orchestrator) StartSession(ctx context.Context, userID, teamID, personaID, initialContext string) (model.Session, error) {
	sess := o.conversation.StartSession(userID, teamID, personaID, initialContext)
	if err := o.sessions.PutSession(ctx, sess); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// SendMessage appends msg to sessionID (optionally on branchID) and
// mirrors it into durable storage.
func (o *Orchestrator) SendMessage(ctx context.Context, sessionID string, msg model.Message, branchID *string) error {
	if err := o.conversation.AppendMessage(sessionID, msg, branchID); err != nil {
		return err
	}
	return o.sessions.AppendMessage(ctx, msg)
}

// GetSessionHistory returns a page of sessionID's message history.
func (o *Orchestrator) GetSessionHistory(_ context.Context, sessionID string, filter model.HistoryFilter) (model.HistoryPage, error) {
	return o.conversation.GetHistory(sessionID, filter)
}

// CreateBranch forks a new named branch from parentMessageID.
func (o *Orchestrator) CreateBranch(_ context.Context, sessionID, parentMessageID, name, description string) (model.Branch, error) {
	return o.conversation.CreateBranch(sessionID, parentMessageID, name, description)
}

// GenerateSummary produces and persists a Summary for sessionID.
func (o *Orchestrator) GenerateSummary(ctx context.Context, sessionID string, kind model.SummaryKind, rng *model.TimeRange) (model.Summary, error) {
	summary, err := o.conversation.GenerateSummary(ctx, sessionID, kind, rng)
	if err != nil {
		return model.Summary{}, err
	}
	if err := o.sessions.PutSummary(ctx, summary); err != nil {
		return model.Summary{}, err
	}
	return summary, nil
}

// EndSession closes sessionID, generating a final session summary.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) (model.Summary, error) {
	summary, err := o.conversation.EndSession(ctx, sessionID)
	if err != nil {
		return model.Summary{}, err
	}
	if err := o.sessions.PutSummary(ctx, summary); err != nil {
		return model.Summary{}, err
	}
	sess, err := o.sessions.GetSession(ctx, sessionID)
	if err == nil {
		sess.Status = model.SessionEnded
		_ = o.sessions.UpdateSession(ctx, sess)
	}
	return summary, nil
}

// SubscribeEvents returns a channel of todo-graph events matching filter
// and an unsubscribe function the caller must invoke when done.
func (o *Orchestrator) SubscribeEvents(filter model.EventFilter) (<-chan model.Event, func()) {
	return o.todoEngine.SubscribeEvents(filter)
}

// SweepExpiredSessions promotes every idle session to expired. Intended
// to be called periodically by a background goroutine; see
// conversation.Orchestrator.RunSweeper.
func (o *Orchestrator) SweepExpiredSessions() int {
	return o.conversation.SweepExpiredSessions()
}
