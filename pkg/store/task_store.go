// Package store implements the persistence layer: a key/value +
// secondary-index store with conditional (compare-and-set) updates on a
// version field, plus TTL-based expiry. Each store ships two
// implementations: an in-memory one (tests, and the fallback path used
// when no database is configured) and a Postgres one (sqlx+pgx, goose
// migrations).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/model"
)

// TaskStore persists WorkTask, TodoItem, Deliverable, and
// TaskAnalysisResult records, indexed by the access patterns the
// orchestrator needs: (teamId, status), (assignee, dueDate), (taskId,
// status). It also
// satisfies analysis.ResultStore so a *store.TaskStore (interface value)
// can be handed directly to analysis.New.
type TaskStore interface {
	PutTask(ctx context.Context, t model.WorkTask) error
	GetTask(ctx context.Context, id string) (model.WorkTask, error)
	UpdateTask(ctx context.Context, t model.WorkTask) error
	QueryTasksByTeamStatus(ctx context.Context, team string, status model.TaskStatus) ([]model.WorkTask, error)

	PutTodo(ctx context.Context, t model.TodoItem) error
	GetTodo(ctx context.Context, id string) (model.TodoItem, error)
	UpdateTodo(ctx context.Context, t model.TodoItem) error
	QueryTodosByTaskStatus(ctx context.Context, taskID string, status model.TodoStatus) ([]model.TodoItem, error)
	QueryTodosByAssigneeDueDate(ctx context.Context, assignee string, dueBefore time.Time) ([]model.TodoItem, error)

	PutDeliverable(ctx context.Context, d model.Deliverable) error
	GetDeliverable(ctx context.Context, id string) (model.Deliverable, error)
	UpdateDeliverable(ctx context.Context, d model.Deliverable) error
	QueryDeliverablesByTodo(ctx context.Context, todoID string) ([]model.Deliverable, error)

	SaveAnalysisResult(ctx context.Context, r model.TaskAnalysisResult) error
	NextVersion(ctx context.Context, taskID string) (int, error)
	GetLatestAnalysisResult(ctx context.Context, taskID string) (model.TaskAnalysisResult, error)
}

// InMemoryTaskStore is a mutex-guarded, map-backed TaskStore. Production
// deployments use PostgresTaskStore; this implementation backs tests and
// the degraded path when the database is unreachable (the same
// fallback-to-in-memory shape as
// pkg/orchestration/dependency.FallbackProvider).
type InMemoryTaskStore struct {
	mu sync.RWMutex

	tasks        map[string]model.WorkTask
	todos        map[string]model.TodoItem
	deliverables map[string]model.Deliverable
	analyses     map[string][]model.TaskAnalysisResult // taskID -> versions, ascending
}

// NewInMemoryTaskStore constructs an empty InMemoryTaskStore.
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks:        map[string]model.WorkTask{},
		todos:        map[string]model.TodoItem{},
		deliverables: map[string]model.Deliverable{},
		analyses:     map[string][]model.TaskAnalysisResult{},
	}
}

func (s *InMemoryTaskStore) PutTask(_ context.Context, t model.WorkTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Version == 0 {
		t.Version = 1
	}
	s.tasks[t.ID] = t
	return nil
}

func (s *InMemoryTaskStore) GetTask(_ context.Context, id string) (model.WorkTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.WorkTask{}, apperrors.NewNotFoundError("task")
	}
	return t, nil
}

// UpdateTask performs a compare-and-set on t.Version against the stored
// record, per the documented "conditional updates (compare-and-set on a
// version field)". The caller passes the version it last read; on
// success the stored version is incremented.
func (s *InMemoryTaskStore) UpdateTask(_ context.Context, t model.WorkTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tasks[t.ID]
	if !ok {
		return apperrors.NewNotFoundError("task")
	}
	if existing.Version != t.Version {
		return apperrors.NewConflictError("task version mismatch")
	}
	t.Version++
	s.tasks[t.ID] = t
	return nil
}

func (s *InMemoryTaskStore) QueryTasksByTeamStatus(_ context.Context, team string, status model.TaskStatus) ([]model.WorkTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.WorkTask
	for _, t := range s.tasks {
		if t.Team == team && t.Status == status {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryTaskStore) PutTodo(_ context.Context, t model.TodoItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Version == 0 {
		t.Version = 1
	}
	s.todos[t.ID] = t
	return nil
}

func (s *InMemoryTaskStore) GetTodo(_ context.Context, id string) (model.TodoItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.todos[id]
	if !ok {
		return model.TodoItem{}, apperrors.NewNotFoundError("todo")
	}
	return t, nil
}

func (s *InMemoryTaskStore) UpdateTodo(_ context.Context, t model.TodoItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.todos[t.ID]
	if !ok {
		return apperrors.NewNotFoundError("todo")
	}
	if existing.Version != t.Version {
		return apperrors.NewConflictError("todo version mismatch")
	}
	t.Version++
	s.todos[t.ID] = t
	return nil
}

func (s *InMemoryTaskStore) QueryTodosByTaskStatus(_ context.Context, taskID string, status model.TodoStatus) ([]model.TodoItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TodoItem
	for _, t := range s.todos {
		if t.TaskID == taskID && (status == "" || t.Status == status) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryTaskStore) QueryTodosByAssigneeDueDate(_ context.Context, assignee string, dueBefore time.Time) ([]model.TodoItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TodoItem
	for _, t := range s.todos {
		if t.Assignee != assignee || t.DueDate == nil {
			continue
		}
		if t.DueDate.Before(dueBefore) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out, nil
}

func (s *InMemoryTaskStore) PutDeliverable(_ context.Context, d model.Deliverable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.Version == 0 {
		d.Version = 1
	}
	s.deliverables[d.ID] = d
	return nil
}

func (s *InMemoryTaskStore) GetDeliverable(_ context.Context, id string) (model.Deliverable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deliverables[id]
	if !ok {
		return model.Deliverable{}, apperrors.NewNotFoundError("deliverable")
	}
	return d, nil
}

func (s *InMemoryTaskStore) UpdateDeliverable(_ context.Context, d model.Deliverable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.deliverables[d.ID]
	if !ok {
		return apperrors.NewNotFoundError("deliverable")
	}
	if existing.Version != d.Version {
		return apperrors.NewConflictError("deliverable version mismatch")
	}
	d.Version++
	s.deliverables[d.ID] = d
	return nil
}

// QueryDeliverablesByTodo lets the caller enforce the one-active-version
// rule implicitly by returning every
// version in submission order; callers apply the "one non-terminal
// version per (todoId, fileName)" rule when deciding whether a new
// upload is permitted.
func (s *InMemoryTaskStore) QueryDeliverablesByTodo(_ context.Context, todoID string) ([]model.Deliverable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Deliverable
	for _, d := range s.deliverables {
		if d.TodoID == todoID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// SaveAnalysisResult appends a new immutable version; TaskAnalysisResult
// records are never mutated in place, only superseded by a later version.
func (s *InMemoryTaskStore) SaveAnalysisResult(_ context.Context, r model.TaskAnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[r.TaskID] = append(s.analyses[r.TaskID], r)
	return nil
}

// NextVersion returns the next monotonically increasing analysis version
// for taskID.
func (s *InMemoryTaskStore) NextVersion(_ context.Context, taskID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.analyses[taskID]) + 1, nil
}

func (s *InMemoryTaskStore) GetLatestAnalysisResult(_ context.Context, taskID string) (model.TaskAnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.analyses[taskID]
	if len(versions) == 0 {
		return model.TaskAnalysisResult{}, apperrors.NewNotFoundError("task analysis result")
	}
	return versions[len(versions)-1], nil
}
