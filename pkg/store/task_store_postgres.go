package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/model"
)

// PostgresTaskStore is the production TaskStore, backed by sqlx over the
// pgx stdlib driver ("DD-010: Migrated from lib/pq" to jackc/pgx/v5,
// wired through jmoiron/sqlx). Nested, variable-shape fields (Tags,
// Dependencies, StatusHistory,
// CompletionCriteria, analysis result bodies) are stored as JSONB and
// round-tripped through encoding/json, per the documented typed-envelope
// guidance — the columns themselves stay narrow and indexable.
type PostgresTaskStore struct {
	db *sqlx.DB
}

// NewPostgresTaskStore wraps an already-connected *sqlx.DB. Use
// store.ConnectPostgres to obtain one with migrations applied.
func NewPostgresTaskStore(db *sqlx.DB) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

type taskRow struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	Content          string         `db:"content"`
	Submitter        string         `db:"submitter"`
	Team             string         `db:"team"`
	Priority         string         `db:"priority"`
	Category         string         `db:"category"`
	Tags             []byte         `db:"tags"`
	Status           string         `db:"status"`
	SensitivityScore int            `db:"sensitivity_score"`
	RetentionTTL     sql.NullTime   `db:"retention_ttl"`
	Version          int            `db:"version"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func taskToRow(t model.WorkTask) (taskRow, error) {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return taskRow{}, err
	}
	row := taskRow{
		ID: t.ID, Title: t.Title, Description: t.Description, Content: t.Content,
		Submitter: t.Submitter, Team: t.Team, Priority: string(t.Priority),
		Category: t.Category, Tags: tags, Status: string(t.Status),
		SensitivityScore: t.SensitivityScore, Version: t.Version,
		CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
	if t.RetentionTTL != nil {
		row.RetentionTTL = sql.NullTime{Time: *t.RetentionTTL, Valid: true}
	}
	return row, nil
}

func rowToTask(row taskRow) (model.WorkTask, error) {
	var tags []string
	if len(row.Tags) > 0 {
		if err := json.Unmarshal(row.Tags, &tags); err != nil {
			return model.WorkTask{}, err
		}
	}
	t := model.WorkTask{
		ID: row.ID, Title: row.Title, Description: row.Description, Content: row.Content,
		Submitter: row.Submitter, Team: row.Team, Priority: model.Priority(row.Priority),
		Category: row.Category, Tags: tags, Status: model.TaskStatus(row.Status),
		SensitivityScore: row.SensitivityScore, Version: row.Version,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
	if row.RetentionTTL.Valid {
		ttl := row.RetentionTTL.Time
		t.RetentionTTL = &ttl
	}
	return t, nil
}

func (s *PostgresTaskStore) PutTask(ctx context.Context, t model.WorkTask) error {
	if t.Version == 0 {
		t.Version = 1
	}
	row, err := taskToRow(t)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: marshal task failed")
	}
	_, err = s.db.NamedExecContext(ctx, `
INSERT INTO work_tasks (id, title, description, content, submitter, team, priority, category, tags, status, sensitivity_score, retention_ttl, version, created_at, updated_at)
VALUES (:id, :title, :description, :content, :submitter, :team, :priority, :category, :tags, :status, :sensitivity_score, :retention_ttl, :version, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title, description = EXCLUDED.description, content = EXCLUDED.content,
  status = EXCLUDED.status, sensitivity_score = EXCLUDED.sensitivity_score,
  tags = EXCLUDED.tags, updated_at = EXCLUDED.updated_at, version = EXCLUDED.version
`, row)
	if err != nil {
		return apperrors.NewDatabaseError("put_task", err)
	}
	return nil
}

func (s *PostgresTaskStore) GetTask(ctx context.Context, id string) (model.WorkTask, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM work_tasks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WorkTask{}, apperrors.NewNotFoundError("task")
	}
	if err != nil {
		return model.WorkTask{}, apperrors.NewDatabaseError("get_task", err)
	}
	return rowToTask(row)
}

// UpdateTask performs a compare-and-set on t.Version via
// "WHERE version = $n", per the documented conditional-update requirement.
func (s *PostgresTaskStore) UpdateTask(ctx context.Context, t model.WorkTask) error {
	row, err := taskToRow(t)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: marshal task failed")
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE work_tasks SET title=$1, description=$2, content=$3, status=$4, tags=$5,
  sensitivity_score=$6, updated_at=$7, version=version+1
WHERE id=$8 AND version=$9
`, row.Title, row.Description, row.Content, row.Status, row.Tags, row.SensitivityScore, row.UpdatedAt, row.ID, row.Version)
	if err != nil {
		return apperrors.NewDatabaseError("update_task", err)
	}
	return checkCASResult(res, "task")
}

func checkCASResult(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseError("rows_affected", err)
	}
	if n == 0 {
		return apperrors.NewConflictError(entity + " version mismatch")
	}
	return nil
}

func (s *PostgresTaskStore) QueryTasksByTeamStatus(ctx context.Context, team string, status model.TaskStatus) ([]model.WorkTask, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM work_tasks WHERE team=$1 AND status=$2 ORDER BY created_at`, team, string(status))
	if err != nil {
		return nil, apperrors.NewDatabaseError("query_tasks_by_team_status", err)
	}
	out := make([]model.WorkTask, 0, len(rows))
	for _, r := range rows {
		t, err := rowToTask(r)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: unmarshal task failed")
		}
		out = append(out, t)
	}
	return out, nil
}

type todoRow struct {
	ID                 string         `db:"id"`
	TaskID             string         `db:"task_id"`
	Title              string         `db:"title"`
	Description        string         `db:"description"`
	Priority           string         `db:"priority"`
	EstimatedHours     float64        `db:"estimated_hours"`
	Assignee           string         `db:"assignee"`
	DueDate            sql.NullTime   `db:"due_date"`
	Dependencies       []byte         `db:"dependencies"`
	Category           string         `db:"category"`
	Status             string         `db:"status"`
	RelatedWorkgroups  []byte         `db:"related_workgroups"`
	DeliverableIDs     []byte         `db:"deliverable_ids"`
	QualityCheckIDs    []byte         `db:"quality_check_ids"`
	CompletionCriteria []byte         `db:"completion_criteria"`
	StatusHistory      []byte         `db:"status_history"`
	ParentTodoIDs      []byte         `db:"parent_todo_ids"`
	Version            int            `db:"version"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func todoToRow(t model.TodoItem) (todoRow, error) {
	marshal := func(v any) ([]byte, error) { return json.Marshal(v) }
	deps, err := marshal(t.Dependencies)
	if err != nil {
		return todoRow{}, err
	}
	wgs, err := marshal(t.RelatedWorkgroups)
	if err != nil {
		return todoRow{}, err
	}
	delivs, err := marshal(t.DeliverableIDs)
	if err != nil {
		return todoRow{}, err
	}
	qcs, err := marshal(t.QualityCheckIDs)
	if err != nil {
		return todoRow{}, err
	}
	criteria, err := marshal(t.CompletionCriteria)
	if err != nil {
		return todoRow{}, err
	}
	history, err := marshal(t.StatusHistory)
	if err != nil {
		return todoRow{}, err
	}
	parents, err := marshal(t.ParentTodoIDs)
	if err != nil {
		return todoRow{}, err
	}
	row := todoRow{
		ID: t.ID, TaskID: t.TaskID, Title: t.Title, Description: t.Description,
		Priority: string(t.Priority), EstimatedHours: t.EstimatedHours, Assignee: t.Assignee,
		Dependencies: deps, Category: t.Category, Status: string(t.Status),
		RelatedWorkgroups: wgs, DeliverableIDs: delivs, QualityCheckIDs: qcs,
		CompletionCriteria: criteria, StatusHistory: history, ParentTodoIDs: parents,
		Version: t.Version, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
	if t.DueDate != nil {
		row.DueDate = sql.NullTime{Time: *t.DueDate, Valid: true}
	}
	return row, nil
}

func rowToTodo(row todoRow) (model.TodoItem, error) {
	t := model.TodoItem{
		ID: row.ID, TaskID: row.TaskID, Title: row.Title, Description: row.Description,
		Priority: model.Priority(row.Priority), EstimatedHours: row.EstimatedHours, Assignee: row.Assignee,
		Category: row.Category, Status: model.TodoStatus(row.Status),
		Version: row.Version, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
	if row.DueDate.Valid {
		d := row.DueDate.Time
		t.DueDate = &d
	}
	for _, pair := range []struct {
		raw []byte
		out any
	}{
		{row.Dependencies, &t.Dependencies},
		{row.RelatedWorkgroups, &t.RelatedWorkgroups},
		{row.DeliverableIDs, &t.DeliverableIDs},
		{row.QualityCheckIDs, &t.QualityCheckIDs},
		{row.CompletionCriteria, &t.CompletionCriteria},
		{row.StatusHistory, &t.StatusHistory},
		{row.ParentTodoIDs, &t.ParentTodoIDs},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.out); err != nil {
			return model.TodoItem{}, err
		}
	}
	return t, nil
}

func (s *PostgresTaskStore) PutTodo(ctx context.Context, t model.TodoItem) error {
	if t.Version == 0 {
		t.Version = 1
	}
	row, err := todoToRow(t)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: marshal todo failed")
	}
	_, err = s.db.NamedExecContext(ctx, `
INSERT INTO todo_items (id, task_id, title, description, priority, estimated_hours, assignee, due_date,
  dependencies, category, status, related_workgroups, deliverable_ids, quality_check_ids,
  completion_criteria, status_history, parent_todo_ids, version, created_at, updated_at)
VALUES (:id, :task_id, :title, :description, :priority, :estimated_hours, :assignee, :due_date,
  :dependencies, :category, :status, :related_workgroups, :deliverable_ids, :quality_check_ids,
  :completion_criteria, :status_history, :parent_todo_ids, :version, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, version = EXCLUDED.version,
  status_history = EXCLUDED.status_history, completion_criteria = EXCLUDED.completion_criteria,
  updated_at = EXCLUDED.updated_at
`, row)
	if err != nil {
		return apperrors.NewDatabaseError("put_todo", err)
	}
	return nil
}

func (s *PostgresTaskStore) GetTodo(ctx context.Context, id string) (model.TodoItem, error) {
	var row todoRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM todo_items WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TodoItem{}, apperrors.NewNotFoundError("todo")
	}
	if err != nil {
		return model.TodoItem{}, apperrors.NewDatabaseError("get_todo", err)
	}
	return rowToTodo(row)
}

func (s *PostgresTaskStore) UpdateTodo(ctx context.Context, t model.TodoItem) error {
	row, err := todoToRow(t)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: marshal todo failed")
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE todo_items SET status=$1, status_history=$2, completion_criteria=$3, assignee=$4,
  due_date=$5, updated_at=$6, version=version+1
WHERE id=$7 AND version=$8
`, row.Status, row.StatusHistory, row.CompletionCriteria, row.Assignee, row.DueDate, row.UpdatedAt, row.ID, row.Version)
	if err != nil {
		return apperrors.NewDatabaseError("update_todo", err)
	}
	return checkCASResult(res, "todo")
}

func (s *PostgresTaskStore) QueryTodosByTaskStatus(ctx context.Context, taskID string, status model.TodoStatus) ([]model.TodoItem, error) {
	var rows []todoRow
	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &rows, `SELECT * FROM todo_items WHERE task_id=$1 ORDER BY id`, taskID)
	} else {
		err = s.db.SelectContext(ctx, &rows, `SELECT * FROM todo_items WHERE task_id=$1 AND status=$2 ORDER BY id`, taskID, string(status))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("query_todos_by_task_status", err)
	}
	out := make([]model.TodoItem, 0, len(rows))
	for _, r := range rows {
		t, err := rowToTodo(r)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: unmarshal todo failed")
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *PostgresTaskStore) QueryTodosByAssigneeDueDate(ctx context.Context, assignee string, dueBefore time.Time) ([]model.TodoItem, error) {
	var rows []todoRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM todo_items WHERE assignee=$1 AND due_date < $2 ORDER BY due_date`, assignee, dueBefore)
	if err != nil {
		return nil, apperrors.NewDatabaseError("query_todos_by_assignee_due_date", err)
	}
	out := make([]model.TodoItem, 0, len(rows))
	for _, r := range rows {
		t, err := rowToTodo(r)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: unmarshal todo failed")
		}
		out = append(out, t)
	}
	return out, nil
}

type deliverableRow struct {
	ID                string         `db:"id"`
	TodoID            string         `db:"todo_id"`
	FileName          string         `db:"file_name"`
	FileType          string         `db:"file_type"`
	Size              int64          `db:"size"`
	StorageKey        string         `db:"storage_key"`
	Submitter         string         `db:"submitter"`
	SubmittedAt       time.Time      `db:"submitted_at"`
	Version           int            `db:"version"`
	PreviousVersionID sql.NullString `db:"previous_version_id"`
	Validation        []byte         `db:"validation"`
	Quality           []byte         `db:"quality"`
	Threat            []byte         `db:"threat"`
	Status            string         `db:"status"`
	Checksum          string         `db:"checksum"`
}

func deliverableToRow(d model.Deliverable) (deliverableRow, error) {
	marshalPtr := func(v any) ([]byte, error) {
		if v == nil {
			return nil, nil
		}
		return json.Marshal(v)
	}
	validation, err := marshalPtr(d.Validation)
	if err != nil {
		return deliverableRow{}, err
	}
	quality, err := marshalPtr(d.Quality)
	if err != nil {
		return deliverableRow{}, err
	}
	threat, err := marshalPtr(d.Threat)
	if err != nil {
		return deliverableRow{}, err
	}
	row := deliverableRow{
		ID: d.ID, TodoID: d.TodoID, FileName: d.FileName, FileType: d.FileType, Size: d.Size,
		StorageKey: d.StorageKey, Submitter: d.Submitter, SubmittedAt: d.SubmittedAt, Version: d.Version,
		Validation: validation, Quality: quality, Threat: threat, Status: string(d.Status), Checksum: d.Checksum,
	}
	if d.PreviousVersionID != nil {
		row.PreviousVersionID = sql.NullString{String: *d.PreviousVersionID, Valid: true}
	}
	return row, nil
}

func rowToDeliverable(row deliverableRow) (model.Deliverable, error) {
	d := model.Deliverable{
		ID: row.ID, TodoID: row.TodoID, FileName: row.FileName, FileType: row.FileType, Size: row.Size,
		StorageKey: row.StorageKey, Submitter: row.Submitter, SubmittedAt: row.SubmittedAt, Version: row.Version,
		Status: model.DeliverableStatus(row.Status), Checksum: row.Checksum,
	}
	if row.PreviousVersionID.Valid {
		v := row.PreviousVersionID.String
		d.PreviousVersionID = &v
	}
	if len(row.Validation) > 0 {
		var v model.ValidationReport
		if err := json.Unmarshal(row.Validation, &v); err != nil {
			return model.Deliverable{}, err
		}
		d.Validation = &v
	}
	if len(row.Quality) > 0 {
		var q model.QualityAssessment
		if err := json.Unmarshal(row.Quality, &q); err != nil {
			return model.Deliverable{}, err
		}
		d.Quality = &q
	}
	if len(row.Threat) > 0 {
		var th model.ThreatReport
		if err := json.Unmarshal(row.Threat, &th); err != nil {
			return model.Deliverable{}, err
		}
		d.Threat = &th
	}
	return d, nil
}

func (s *PostgresTaskStore) PutDeliverable(ctx context.Context, d model.Deliverable) error {
	if d.Version == 0 {
		d.Version = 1
	}
	row, err := deliverableToRow(d)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: marshal deliverable failed")
	}
	_, err = s.db.NamedExecContext(ctx, `
INSERT INTO deliverables (id, todo_id, file_name, file_type, size, storage_key, submitter, submitted_at,
  version, previous_version_id, validation, quality, threat, status, checksum)
VALUES (:id, :todo_id, :file_name, :file_type, :size, :storage_key, :submitter, :submitted_at,
  :version, :previous_version_id, :validation, :quality, :threat, :status, :checksum)
ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, validation=EXCLUDED.validation,
  quality=EXCLUDED.quality, threat=EXCLUDED.threat, version=EXCLUDED.version
`, row)
	if err != nil {
		return apperrors.NewDatabaseError("put_deliverable", err)
	}
	return nil
}

func (s *PostgresTaskStore) GetDeliverable(ctx context.Context, id string) (model.Deliverable, error) {
	var row deliverableRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM deliverables WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Deliverable{}, apperrors.NewNotFoundError("deliverable")
	}
	if err != nil {
		return model.Deliverable{}, apperrors.NewDatabaseError("get_deliverable", err)
	}
	return rowToDeliverable(row)
}

func (s *PostgresTaskStore) UpdateDeliverable(ctx context.Context, d model.Deliverable) error {
	row, err := deliverableToRow(d)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: marshal deliverable failed")
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE deliverables SET status=$1, validation=$2, quality=$3, threat=$4, version=version+1
WHERE id=$5 AND version=$6
`, row.Status, row.Validation, row.Quality, row.Threat, row.ID, row.Version)
	if err != nil {
		return apperrors.NewDatabaseError("update_deliverable", err)
	}
	return checkCASResult(res, "deliverable")
}

func (s *PostgresTaskStore) QueryDeliverablesByTodo(ctx context.Context, todoID string) ([]model.Deliverable, error) {
	var rows []deliverableRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM deliverables WHERE todo_id=$1 ORDER BY submitted_at`, todoID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("query_deliverables_by_todo", err)
	}
	out := make([]model.Deliverable, 0, len(rows))
	for _, r := range rows {
		d, err := rowToDeliverable(r)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: unmarshal deliverable failed")
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *PostgresTaskStore) SaveAnalysisResult(ctx context.Context, r model.TaskAnalysisResult) error {
	body, err := json.Marshal(r)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: marshal analysis result failed")
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO task_analysis_results (task_id, version, body, generated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (task_id, version) DO UPDATE SET body = EXCLUDED.body
`, r.TaskID, r.Version, body, r.GeneratedAt)
	if err != nil {
		return apperrors.NewDatabaseError("save_analysis_result", err)
	}
	return nil
}

func (s *PostgresTaskStore) NextVersion(ctx context.Context, taskID string) (int, error) {
	var max sql.NullInt64
	err := s.db.GetContext(ctx, &max, `SELECT MAX(version) FROM task_analysis_results WHERE task_id=$1`, taskID)
	if err != nil {
		return 0, apperrors.NewDatabaseError("next_version", err)
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

func (s *PostgresTaskStore) GetLatestAnalysisResult(ctx context.Context, taskID string) (model.TaskAnalysisResult, error) {
	var body []byte
	err := s.db.GetContext(ctx, &body, `SELECT body FROM task_analysis_results WHERE task_id=$1 ORDER BY version DESC LIMIT 1`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TaskAnalysisResult{}, apperrors.NewNotFoundError("task analysis result")
	}
	if err != nil {
		return model.TaskAnalysisResult{}, apperrors.NewDatabaseError("get_latest_analysis_result", err)
	}
	var r model.TaskAnalysisResult
	if err := json.Unmarshal(body, &r); err != nil {
		return model.TaskAnalysisResult{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: unmarshal analysis result failed")
	}
	return r, nil
}
