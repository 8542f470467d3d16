package store_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/model"
	"github.com/taskforge/orchestrator/pkg/store"
)

func newMockTaskStore(t *testing.T) (*store.PostgresTaskStore, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rawDB.Close() })

	db := sqlx.NewDb(rawDB, "pgx")
	return store.NewPostgresTaskStore(db), mock
}

func TestPostgresTaskStoreGetTaskFound(t *testing.T) {
	s, mock := newMockTaskStore(t)
	now := time.Now()

	cols := []string{"id", "title", "description", "content", "submitter", "team", "priority",
		"category", "tags", "status", "sensitivity_score", "retention_ttl", "version", "created_at", "updated_at"}
	rows := sqlmock.NewRows(cols).AddRow(
		"t1", "Add OAuth", "", "", "alice", "platform", "high", "", []byte(`[]`),
		"submitted", 10, nil, 1, now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM work_tasks WHERE id = $1`)).
		WithArgs("t1").
		WillReturnRows(rows)

	got, err := s.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "Add OAuth", got.Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStoreGetTaskNotFound(t *testing.T) {
	s, mock := newMockTaskStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM work_tasks WHERE id = $1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetTask(context.Background(), "missing")
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestPostgresTaskStoreUpdateTaskCASConflict(t *testing.T) {
	s, mock := newMockTaskStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE work_tasks SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateTask(context.Background(), model.WorkTask{ID: "t1", Status: model.TaskStatusAnalyzed, Version: 1})
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestPostgresTaskStoreUpdateTaskSuccess(t *testing.T) {
	s, mock := newMockTaskStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE work_tasks SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpdateTask(context.Background(), model.WorkTask{ID: "t1", Status: model.TaskStatusAnalyzed, Version: 1})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
