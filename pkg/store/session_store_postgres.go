package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/model"
)

// PostgresSessionStore is the production SessionStore. The ordered
// (messageID, timestamp) and (kind, timestamp) access patterns are
// realized here as an indexed (session_id, timestamp, seq_no) ordering
// rather than an encoded sort-key string, since Postgres range-scans on
// typed columns directly.
type PostgresSessionStore struct {
	db *sqlx.DB
}

// NewPostgresSessionStore wraps an already-connected *sqlx.DB.
func NewPostgresSessionStore(db *sqlx.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

type sessionRow struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	TeamID         string    `db:"team_id"`
	PersonaID      string    `db:"persona_id"`
	StartedAt      time.Time `db:"started_at"`
	LastActivityAt time.Time `db:"last_activity_at"`
	Status         string    `db:"status"`
	ContextRef     string    `db:"context_ref"`
	Version        int       `db:"version"`
}

func sessionToRow(s model.Session) sessionRow {
	return sessionRow{
		ID: s.ID, UserID: s.UserID, TeamID: s.TeamID, PersonaID: s.PersonaID,
		StartedAt: s.StartedAt, LastActivityAt: s.LastActivityAt, Status: string(s.Status),
		ContextRef: s.ContextRef, Version: s.Version,
	}
}

func rowToSession(r sessionRow) model.Session {
	return model.Session{
		ID: r.ID, UserID: r.UserID, TeamID: r.TeamID, PersonaID: r.PersonaID,
		StartedAt: r.StartedAt, LastActivityAt: r.LastActivityAt, Status: model.SessionStatus(r.Status),
		ContextRef: r.ContextRef, Version: r.Version,
	}
}

func (s *PostgresSessionStore) PutSession(ctx context.Context, sess model.Session) error {
	if sess.Version == 0 {
		sess.Version = 1
	}
	row := sessionToRow(sess)
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO sessions (id, user_id, team_id, persona_id, started_at, last_activity_at, status, context_ref, version)
VALUES (:id, :user_id, :team_id, :persona_id, :started_at, :last_activity_at, :status, :context_ref, :version)
ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, last_activity_at=EXCLUDED.last_activity_at, version=EXCLUDED.version
`, row)
	if err != nil {
		return apperrors.NewDatabaseError("put_session", err)
	}
	return nil
}

func (s *PostgresSessionStore) GetSession(ctx context.Context, id string) (model.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM sessions WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, apperrors.NewNotFoundError("session")
	}
	if err != nil {
		return model.Session{}, apperrors.NewDatabaseError("get_session", err)
	}
	return rowToSession(row), nil
}

func (s *PostgresSessionStore) UpdateSession(ctx context.Context, sess model.Session) error {
	row := sessionToRow(sess)
	res, err := s.db.ExecContext(ctx, `
UPDATE sessions SET status=$1, last_activity_at=$2, context_ref=$3, version=version+1
WHERE id=$4 AND version=$5
`, row.Status, row.LastActivityAt, row.ContextRef, row.ID, row.Version)
	if err != nil {
		return apperrors.NewDatabaseError("update_session", err)
	}
	return checkCASResult(res, "session")
}

type messageRow struct {
	ID              string         `db:"id"`
	SessionID       string         `db:"session_id"`
	Role            string         `db:"role"`
	Content         string         `db:"content"`
	Timestamp       time.Time      `db:"ts"`
	SeqNo           int64          `db:"seq_no"`
	References      []byte         `db:"references"`
	BranchID        sql.NullString `db:"branch_id"`
	ParentMessageID sql.NullString `db:"parent_message_id"`
}

func messageToRow(m model.Message) (messageRow, error) {
	refs, err := json.Marshal(m.References)
	if err != nil {
		return messageRow{}, err
	}
	row := messageRow{
		ID: m.ID, SessionID: m.SessionID, Role: string(m.Role), Content: m.Content,
		Timestamp: m.Timestamp, SeqNo: m.SeqNo, References: refs,
	}
	if m.BranchID != nil {
		row.BranchID = sql.NullString{String: *m.BranchID, Valid: true}
	}
	if m.ParentMessageID != nil {
		row.ParentMessageID = sql.NullString{String: *m.ParentMessageID, Valid: true}
	}
	return row, nil
}

func rowToMessage(row messageRow) (model.Message, error) {
	var refs []string
	if len(row.References) > 0 {
		if err := json.Unmarshal(row.References, &refs); err != nil {
			return model.Message{}, err
		}
	}
	m := model.Message{
		ID: row.ID, SessionID: row.SessionID, Role: model.MessageRole(row.Role), Content: row.Content,
		Timestamp: row.Timestamp, SeqNo: row.SeqNo, References: refs,
	}
	if row.BranchID.Valid {
		b := row.BranchID.String
		m.BranchID = &b
	}
	if row.ParentMessageID.Valid {
		p := row.ParentMessageID.String
		m.ParentMessageID = &p
	}
	return m, nil
}

func (s *PostgresSessionStore) AppendMessage(ctx context.Context, m model.Message) error {
	row, err := messageToRow(m)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: marshal message failed")
	}
	_, err = s.db.NamedExecContext(ctx, `
INSERT INTO messages (id, session_id, role, content, ts, seq_no, "references", branch_id, parent_message_id)
VALUES (:id, :session_id, :role, :content, :ts, :seq_no, :references, :branch_id, :parent_message_id)
`, row)
	if err != nil {
		return apperrors.NewDatabaseError("append_message", err)
	}
	return nil
}

func (s *PostgresSessionStore) QueryMessages(ctx context.Context, sessionID string, branchID *string, since, until *time.Time, limit, offset int) ([]model.Message, int, error) {
	query := `SELECT * FROM messages WHERE session_id=$1`
	args := []any{sessionID}
	if branchID != nil {
		query += ` AND branch_id=$2`
		args = append(args, *branchID)
	} else {
		query += ` AND branch_id IS NULL`
	}
	if since != nil {
		args = append(args, *since)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if until != nil {
		args = append(args, *until)
		query += fmt.Sprintf(" AND ts < $%d", len(args))
	}
	query += ` ORDER BY ts, seq_no`

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, apperrors.NewDatabaseError("query_messages", err)
	}

	total := len(rows)
	if offset > total {
		offset = total
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	out := make([]model.Message, 0, len(rows))
	for _, r := range rows {
		m, err := rowToMessage(r)
		if err != nil {
			return nil, 0, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: unmarshal message failed")
		}
		out = append(out, m)
	}
	return out, total, nil
}

func (s *PostgresSessionStore) PutBranch(ctx context.Context, b model.Branch) error {
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO branches (id, session_id, parent_message_id, name, description, created_at)
VALUES (:id, :session_id, :parent_message_id, :name, :description, :created_at)
`, b)
	if err != nil {
		return apperrors.NewDatabaseError("put_branch", err)
	}
	return nil
}

func (s *PostgresSessionStore) ListBranches(ctx context.Context, sessionID string) ([]model.Branch, error) {
	var out []model.Branch
	if err := s.db.SelectContext(ctx, &out, `SELECT * FROM branches WHERE session_id=$1 ORDER BY created_at`, sessionID); err != nil {
		return nil, apperrors.NewDatabaseError("list_branches", err)
	}
	return out, nil
}

type summaryRow struct {
	ID          string    `db:"id"`
	SessionID   string    `db:"session_id"`
	Kind        string    `db:"kind"`
	Text        string    `db:"text"`
	KeyTopics   []byte    `db:"key_topics"`
	ActionItems []byte    `db:"action_items"`
	Insights    string    `db:"insights"`
	RangeSince  sql.NullTime `db:"range_since"`
	RangeUntil  sql.NullTime `db:"range_until"`
	CreatedAt   time.Time `db:"created_at"`
}

func summaryToRow(s model.Summary) (summaryRow, error) {
	topics, err := json.Marshal(s.KeyTopics)
	if err != nil {
		return summaryRow{}, err
	}
	items, err := json.Marshal(s.ActionItems)
	if err != nil {
		return summaryRow{}, err
	}
	row := summaryRow{
		ID: s.ID, SessionID: s.SessionID, Kind: string(s.Kind), Text: s.Text,
		KeyTopics: topics, ActionItems: items, Insights: s.Insights, CreatedAt: s.CreatedAt,
	}
	if s.TimeRange != nil {
		row.RangeSince = sql.NullTime{Time: s.TimeRange.Since, Valid: true}
		row.RangeUntil = sql.NullTime{Time: s.TimeRange.Until, Valid: true}
	}
	return row, nil
}

func rowToSummary(row summaryRow) (model.Summary, error) {
	var topics, items []string
	if len(row.KeyTopics) > 0 {
		if err := json.Unmarshal(row.KeyTopics, &topics); err != nil {
			return model.Summary{}, err
		}
	}
	if len(row.ActionItems) > 0 {
		if err := json.Unmarshal(row.ActionItems, &items); err != nil {
			return model.Summary{}, err
		}
	}
	s := model.Summary{
		ID: row.ID, SessionID: row.SessionID, Kind: model.SummaryKind(row.Kind), Text: row.Text,
		KeyTopics: topics, ActionItems: items, Insights: row.Insights, CreatedAt: row.CreatedAt,
	}
	if row.RangeSince.Valid && row.RangeUntil.Valid {
		s.TimeRange = &model.TimeRange{Since: row.RangeSince.Time, Until: row.RangeUntil.Time}
	}
	return s, nil
}

func (s *PostgresSessionStore) PutSummary(ctx context.Context, summary model.Summary) error {
	row, err := summaryToRow(summary)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "store: marshal summary failed")
	}
	_, err = s.db.NamedExecContext(ctx, `
INSERT INTO summaries (id, session_id, kind, text, key_topics, action_items, insights, range_since, range_until, created_at)
VALUES (:id, :session_id, :kind, :text, :key_topics, :action_items, :insights, :range_since, :range_until, :created_at)
`, row)
	if err != nil {
		return apperrors.NewDatabaseError("put_summary", err)
	}
	return nil
}

func (s *PostgresSessionStore) GetLatestSummary(ctx context.Context, sessionID string, kind model.SummaryKind) (model.Summary, error) {
	var row summaryRow
	err := s.db.GetContext(ctx, &row, `
SELECT * FROM summaries WHERE session_id=$1 AND kind=$2 ORDER BY created_at DESC LIMIT 1
`, sessionID, string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Summary{}, apperrors.NewNotFoundError("summary")
	}
	if err != nil {
		return model.Summary{}, apperrors.NewDatabaseError("get_latest_summary", err)
	}
	return rowToSummary(row)
}
