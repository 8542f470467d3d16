package store

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/model"
)

// SessionStore persists Session, Message, Branch, and Summary records,
// partitioned by sessionId with composite sort keys
// "MSG#<timestamp>#<messageId>" and "SUMMARY#<kind>#<timestamp>" sort
// keys. It is the durability layer behind pkg/conversation.Orchestrator,
// which remains the in-memory authority for turn ordering on the hot
// path; writes here are best-effort persistence of that same order,
// not a second ordering authority.
type SessionStore interface {
	PutSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, id string) (model.Session, error)
	UpdateSession(ctx context.Context, s model.Session) error

	AppendMessage(ctx context.Context, m model.Message) error
	QueryMessages(ctx context.Context, sessionID string, branchID *string, since, until *time.Time, limit, offset int) ([]model.Message, int, error)

	PutBranch(ctx context.Context, b model.Branch) error
	ListBranches(ctx context.Context, sessionID string) ([]model.Branch, error)

	PutSummary(ctx context.Context, s model.Summary) error
	GetLatestSummary(ctx context.Context, sessionID string, kind model.SummaryKind) (model.Summary, error)
}

// InMemorySessionStore is a mutex-guarded SessionStore, used for tests
// and as the fallback path when the database is unreachable.
type InMemorySessionStore struct {
	mu sync.RWMutex

	sessions map[string]model.Session
	messages map[string][]model.Message // sessionID -> messages, insertion order
	branches map[string][]model.Branch
	summaries map[string][]model.Summary
}

// NewInMemorySessionStore constructs an empty InMemorySessionStore.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions:  map[string]model.Session{},
		messages:  map[string][]model.Message{},
		branches:  map[string][]model.Branch{},
		summaries: map[string][]model.Summary{},
	}
}

func (s *InMemorySessionStore) PutSession(_ context.Context, sess model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.Version == 0 {
		sess.Version = 1
	}
	s.sessions[sess.ID] = sess
	return nil
}

func (s *InMemorySessionStore) GetSession(_ context.Context, id string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, apperrors.NewNotFoundError("session")
	}
	return sess, nil
}

func (s *InMemorySessionStore) UpdateSession(_ context.Context, sess model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sessions[sess.ID]
	if !ok {
		return apperrors.NewNotFoundError("session")
	}
	if existing.Version != sess.Version {
		return apperrors.NewConflictError("session version mismatch")
	}
	sess.Version++
	s.sessions[sess.ID] = sess
	return nil
}

// AppendMessage stores m. Ordering within (sessionID, branchID) is the
// caller's responsibility (pkg/conversation.Orchestrator assigns SeqNo
// under its per-session lock before calling this); this store preserves
// insertion order and sorts defensively by (Timestamp, SeqNo) on read.
func (s *InMemorySessionStore) AppendMessage(_ context.Context, m model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.SessionID] = append(s.messages[m.SessionID], m)
	return nil
}

func (s *InMemorySessionStore) QueryMessages(_ context.Context, sessionID string, branchID *string, since, until *time.Time, limit, offset int) ([]model.Message, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []model.Message
	for _, m := range s.messages[sessionID] {
		if !sameBranch(m.BranchID, branchID) {
			continue
		}
		if since != nil && m.Timestamp.Before(*since) {
			continue
		}
		if until != nil && !m.Timestamp.Before(*until) {
			continue
		}
		filtered = append(filtered, m)
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Timestamp.Equal(filtered[j].Timestamp) {
			return filtered[i].SeqNo < filtered[j].SeqNo
		}
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	total := len(filtered)
	if offset > total {
		offset = total
	}
	filtered = filtered[offset:]
	if limit > 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}
	return filtered, total, nil
}

func sameBranch(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *InMemorySessionStore) PutBranch(_ context.Context, b model.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[b.SessionID] = append(s.branches[b.SessionID], b)
	return nil
}

func (s *InMemorySessionStore) ListBranches(_ context.Context, sessionID string) ([]model.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Branch, len(s.branches[sessionID]))
	copy(out, s.branches[sessionID])
	return out, nil
}

func (s *InMemorySessionStore) PutSummary(_ context.Context, summary model.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summary.SessionID] = append(s.summaries[summary.SessionID], summary)
	return nil
}

// GetLatestSummary returns the most recently created Summary of kind for
// sessionID.
func (s *InMemorySessionStore) GetLatestSummary(_ context.Context, sessionID string, kind model.SummaryKind) (model.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *model.Summary
	for i, summary := range s.summaries[sessionID] {
		if summary.Kind != kind {
			continue
		}
		if latest == nil || summary.CreatedAt.After(latest.CreatedAt) {
			latest = &s.summaries[sessionID][i]
		}
	}
	if latest == nil {
		return model.Summary{}, apperrors.NewNotFoundError("summary")
	}
	return *latest, nil
}
