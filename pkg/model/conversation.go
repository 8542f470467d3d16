package model

import "time"

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionEnded   SessionStatus = "ended"
	SessionExpired SessionStatus = "expired"
)

// Session is a conversation thread between a user and the agent.
type Session struct {
	ID             string
	UserID         string
	TeamID         string
	PersonaID      string
	StartedAt      time.Time
	LastActivityAt time.Time
	Status         SessionStatus
	ContextRef     string
	Version        int
}

// MessageRole identifies who authored a Message.
type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleAgent  MessageRole = "agent"
	RoleSystem MessageRole = "system"
)

// Message is one append-only conversation turn.
type Message struct {
	ID              string
	SessionID       string
	Role            MessageRole
	Content         string
	Timestamp       time.Time
	SeqNo           int64 // monotonic intra-session tie-break counter
	References      []string
	BranchID        *string
	ParentMessageID *string
}

// Branch is an alternative linear continuation of a session.
type Branch struct {
	ID              string
	SessionID       string
	ParentMessageID string
	Name            string
	Description     string
	CreatedAt       time.Time
}

// SummaryKind classifies a Summary.
type SummaryKind string

const (
	SummarySession  SummaryKind = "session"
	SummaryPeriodic SummaryKind = "periodic"
	SummaryTopic    SummaryKind = "topic"
)

// TimeRange bounds a Summary's coverage window.
type TimeRange struct {
	Since time.Time
	Until time.Time
}

// Summary is a derived, read-only digest of a session or a portion of it.
type Summary struct {
	ID          string
	SessionID   string
	Kind        SummaryKind
	Text        string
	KeyTopics   []string
	ActionItems []string
	Insights    string
	TimeRange   *TimeRange
	CreatedAt   time.Time
}

// MemoryContext is CO's assembled view for AP/TGE to consult.
type MemoryContext struct {
	ShortTerm  []Message
	LongTerm   []Summary
	Semantic   []string // deduplicated references[] union
	Procedural []string // open action items
}

// HistoryFilter parameterizes GetHistory.
type HistoryFilter struct {
	Limit    int
	Offset   int
	BranchID *string
	Since    *time.Time
	Until    *time.Time
	Roles    []MessageRole
}

// HistoryPage is the result of GetHistory.
type HistoryPage struct {
	Messages      []Message
	TotalCount    int
	HasMore       bool
	LatestSummary *Summary
}
