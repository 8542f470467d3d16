package model

import "time"

// TodoStatus is the lifecycle state of a TodoItem.
type TodoStatus string

const (
	TodoStatusPending    TodoStatus = "pending"
	TodoStatusInProgress TodoStatus = "in_progress"
	TodoStatusCompleted  TodoStatus = "completed"
	TodoStatusBlocked    TodoStatus = "blocked"
)

// StatusHistoryEntry records one status transition, including any
// administrative override, with the audit trail recorded separately.
type StatusHistoryEntry struct {
	From      TodoStatus
	To        TodoStatus
	At        time.Time
	Actor     string
	Forced    bool
	UnmetDeps []string // populated only when Forced is true
	Reason    string
}

// CompletionCriterion is one condition a todo must satisfy before it can
// complete. Mandatory criteria block completion; non-mandatory ones
// are advisory.
type CompletionCriterion struct {
	ID          string
	Description string
	Mandatory   bool
	Met         bool
	SourceID    string // e.g. a Deliverable id whose approval satisfies this
}

// TodoItem is a derived, executable step — a node in a task's DAG.
type TodoItem struct {
	ID                   string
	TaskID               string
	Title                string
	Description          string
	Priority             Priority
	EstimatedHours        float64
	Assignee             string
	DueDate              *time.Time
	Dependencies         []string // todo ids, same task
	Category             string
	Status               TodoStatus
	RelatedWorkgroups    []string
	DeliverableIDs       []string
	QualityCheckIDs      []string
	CompletionCriteria   []CompletionCriterion
	StatusHistory        []StatusHistoryEntry
	ParentTodoIDs        []string // refinement links from re-analysis
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// AllCriteriaMet reports whether every mandatory completion criterion is
// satisfied.
func (t *TodoItem) MandatoryCriteriaMet() bool {
	for _, c := range t.CompletionCriteria {
		if c.Mandatory && !c.Met {
			return false
		}
	}
	return true
}

// BlockerKind classifies why a todo is blocked.
type BlockerKind string

const (
	BlockerDependency BlockerKind = "dependency"
	BlockerResource   BlockerKind = "resource"
	BlockerApproval   BlockerKind = "approval"
	BlockerTechnical  BlockerKind = "technical"
	BlockerExternal   BlockerKind = "external"
	BlockerTimeline   BlockerKind = "timeline"
	BlockerQuality    BlockerKind = "quality"
)

// Severity is a blocker's or detection's severity rating.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for sorting (critical highest).
var severityRank = map[Severity]int{
	SeverityCritical: 3,
	SeverityHigh:     2,
	SeverityMedium:   1,
	SeverityLow:      0,
}

// SeverityRank returns a sortable rank for s (higher is more severe).
func SeverityRank(s Severity) int { return severityRank[s] }

// Blocker is a condition preventing progress on a todo.
type Blocker struct {
	ID          string
	TodoID      string
	Kind        BlockerKind
	Severity    Severity
	Description string
	DetectedAt  time.Time
	AutoDetected bool
	ResolvedAt  *time.Time
}

// IsOpen reports whether the blocker has not yet been resolved.
func (b Blocker) IsOpen() bool { return b.ResolvedAt == nil }

// ProjectedCompletion holds the three completion-date scenarios
// produced by the engine's ProjectCompletion.
type ProjectedCompletion struct {
	Optimistic time.Time
	Realistic  time.Time
	Pessimistic time.Time
}

// ProgressSnapshot is a cached rollup of a task's todo completion state.
type ProgressSnapshot struct {
	TaskID             string
	Total              int
	Completed          int
	InProgress         int
	Blocked            int
	CompletionPct      float64
	Velocity           float64 // completed todos per day, rolling 14d
	ProjectedCompletion ProjectedCompletion
	ComputedAt         time.Time
}

// StatusChangeImpact is returned by UpdateStatus.
type StatusChangeImpact struct {
	TodoID              string
	AffectsCriticalPath  bool
	DependentTodoIDs     []string
	RiskLevel            Severity
	RecommendedActions   []string
	NewlyEligibleTodoIDs []string
}
