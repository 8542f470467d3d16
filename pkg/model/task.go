// Package model defines the entity types shared across every component:
// WorkTask, TaskAnalysisResult, TodoItem, Deliverable, Session, Message,
// Branch, Summary, Blocker, and ProgressSnapshot. Dynamic
// dictionary shapes from the source are replaced with typed structs and
// sum types throughout, per the documented design note.
package model

import "time"

// Priority is the urgency level of a WorkTask or TodoItem.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "med"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "crit"
)

// TaskStatus is the lifecycle state of a WorkTask.
type TaskStatus string

const (
	TaskStatusSubmitted  TaskStatus = "submitted"
	TaskStatusAnalyzing  TaskStatus = "analyzing"
	TaskStatusAnalyzed   TaskStatus = "analyzed"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// WorkTask is a unit of user-submitted work to be analyzed and executed.
type WorkTask struct {
	ID               string
	Title            string
	Description      string
	Content          string
	Submitter        string
	Team             string
	Priority         Priority
	Category         string
	Tags             []string
	Status           TaskStatus
	SensitivityScore int
	RetentionTTL     *time.Time
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RiskFactor names a dimension of the risk assessment matrix.
type RiskFactor string

const (
	RiskTechnical  RiskFactor = "technical"
	RiskResource   RiskFactor = "resource"
	RiskTimeline   RiskFactor = "timeline"
	RiskCompliance RiskFactor = "compliance"
	RiskSecurity   RiskFactor = "security"
	RiskBusiness   RiskFactor = "business"
)

// RiskCell is one (probability, impact) entry in the risk matrix.
type RiskCell struct {
	Factor      RiskFactor
	Probability float64 // [0,1]
	Impact      float64 // [0,1]
}

// Score returns the cell's probability*impact product.
func (c RiskCell) Score() float64 { return c.Probability * c.Impact }

// RiskAssessment is the full risk matrix plus its overall rating.
type RiskAssessment struct {
	Cells   []RiskCell
	Overall float64 // max(cell.Score()) across Cells
}

// KnowledgeReference is a ranked external knowledge handle.
type KnowledgeReference struct {
	SourceID   string
	SourceType string
	Title      string
	Snippet    string
	Relevance  float64 // [0,1]
}

// Involvement describes how a workgroup should participate in a task.
type Involvement string

const (
	InvolvementConsultation  Involvement = "consultation"
	InvolvementCollaboration Involvement = "collaboration"
	InvolvementApproval      Involvement = "approval"
	InvolvementNotification  Involvement = "notification"
)

// SkillMatch details why a workgroup matched a task.
type SkillMatch struct {
	MatchedSkills []string
	Score         float64 // [0,1]
}

// CapacityInfo describes a workgroup's current load.
type CapacityInfo struct {
	ActiveTodos int
	Capacity    int
	FitScore    float64 // [0,1]
}

// HistoricalPerformance summarizes a workgroup's track record.
type HistoricalPerformance struct {
	CompletedTasks  int
	SuccessRate     float64 // [0,1]
	AvgCycleTimeHrs float64
}

// RelatedWorkgroup is a ranked candidate team for a task.
type RelatedWorkgroup struct {
	TeamID                 string
	Relevance               float64 // [0,1]
	SkillMatch              SkillMatch
	Capacity                CapacityInfo
	HistoricalPerformance   HistoricalPerformance
	RecommendedInvolvement  Involvement
}

// KeyPoint is one extracted unit of meaning from task content.
type KeyPoint struct {
	Text       string
	Category   string
	Confidence float64
}

// EffortEstimate is a clamped effort projection for a todo, in hours.
type EffortEstimate struct {
	Hours      float64
	Confidence float64
}

// TaskAnalysisResult is the immutable output of one AP run.
// A new version is appended, never mutated, on re-analysis.
type TaskAnalysisResult struct {
	TaskID         string
	Version        int
	KeyPoints      []KeyPoint
	Workgroups     []RelatedWorkgroup
	Todos          []TodoItem
	KnowledgeRefs  []KnowledgeReference
	RiskAssessment RiskAssessment
	EffortEstimate EffortEstimate
	GeneratedAt    time.Time
	Degraded       bool // true if any stage fell back to a degraded result
}
