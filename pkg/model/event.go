package model

import "time"

// EventKind names the kind of status-change event fanned out by the
// todo graph engine, deliverable pipeline, and conversation orchestrator.
type EventKind string

const (
	EventStatusChanged       EventKind = "StatusChanged"
	EventEligibleToStart     EventKind = "EligibleToStart"
	EventBlockerOpened       EventKind = "BlockerOpened"
	EventBlockerResolved     EventKind = "BlockerResolved"
	EventDeliverableVerdict  EventKind = "DeliverableVerdict"
	EventSessionSummary      EventKind = "SessionSummary"
	EventNeedsApproval       EventKind = "NeedsApproval"
)

// Event is the single envelope type for everything SubscribeEvents fans
// out, replacing the source's dynamic per-kind payload dictionaries with
// one typed struct carrying only the fields relevant to Kind.
type Event struct {
	Kind       EventKind
	TaskID     string
	TodoID     string
	SessionID  string
	DeliverableID string
	At         time.Time
	Payload    map[string]any // kind-specific detail, see Kind's doc
}

// EventFilter parameterizes SubscribeEvents.
type EventFilter struct {
	TaskID  string
	Kinds   []EventKind
}

// Matches reports whether e satisfies f.
func (f EventFilter) Matches(e Event) bool {
	if f.TaskID != "" && f.TaskID != e.TaskID {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if k == e.Kind {
			return true
		}
	}
	return false
}
