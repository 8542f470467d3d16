package todograph

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/taskforge/orchestrator/pkg/model"
)

const overloadedOwnerThreshold = 5

// blockerKeywords maps substrings found in a blocked todo's description to
// the BlockerKind they imply. Checked in order; the first
// match wins.
var blockerKeywords = []struct {
	kind     model.BlockerKind
	keywords []string
}{
	{model.BlockerApproval, []string{"approval", "sign-off", "signoff", "awaiting approval"}},
	{model.BlockerResource, []string{"unavailable", "understaffed", "no capacity", "resource"}},
	{model.BlockerExternal, []string{"vendor", "third-party", "third party", "external"}},
	{model.BlockerTimeline, []string{"delayed", "overdue", "schedule"}},
	{model.BlockerQuality, []string{"quality", "failed review", "rejected"}},
	{model.BlockerTechnical, []string{"bug", "error", "broken", "incompatible"}},
}

// blockerSeverity elevates medium to high when either priority-critical or
// on-critical-path holds, and to critical when both hold.
func blockerSeverity(priorityCritical, onCriticalPath bool) model.Severity {
	switch {
	case priorityCritical && onCriticalPath:
		return model.SeverityCritical
	case priorityCritical || onCriticalPath:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

func inferBlockerKind(description string) model.BlockerKind {
	lower := strings.ToLower(description)
	for _, entry := range blockerKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.kind
			}
		}
	}
	return model.BlockerTechnical
}

// IdentifyBlockers composes TGE's blocker view from five sources: todos
// explicitly in the blocked state, todos depending (directly) on a
// blocked todo, overdue todos, todos failing a mandatory completion
// criterion, and todos owned by an assignee carrying more active work
// than overloadedOwnerThreshold.
func (e *Engine) IdentifyBlockers(taskID string) []model.Blocker {
	g := e.graphFor(taskID)
	g.mu.RLock()
	defer g.mu.RUnlock()

	now := e.clock.Now()
	var out []model.Blocker

	activeByAssignee := map[string][]string{}
	for id, t := range g.nodes {
		if t.Assignee != "" && (t.Status == model.TodoStatusPending || t.Status == model.TodoStatusInProgress) {
			activeByAssignee[t.Assignee] = append(activeByAssignee[t.Assignee], id)
		}
	}

	for id, t := range g.nodes {
		switch t.Status {
		case model.TodoStatusBlocked:
			if record := e.openBlockerRecord(taskID, id); record != nil {
				out = append(out, *record)
			} else {
				out = append(out, e.blockerFor(g, id, t, inferBlockerKind(t.Description), t.Description, now))
			}

		case model.TodoStatusPending, model.TodoStatusInProgress:
			for _, depID := range t.Dependencies {
				if dep, ok := g.nodes[depID]; ok && dep.Status == model.TodoStatusBlocked {
					out = append(out, e.blockerFor(g, id, t, model.BlockerDependency,
						"depends on blocked todo "+depID, now))
				}
			}
			if t.DueDate != nil && now.After(*t.DueDate) {
				out = append(out, e.blockerFor(g, id, t, model.BlockerTimeline, "past due date", now))
			}
			for _, c := range t.CompletionCriteria {
				if c.Mandatory && !c.Met {
					out = append(out, e.blockerFor(g, id, t, model.BlockerQuality,
						"mandatory completion criterion unmet: "+c.Description, now))
					break
				}
			}
		}
	}

	for assignee, ids := range activeByAssignee {
		if len(ids) <= overloadedOwnerThreshold {
			continue
		}
		for _, id := range ids {
			t := g.nodes[id]
			out = append(out, e.blockerFor(g, id, t, model.BlockerResource,
				assignee+" has "+strconv.Itoa(len(ids))+" active todos", now))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if model.SeverityRank(out[i].Severity) != model.SeverityRank(out[j].Severity) {
			return model.SeverityRank(out[i].Severity) > model.SeverityRank(out[j].Severity)
		}
		return out[i].DetectedAt.Before(out[j].DetectedAt)
	})
	return out
}

// openBlocker creates (or reopens) the persistent record for a todo that
// just entered the blocked state, using its metadata reason to infer a
// kind.
func (e *Engine) openBlocker(taskID string, node *model.TodoItem, reason string, g *taskGraph, now time.Time) {
	if reason == "" {
		reason = node.Description
	}
	severity := blockerSeverity(node.Priority == model.PriorityCritical, g.isOnCriticalPath(node.ID))
	kind := inferBlockerKind(reason)

	record := &model.Blocker{
		ID:           node.ID + ":" + string(kind),
		TodoID:       node.ID,
		Kind:         kind,
		Severity:     severity,
		Description:  reason,
		DetectedAt:   now,
		AutoDetected: true,
	}

	e.blockersMu.Lock()
	if e.blockers[taskID] == nil {
		e.blockers[taskID] = map[string]*model.Blocker{}
	}
	e.blockers[taskID][node.ID] = record
	e.blockersMu.Unlock()

	e.publish(model.Event{Kind: model.EventBlockerOpened, TaskID: taskID, TodoID: node.ID, At: now})
}

// resolveBlocker closes the open blocker record for a todo leaving the
// blocked state.
func (e *Engine) resolveBlocker(taskID, todoID string, now time.Time) {
	e.blockersMu.Lock()
	record, ok := e.blockers[taskID][todoID]
	if ok {
		resolvedAt := now
		record.ResolvedAt = &resolvedAt
	}
	e.blockersMu.Unlock()

	if ok {
		e.publish(model.Event{Kind: model.EventBlockerResolved, TaskID: taskID, TodoID: todoID, At: now})
	}
}

// openBlockerRecord returns the persistent blocker record for todoID if
// one is open, nil otherwise.
func (e *Engine) openBlockerRecord(taskID, todoID string) *model.Blocker {
	e.blockersMu.Lock()
	defer e.blockersMu.Unlock()
	record, ok := e.blockers[taskID][todoID]
	if !ok || !record.IsOpen() {
		return nil
	}
	copied := *record
	return &copied
}

func (e *Engine) blockerFor(g *taskGraph, todoID string, t *model.TodoItem, kind model.BlockerKind, description string, now time.Time) model.Blocker {
	severity := blockerSeverity(t.Priority == model.PriorityCritical, g.isOnCriticalPath(todoID))
	return model.Blocker{
		ID:           todoID + ":" + string(kind),
		TodoID:       todoID,
		Kind:         kind,
		Severity:     severity,
		Description:  description,
		DetectedAt:   now,
		AutoDetected: true,
	}
}
