package todograph

import (
	"sort"
	"time"

	"github.com/taskforge/orchestrator/pkg/model"
)

const progressCacheTTL = 5 * time.Minute

// Progress returns a task's completion rollup, serving a cached value
// when younger than progressCacheTTL and recomputing otherwise.
func (e *Engine) Progress(taskID string) model.ProgressSnapshot {
	e.progressMu.Lock()
	cached, ok := e.progressCache[taskID]
	e.progressMu.Unlock()
	if ok && e.clock.Now().Sub(cached.ComputedAt) < progressCacheTTL {
		return cached
	}

	snap := e.computeProgress(taskID)

	e.progressMu.Lock()
	e.progressCache[taskID] = snap
	e.progressMu.Unlock()
	return snap
}

func (e *Engine) computeProgress(taskID string) model.ProgressSnapshot {
	g := e.graphFor(taskID)
	g.mu.RLock()
	defer g.mu.RUnlock()

	now := e.clock.Now()
	snap := model.ProgressSnapshot{TaskID: taskID, ComputedAt: now}

	windowStart := now.AddDate(0, 0, -14)
	completedInWindow := 0

	for _, t := range g.nodes {
		snap.Total++
		switch t.Status {
		case model.TodoStatusCompleted:
			snap.Completed++
		case model.TodoStatusInProgress:
			snap.InProgress++
		case model.TodoStatusBlocked:
			snap.Blocked++
		}
		for _, h := range t.StatusHistory {
			if h.To == model.TodoStatusCompleted && !h.At.Before(windowStart) {
				completedInWindow++
			}
		}
	}

	if snap.Total > 0 {
		snap.CompletionPct = float64(snap.Completed) / float64(snap.Total) * 100
	}
	snap.Velocity = float64(completedInWindow) / 14.0
	snap.ProjectedCompletion = e.projectCompletion(snap, now)
	return snap
}

// ProjectCompletion returns the optimistic/realistic/pessimistic
// completion-date scenarios for a task, derived from its rolling 14-day
// velocity. A realistic velocity of zero with remaining
// work yields a zero-value (unknown) projection.
func (e *Engine) ProjectCompletion(taskID string) model.ProjectedCompletion {
	snap := e.Progress(taskID)
	return snap.ProjectedCompletion
}

func (e *Engine) projectCompletion(snap model.ProgressSnapshot, now time.Time) model.ProjectedCompletion {
	remaining := snap.Total - snap.Completed
	if remaining <= 0 {
		return model.ProjectedCompletion{Optimistic: now, Realistic: now, Pessimistic: now}
	}
	if snap.Velocity <= 0 {
		return model.ProjectedCompletion{}
	}

	daysRemaining := float64(remaining) / snap.Velocity
	realistic := now.AddDate(0, 0, int(daysRemaining+0.5))
	return model.ProjectedCompletion{
		Optimistic:  realistic.AddDate(0, 0, -3),
		Realistic:   realistic,
		Pessimistic: realistic.AddDate(0, 0, 7),
	}
}

// GenerateReport aggregates completed items within range, current
// blockers, progress, and (optionally) quality metrics and burndown
// visualization data. Quality metrics are left
// zero-valued here; the orchestrator facade fills them in from DQM's
// verdict history, which TGE has no visibility into.
func (e *Engine) GenerateReport(taskID string, rng model.ReportRange, cfg model.ReportConfig) model.ProgressReport {
	g := e.graphFor(taskID)
	g.mu.RLock()

	var completed []model.TodoItem
	for _, t := range g.nodes {
		for _, h := range t.StatusHistory {
			if h.To == model.TodoStatusCompleted && rng.Contains(h.At) {
				completed = append(completed, *t)
				break
			}
		}
	}
	g.mu.RUnlock()

	report := model.ProgressReport{
		TaskID:           taskID,
		Range:            rng,
		CompletedInRange: completed,
		OpenBlockers:     e.IdentifyBlockers(taskID),
		Progress:         e.Progress(taskID),
		GeneratedAt:      e.clock.Now(),
	}

	if cfg.IncludeQualityMetrics {
		report.Quality = &model.QualityMetrics{}
	}
	if cfg.IncludeVisualizationData {
		report.Burndown = e.burndown(taskID, rng)
	}
	return report
}

// burndown buckets completions by day across range, for a simple
// remaining-vs-completed chart.
func (e *Engine) burndown(taskID string, rng model.ReportRange) []model.BurndownPoint {
	g := e.graphFor(taskID)
	g.mu.RLock()
	defer g.mu.RUnlock()

	total := len(g.nodes)
	completedByDay := map[string]int{}
	for _, t := range g.nodes {
		for _, h := range t.StatusHistory {
			if h.To == model.TodoStatusCompleted && rng.Contains(h.At) {
				day := h.At.Format("2006-01-02")
				completedByDay[day]++
			}
		}
	}

	var days []string
	for d := range completedByDay {
		days = append(days, d)
	}
	sort.Strings(days)

	var points []model.BurndownPoint
	runningCompleted := 0
	for _, d := range days {
		runningCompleted += completedByDay[d]
		t, _ := time.Parse("2006-01-02", d)
		points = append(points, model.BurndownPoint{
			Date:      t,
			Completed: runningCompleted,
			Remaining: total - runningCompleted,
		})
	}
	return points
}
