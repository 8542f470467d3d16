// Package todograph implements the Todo Graph Engine (TGE): authoritative
// owner of every todo's status, dependencies, blockers, and progress
// rollups for a task. Todos are held as an arena-style
// in-memory graph per task, persisted through the
// injected TaskStore as explicit edge sets.
package todograph

import (
	"sort"
	"sync"

	"github.com/mohae/deepcopy"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/model"
)

// taskGraph is the in-memory arena for one task's todos.
type taskGraph struct {
	mu    sync.RWMutex
	nodes map[string]*model.TodoItem // todoID -> node
}

func newTaskGraph() *taskGraph {
	return &taskGraph{nodes: map[string]*model.TodoItem{}}
}

// dependents returns, for every todo id, the set of todo ids that depend
// on it (reverse edges), computed from the forward Dependencies edges.
func (g *taskGraph) dependents() map[string][]string {
	out := map[string][]string{}
	for id, t := range g.nodes {
		for _, dep := range t.Dependencies {
			out[dep] = append(out[dep], id)
		}
	}
	return out
}

// detectCycle reports whether the dependency graph (as it would be with
// candidate's Dependencies applied) contains a cycle.
func (g *taskGraph) detectCycle() bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		switch color[id] {
		case gray:
			return true // back edge: cycle
		case black:
			return false
		}
		color[id] = gray
		if node, ok := g.nodes[id]; ok {
			for _, dep := range node.Dependencies {
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for id := range g.nodes {
		if color[id] == white {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// transitiveDependencyClosure returns every todo id reachable via
// Dependencies edges starting from id (not including id itself).
func (g *taskGraph) transitiveDependencyClosure(id string) []string {
	seen := map[string]bool{}
	var out []string

	var walk func(string)
	walk = func(cur string) {
		node, ok := g.nodes[cur]
		if !ok {
			return
		}
		for _, dep := range node.Dependencies {
			if !seen[dep] {
				seen[dep] = true
				out = append(out, dep)
				walk(dep)
			}
		}
	}
	walk(id)
	return out
}

// criticalPathHours returns the longest-duration path (sum of
// EstimatedHours) from id to any terminal todo (one with no dependents),
// traversing forward through dependents.
func (g *taskGraph) criticalPathHours(deps map[string][]string, id string) float64 {
	node, ok := g.nodes[id]
	if !ok {
		return 0
	}
	children := deps[id]
	if len(children) == 0 {
		return node.EstimatedHours
	}
	best := 0.0
	for _, child := range children {
		if h := g.criticalPathHours(deps, child); h > best {
			best = h
		}
	}
	return node.EstimatedHours + best
}

// isOnCriticalPath reports whether id lies on the task's longest
// dependency-to-terminal path.
func (g *taskGraph) isOnCriticalPath(id string) bool {
	deps := g.dependents()

	var longest float64
	var longestRoot string
	for nodeID, node := range g.nodes {
		if len(node.Dependencies) == 0 {
			if h := g.criticalPathHours(deps, nodeID); h > longest {
				longest = h
				longestRoot = nodeID
			}
		}
	}
	if longestRoot == "" {
		return false
	}

	// Walk the critical path from longestRoot, always choosing the child
	// with the longer remaining path, and check membership.
	cur := longestRoot
	for {
		if cur == id {
			return true
		}
		children := deps[cur]
		if len(children) == 0 {
			return false
		}
		var next string
		best := -1.0
		for _, child := range children {
			if h := g.criticalPathHours(deps, child); h > best {
				best = h
				next = child
			}
		}
		cur = next
	}
}

// snapshot returns a defensive deep copy of every node, safe to hand to
// callers outside the engine.
func (g *taskGraph) snapshot() []model.TodoItem {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]model.TodoItem, 0, len(g.nodes))
	for _, n := range g.nodes {
		copied := deepcopy.Copy(*n).(model.TodoItem)
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *taskGraph) get(id string) (*model.TodoItem, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("todo")
	}
	return node, nil
}
