package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/taskforge/orchestrator/pkg/model"
)

var identifierPattern = regexp.MustCompile(`\b[a-z]+[A-Z][a-zA-Z0-9]*\b|\b[a-z][a-z0-9]*_[a-z0-9_]+\b`)

var integrationKeywords = []string{"integrate", "integration", "api", "migrate", "migration", "sync", "webhook"}

const (
	minEffortHours = 0.5
	maxEffortHours = 80
)

// dependencyMarkers maps a lexical marker to how the remainder of the
// sentence after it names a prior key point, so dependencies can be
// derived from lexical cues rather than explicit references.
var dependencyMarkers = []string{"after", "requires", "depends on", "once"}

// generateTodos decomposes key points into a dependency-ordered DAG of
// TodoItems, one or more per key point, per the documented stage 4.
func generateTodos(taskID string, keyPoints []model.KeyPoint, workgroups []model.RelatedWorkgroup) []model.TodoItem {
	todos := make([]model.TodoItem, 0, len(keyPoints))

	for i, kp := range keyPoints {
		todo := model.TodoItem{
			ID:                fmt.Sprintf("todo-%s", uuid.NewString()),
			TaskID:            taskID,
			Title:             truncate(kp.Text, 120),
			Description:       kp.Text,
			Category:          kp.Category,
			Priority:          model.PriorityMedium,
			Status:            model.TodoStatusPending,
			EstimatedHours:    estimateEffort(kp.Text),
			RelatedWorkgroups: matchingWorkgroups(kp.Text, workgroups),
		}

		if dep := findExplicitDependency(kp.Text, keyPoints[:i], todos); dep != "" {
			todo.Dependencies = append(todo.Dependencies, dep)
		} else if dep := findCategoryDependency(kp.Category, todos); dep != "" {
			todo.Dependencies = append(todo.Dependencies, dep)
		}

		todos = append(todos, todo)
	}
	return todos
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "of": true,
	"to": true, "and": true, "in": true, "on": true, "for": true, "with": true,
	"this": true, "that": true, "has": true, "been": true, "it": true,
}

// significantWords splits s and drops short/stop words, leaving the
// content words used for dependency-target matching.
func significantWords(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?")
		if len(w) < 4 || stopWords[w] {
			continue
		}
		out[w] = true
	}
	return out
}

// findExplicitDependency looks for a lexical marker ("after X", "requires
// X", ...) in text and, if the referenced phrase shares significant
// words with an earlier key point, returns that key point's generated
// todo id.
func findExplicitDependency(text string, priorKeyPoints []model.KeyPoint, priorTodos []model.TodoItem) string {
	lower := strings.ToLower(text)
	for _, marker := range dependencyMarkers {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		remainder := strings.TrimSpace(lower[idx+len(marker):])
		if comma := strings.IndexAny(remainder, ",."); comma >= 0 {
			remainder = remainder[:comma]
		}
		if remainder == "" {
			continue
		}
		targetWords := significantWords(remainder)
		if len(targetWords) == 0 {
			continue
		}

		bestIdx, bestOverlap := -1, 0
		for j, prior := range priorKeyPoints {
			overlap := 0
			for w := range significantWords(prior.Text) {
				if targetWords[w] {
					overlap++
				}
			}
			if overlap > bestOverlap {
				bestIdx, bestOverlap = j, overlap
			}
		}
		if bestIdx >= 0 {
			return priorTodos[bestIdx].ID
		}
	}
	return ""
}

// findCategoryDependency returns the most recently generated todo whose
// category sorts strictly earlier than category, under the ordering
// research < design < development < testing < review < approval,
// serializing the pipeline by default when no
// explicit marker is present.
func findCategoryDependency(category string, priorTodos []model.TodoItem) string {
	myRank, ok := categoryOrder[category]
	if !ok {
		return ""
	}
	for i := len(priorTodos) - 1; i >= 0; i-- {
		rank, ok := categoryOrder[priorTodos[i].Category]
		if ok && rank < myRank {
			return priorTodos[i].ID
		}
	}
	return ""
}

// matchingWorkgroups returns the team ids from workgroups whose matched
// skills overlap (case-insensitively) with text, per the documented stage 4's
// "assign candidate workgroups by skill overlap".
func matchingWorkgroups(text string, workgroups []model.RelatedWorkgroup) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, wg := range workgroups {
		for _, skill := range wg.SkillMatch.MatchedSkills {
			if skill != "" && strings.Contains(lower, strings.ToLower(skill)) {
				out = append(out, wg.TeamID)
				break
			}
		}
	}
	return out
}

// estimateEffort heuristically projects a todo's duration from text
// length, identifier density, and integration keywords, clamped to
// [0.5h, 80h].
func estimateEffort(text string) float64 {
	words := strings.Fields(text)
	hours := 2.0 + float64(len(words))*0.15
	hours += float64(len(identifierPattern.FindAllString(text, -1))) * 0.5

	lower := strings.ToLower(text)
	for _, kw := range integrationKeywords {
		if strings.Contains(lower, kw) {
			hours += 4
			break
		}
	}

	if hours < minEffortHours {
		hours = minEffortHours
	}
	if hours > maxEffortHours {
		hours = maxEffortHours
	}
	return hours
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
