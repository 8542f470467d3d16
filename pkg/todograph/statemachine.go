package todograph

import (
	"github.com/taskforge/orchestrator/pkg/model"
)

// legalTransitions encodes the allowed TodoStatus transitions.
var legalTransitions = map[model.TodoStatus]map[model.TodoStatus]bool{
	model.TodoStatusPending: {
		model.TodoStatusInProgress: true,
		model.TodoStatusBlocked:    true,
	},
	model.TodoStatusInProgress: {
		model.TodoStatusPending:   true,
		model.TodoStatusCompleted: true, // iff completion criteria met
		model.TodoStatusBlocked:   true,
	},
	model.TodoStatusCompleted: {}, // terminal
	model.TodoStatusBlocked: {
		model.TodoStatusPending:    true,
		model.TodoStatusInProgress: true,
	},
}

// IsLegalTransition reports whether from -> to is ever permitted by the
// state machine shape, independent of the dependency-closure and
// completion-criteria checks enforced elsewhere.
func IsLegalTransition(from, to model.TodoStatus) bool {
	if from == to {
		return false
	}
	return legalTransitions[from][to]
}
