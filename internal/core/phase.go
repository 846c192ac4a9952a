package core

import "fmt"

// WorkflowPhase represents a stage of the refinement workflow.
type WorkflowPhase string

const (
	PhaseInitial      WorkflowPhase = "initial"
	PhaseAnalyzing    WorkflowPhase = "analyzing"
	PhaseClarifying   WorkflowPhase = "clarifying"
	PhaseDecomposing  WorkflowPhase = "decomposing"
	PhaseEstimating   WorkflowPhase = "estimating"
	PhasePrioritizing WorkflowPhase = "prioritizing"
	PhaseChecking     WorkflowPhase = "checking"
	PhaseCompleted    WorkflowPhase = "completed"
)

// AllPhases returns every phase in canonical order.
func AllPhases() []WorkflowPhase {
	return []WorkflowPhase{
		PhaseInitial,
		PhaseAnalyzing,
		PhaseClarifying,
		PhaseDecomposing,
		PhaseEstimating,
		PhasePrioritizing,
		PhaseChecking,
		PhaseCompleted,
	}
}

// ValidPhase checks if a phase is valid.
func ValidPhase(p WorkflowPhase) bool {
	for _, phase := range AllPhases() {
		if phase == p {
			return true
		}
	}
	return false
}

// ParsePhase converts a string to WorkflowPhase.
func ParsePhase(s string) (WorkflowPhase, error) {
	p := WorkflowPhase(s)
	if !ValidPhase(p) {
		return "", fmt.Errorf("invalid phase: %s", s)
	}
	return p, nil
}

// String returns the string representation.
func (p WorkflowPhase) String() string {
	return string(p)
}

// Terminal reports whether the phase ends the workflow.
func (p WorkflowPhase) Terminal() bool {
	return p == PhaseCompleted
}

// Description returns a human-readable description.
func (p WorkflowPhase) Description() string {
	switch p {
	case PhaseInitial:
		return "Workflow created, nothing analysed yet"
	case PhaseAnalyzing:
		return "Inspecting tasks to decide which refinements they need"
	case PhaseClarifying:
		return "Asking questions about ambiguous tasks"
	case PhaseDecomposing:
		return "Breaking large tasks into subtasks"
	case PhaseEstimating:
		return "Estimating task durations"
	case PhasePrioritizing:
		return "Placing tasks on the urgency/importance matrix"
	case PhaseChecking:
		return "Producing execution checklists"
	case PhaseCompleted:
		return "Refinement finished"
	default:
		return "Unknown phase"
	}
}
