package workflow

import "github.com/lumia-zhu/aiplanner-sub000/internal/core"

// Transitions lists the legal next phases of each phase. The first entry is
// taken when a phase has no step or is skipped.
var Transitions = map[core.WorkflowPhase][]core.WorkflowPhase{
	core.PhaseInitial:      {core.PhaseAnalyzing},
	core.PhaseAnalyzing:    {core.PhaseClarifying, core.PhaseDecomposing, core.PhaseEstimating, core.PhasePrioritizing},
	core.PhaseClarifying:   {core.PhaseDecomposing, core.PhaseEstimating, core.PhasePrioritizing},
	core.PhaseDecomposing:  {core.PhaseEstimating, core.PhasePrioritizing},
	core.PhaseEstimating:   {core.PhasePrioritizing},
	core.PhasePrioritizing: {core.PhaseChecking},
	core.PhaseChecking:     {core.PhaseCompleted},
	core.PhaseCompleted:    {},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to core.WorkflowPhase) bool {
	for _, p := range Transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// DefaultNext returns the first legal successor of phase.
func DefaultNext(phase core.WorkflowPhase) (core.WorkflowPhase, bool) {
	next := Transitions[phase]
	if len(next) == 0 {
		return "", false
	}
	return next[0], true
}
