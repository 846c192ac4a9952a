package conversation

import (
	"fmt"
	"strings"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
)

// Canned assistant texts.
const (
	TextGreeting        = "Hi! What would you like to do with your tasks today?"
	TextPickAction      = "What should we do with a single task?"
	TextPickTask        = "Which task?"
	TextContextPrompt   = "Anything I should know before breaking it down? Reply or skip."
	TextEstimatePrompt  = "How many minutes do you think it will take?"
	TextRevisePrompt    = "Now that you've thought it over, how many minutes?"
	TextBufferPrompt    = "Add a time buffer for the unexpected?"
	TextFeelingPrompt   = "How are you feeling about today?"
	TextConfirmPrompt   = "Did I get that right?"
	TextEditPrompt      = "Tell me what to change."
	TextContextSaved    = "Saved. The task now carries this context."
	TextSubtasksSaved   = "Subtasks added to your list."
	TextSubtasksDropped = "No problem, I left the task as it was."
	TextEstimateSaved   = "Estimate saved."
	TextPrioritiesSaved = "Priorities applied to your tasks."
	TextNextPrompt      = "What next?"
	TextApology         = "Sorry, something went wrong on my side. Let's try that again."
	TextGoodbye         = "Great, good luck with your day!"
)

// Transition computes the next state and the effects of ev. It never
// mutates its input and has no side effects. Every accepted event bumps
// the epoch; rejected events leave the state unchanged.
func Transition(s State, ev Event) (State, []Effect, error) {
	if s.Mode == nil {
		s.Mode = Initial{}
	}
	if _, ok := s.Mode.(Ended); ok {
		return s, nil, core.ErrInvalidTransition(string(KindEnded), string(ev.Kind))
	}
	epoch := s.Epoch + 1

	if ev.Kind == EventEffectFailed {
		return failed(s.Mode, epoch)
	}

	next, effects, ok := step(s.Mode, ev, epoch)
	if !ok {
		return s, nil, core.ErrInvalidTransition(string(s.Mode.Kind()), string(ev.Kind))
	}
	return State{Mode: next, Epoch: epoch}, effects, nil
}

func failed(m Mode, epoch uint64) (State, []Effect, error) {
	if workflowLevel(m.Kind()) {
		return State{Mode: Initial{}, Epoch: epoch}, []Effect{
			say(TextApology),
			prompt(core.InteractiveWorkflowOptions, TextNextPrompt, epoch),
		}, nil
	}
	return State{Mode: SingleTaskAction{}, Epoch: epoch}, []Effect{
		say(TextApology),
		prompt(core.InteractiveSingleTaskAction, TextPickAction, epoch),
	}, nil
}

func toActions(epoch uint64, effects ...Effect) (Mode, []Effect, bool) {
	return SingleTaskAction{}, append(effects, prompt(core.InteractiveSingleTaskAction, TextPickAction, epoch)), true
}

func toInitial(epoch uint64, effects ...Effect) (Mode, []Effect, bool) {
	return Initial{}, append(effects, prompt(core.InteractiveWorkflowOptions, TextNextPrompt, epoch)), true
}

func step(m Mode, ev Event, epoch uint64) (Mode, []Effect, bool) {
	switch m := m.(type) {
	case Initial:
		if ev.Kind != EventChooseFlow {
			return nil, nil, false
		}
		switch ev.Flow {
		case FlowSingleTask:
			return SingleTaskAction{}, []Effect{prompt(core.InteractiveSingleTaskAction, TextPickAction, epoch)}, true
		case FlowPrioritize:
			return PriorityFeeling{}, []Effect{prompt(core.InteractiveFeelingOptions, TextFeelingPrompt, epoch)}, true
		case FlowEnd:
			return Ended{}, []Effect{{Kind: EffectClose, Text: TextGoodbye}}, true
		}

	case SingleTaskAction:
		switch ev.Kind {
		case EventChooseAction:
			if !ev.Action.Valid() {
				return nil, nil, false
			}
			return TaskSelection{Action: ev.Action}, []Effect{prompt(core.InteractiveTaskSelection, TextPickTask, epoch)}, true
		case EventBack:
			return toInitial(epoch)
		}

	case TaskSelection:
		switch ev.Kind {
		case EventSelectTask:
			if ev.TaskID == "" {
				return toActions(epoch)
			}
			switch m.Action {
			case ActionClarify:
				return ClarificationInput{TaskID: ev.TaskID}, []Effect{{Kind: EffectClarify, TaskID: ev.TaskID}}, true
			case ActionDecompose:
				return ContextInput{TaskID: ev.TaskID}, []Effect{say(TextContextPrompt)}, true
			case ActionEstimate:
				return EstimationInput{TaskID: ev.TaskID}, []Effect{say(TextEstimatePrompt)}, true
			}
		case EventBack, EventCancel:
			return toActions(epoch)
		}

	case ClarificationInput:
		return stepClarification(m, ev, epoch)

	case ClarificationEdit:
		switch ev.Kind {
		case EventSubmitEdit:
			proposal := ev.Context
			if proposal == nil {
				if strings.TrimSpace(ev.Text) == "" {
					return nil, nil, false
				}
				edited := *m.Proposal
				edited.Summary = strings.TrimSpace(ev.Text)
				proposal = &edited
			}
			next := ClarificationInput{TaskID: m.TaskID, Questions: m.Questions, Answer: m.Answer, Proposal: proposal}
			return next, confirmEffects(proposal, epoch), true
		case EventCancel:
			next := ClarificationInput{TaskID: m.TaskID, Questions: m.Questions, Answer: m.Answer, Proposal: m.Proposal}
			return next, []Effect{prompt(core.InteractiveClarificationConfirm, TextConfirmPrompt, epoch)}, true
		}

	case ContextInput:
		switch ev.Kind {
		case EventSubmitContext, EventSkip:
			text := ""
			if ev.Kind == EventSubmitContext {
				text = strings.TrimSpace(ev.Text)
			}
			return SingleTask{TaskID: m.TaskID, Context: text},
				[]Effect{{Kind: EffectDecompose, TaskID: m.TaskID, Text: text}}, true
		case EventCancel, EventBack:
			return toActions(epoch)
		}

	case SingleTask:
		switch ev.Kind {
		case EventDecompositionReady:
			if ev.Decomposition == nil {
				return nil, nil, false
			}
			return SingleTask{TaskID: m.TaskID, Context: m.Context, Proposal: ev.Decomposition},
				[]Effect{say(describeDecomposition(ev.Decomposition))}, true
		case EventAcceptSubtasks:
			if m.Proposal == nil {
				return nil, nil, false
			}
			return toActions(epoch,
				Effect{Kind: EffectCommitSubtasks, TaskID: m.TaskID, Subtasks: m.Proposal.Subtasks},
				say(TextSubtasksSaved))
		case EventRejectSubtasks, EventCancel:
			return toActions(epoch, say(TextSubtasksDropped))
		}

	case EstimationInput:
		switch ev.Kind {
		case EventSubmitEstimate:
			if ev.Minutes < 1 {
				return nil, nil, false
			}
			return EstimationReflection{TaskID: m.TaskID, Initial: ev.Minutes},
				[]Effect{{Kind: EffectReflectEstimate, TaskID: m.TaskID, Minutes: ev.Minutes}}, true
		case EventCancel, EventBack:
			return toActions(epoch)
		}

	case EstimationReflection:
		switch ev.Kind {
		case EventReflectionReady:
			return EstimationReflection{TaskID: m.TaskID, Initial: m.Initial, Reflection: ev.Text},
				[]Effect{say(ev.Text + "\n\n" + TextRevisePrompt)}, true
		case EventSubmitEstimate:
			if ev.Minutes < 1 {
				return nil, nil, false
			}
			return EstimationBuffer{TaskID: m.TaskID, Minutes: ev.Minutes},
				[]Effect{prompt(core.InteractiveEstimationConfirm, TextBufferPrompt, epoch)}, true
		case EventCancel, EventBack:
			return toActions(epoch)
		}

	case EstimationBuffer:
		switch ev.Kind {
		case EventConfirmEstimate:
			return toActions(epoch,
				Effect{Kind: EffectCommitEstimate, TaskID: m.TaskID, Minutes: m.Minutes, WithBuffer: ev.WithBuffer},
				say(TextEstimateSaved))
		case EventCancel, EventBack:
			return toActions(epoch)
		}

	case PriorityFeeling:
		switch ev.Kind {
		case EventSubmitFeeling:
			feeling := strings.TrimSpace(ev.Text)
			return PriorityFeeling{Feeling: feeling}, []Effect{{Kind: EffectPrioritize, Feeling: feeling}}, true
		case EventPrioritiesReady:
			if ev.Priorities == nil {
				return nil, nil, false
			}
			return PriorityMatrix{Feeling: m.Feeling, Result: ev.Priorities},
				[]Effect{say(describePriorities(ev.Priorities, ev.Titles))}, true
		case EventBack, EventCancel:
			return toInitial(epoch)
		}

	case PriorityMatrix:
		switch ev.Kind {
		case EventApply:
			return toInitial(epoch,
				Effect{Kind: EffectApplyPriorities, Priorities: m.Result.Priorities},
				say(TextPrioritiesSaved))
		case EventBack, EventCancel:
			return toInitial(epoch)
		}
	}
	return nil, nil, false
}

func stepClarification(m ClarificationInput, ev Event, epoch uint64) (Mode, []Effect, bool) {
	switch ev.Kind {
	case EventQuestionsReady:
		if m.Proposal != nil {
			return nil, nil, false
		}
		return ClarificationInput{TaskID: m.TaskID, Questions: ev.Questions},
			[]Effect{say(describeQuestions(ev.Questions))}, true
	case EventSubmitAnswer:
		answer := strings.TrimSpace(ev.Text)
		if answer == "" || m.Proposal != nil {
			return nil, nil, false
		}
		return ClarificationInput{TaskID: m.TaskID, Questions: m.Questions, Answer: answer},
			[]Effect{{Kind: EffectStructureAnswer, TaskID: m.TaskID, Questions: m.Questions, Answer: answer}}, true
	case EventAnswerStructured:
		if ev.Context == nil {
			return nil, nil, false
		}
		next := m
		next.Proposal = ev.Context
		return next, confirmEffects(ev.Context, epoch), true
	case EventConfirm:
		if m.Proposal == nil {
			return nil, nil, false
		}
		return toActions(epoch,
			Effect{Kind: EffectCommitContext, TaskID: m.TaskID, Answer: m.Answer, Context: m.Proposal},
			say(TextContextSaved))
	case EventReject:
		if m.Proposal == nil {
			return nil, nil, false
		}
		return ClarificationEdit{TaskID: m.TaskID, Questions: m.Questions, Answer: m.Answer, Proposal: m.Proposal},
			[]Effect{say(TextEditPrompt)}, true
	case EventSkip, EventCancel, EventBack:
		return toActions(epoch)
	}
	return nil, nil, false
}

func confirmEffects(c *core.StructuredContext, epoch uint64) []Effect {
	return []Effect{
		say("Here's what I understood:\n" + c.Describe()),
		prompt(core.InteractiveClarificationConfirm, TextConfirmPrompt, epoch),
	}
}

func describeQuestions(qs []string) string {
	if len(qs) == 0 {
		return "Tell me a bit more about this task."
	}
	var b strings.Builder
	b.WriteString("A few questions to make this task concrete:")
	for i, q := range qs {
		fmt.Fprintf(&b, "\n%d. %s", i+1, q)
	}
	return b.String()
}

func describeDecomposition(d *tools.DecomposeOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here's a %s breakdown (about %d minutes):", d.Complexity, d.TotalEstimatedMinutes)
	for i, st := range d.Subtasks {
		fmt.Fprintf(&b, "\n%d. %s (%d min)", i+1, st.Title, st.EstimatedMinutes)
	}
	if d.Reasoning != "" {
		b.WriteString("\n\n" + d.Reasoning)
	}
	return b.String()
}

func describePriorities(out *tools.PrioritizeOutput, titles map[string]string) string {
	var b strings.Builder
	b.WriteString("Here's how I'd order your day:")
	for _, p := range out.Priorities {
		name := titles[p.TaskID]
		if name == "" {
			name = p.TaskID
		}
		fmt.Fprintf(&b, "\n%d. %s [%s]", p.SuggestedOrder, name, p.Quadrant)
	}
	if out.Strategy != "" {
		b.WriteString("\n\n" + out.Strategy)
	}
	return b.String()
}
