package conversation

import (
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
)

// EffectKind names a side effect requested by Transition.
type EffectKind string

const (
	// EffectSay streams an assistant message.
	EffectSay EffectKind = "say"

	// EffectPrompt streams an interactive option set after the transition
	// delay, unless the epoch moved on.
	EffectPrompt EffectKind = "prompt"

	// EffectClose streams the closing message and collapses the sidebar.
	EffectClose EffectKind = "close"

	EffectClarify         EffectKind = "clarify"
	EffectStructureAnswer EffectKind = "structure_answer"
	EffectCommitContext   EffectKind = "commit_context"
	EffectDecompose       EffectKind = "decompose"
	EffectCommitSubtasks  EffectKind = "commit_subtasks"
	EffectReflectEstimate EffectKind = "reflect_estimate"
	EffectCommitEstimate  EffectKind = "commit_estimate"
	EffectPrioritize      EffectKind = "prioritize"
	EffectApplyPriorities EffectKind = "apply_priorities"
)

// Effect is one side effect. Only the fields relevant to Kind are set.
type Effect struct {
	Kind EffectKind

	Text        string
	Interactive core.InteractiveType
	Epoch       uint64

	TaskID     string
	Questions  []string
	Answer     string
	Context    *core.StructuredContext
	Subtasks   []tools.Subtask
	Minutes    int
	WithBuffer bool
	Feeling    string
	Priorities []tools.TaskPriority
}

func say(text string) Effect {
	return Effect{Kind: EffectSay, Text: text}
}

func prompt(t core.InteractiveType, text string, epoch uint64) Effect {
	return Effect{Kind: EffectPrompt, Interactive: t, Text: text, Epoch: epoch}
}
