package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lumia-zhu/aiplanner-sub000/internal/conversation"
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

// activeOptions returns the newest message carrying an active option set.
// Only one interactive message is active at a time.
func activeOptions(msgs []core.ChatMessage) (string, *core.Interactive, []conversation.Option) {
	for i := len(msgs) - 1; i >= 0; i-- {
		in := msgs[i].Interactive()
		if in == nil || !in.IsActive {
			continue
		}
		opts, _ := in.Data.([]conversation.Option)
		return msgs[i].ID, in, opts
	}
	return "", nil, nil
}

// optionEvent turns a chosen button into the event the session expects.
func optionEvent(messageID string, t core.InteractiveType, opt conversation.Option) (conversation.Event, error) {
	ev := conversation.Event{MessageID: messageID}
	switch t {
	case core.InteractiveWorkflowOptions:
		ev.Kind, ev.Flow = conversation.EventChooseFlow, conversation.Flow(opt.Value)
	case core.InteractiveSingleTaskAction:
		if opt.Value == string(conversation.EventBack) {
			ev.Kind = conversation.EventBack
		} else {
			ev.Kind, ev.Action = conversation.EventChooseAction, conversation.Action(opt.Value)
		}
	case core.InteractiveTaskSelection:
		ev.Kind, ev.TaskID = conversation.EventSelectTask, opt.Value
	case core.InteractiveFeelingOptions:
		ev.Kind, ev.Text = conversation.EventSubmitFeeling, opt.Value
	case core.InteractiveClarificationConfirm:
		ev.Kind = conversation.EventKind(opt.Value)
	case core.InteractiveEstimationConfirm:
		switch opt.Value {
		case "with_buffer":
			ev.Kind, ev.WithBuffer = conversation.EventConfirmEstimate, true
		case "without_buffer":
			ev.Kind = conversation.EventConfirmEstimate
		default:
			ev.Kind = conversation.EventCancel
		}
	default:
		return ev, fmt.Errorf("unsupported option set %q", t)
	}
	return ev, nil
}

// commands understood in any free-text mode.
var slashCommands = map[string]conversation.EventKind{
	"/back":   conversation.EventBack,
	"/cancel": conversation.EventCancel,
	"/skip":   conversation.EventSkip,
	"/accept": conversation.EventAcceptSubtasks,
	"/reject": conversation.EventRejectSubtasks,
	"/apply":  conversation.EventApply,
}

// textEvent interprets typed input for the current mode.
func textEvent(mode conversation.ModeKind, text string) (conversation.Event, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return conversation.Event{}, fmt.Errorf("type something first")
	}
	if kind, ok := slashCommands[strings.ToLower(text)]; ok {
		return conversation.Event{Kind: kind}, nil
	}

	switch mode {
	case conversation.KindClarificationInput:
		return conversation.Event{Kind: conversation.EventSubmitAnswer, Text: text}, nil
	case conversation.KindClarificationEdit:
		return conversation.Event{Kind: conversation.EventSubmitEdit, Text: text}, nil
	case conversation.KindContextInput:
		return conversation.Event{Kind: conversation.EventSubmitContext, Text: text}, nil
	case conversation.KindEstimationInput, conversation.KindEstimationReflection:
		minutes, err := parseMinutes(text)
		if err != nil {
			return conversation.Event{}, err
		}
		return conversation.Event{Kind: conversation.EventSubmitEstimate, Minutes: minutes}, nil
	case conversation.KindPriorityFeeling:
		return conversation.Event{Kind: conversation.EventSubmitFeeling, Text: text}, nil
	}
	return conversation.Event{}, fmt.Errorf("pick one of the options above")
}

// parseMinutes accepts "45", "45m", "45 minutes", "2h" and "1.5h".
func parseMinutes(text string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	unit := 1.0
	for _, suffix := range []string{" minutes", " minute", " min", "min", "m"} {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}
	for _, suffix := range []string{" hours", " hour", "hours", "hour", "h"} {
		if strings.HasSuffix(s, suffix) {
			s, unit = strings.TrimSpace(strings.TrimSuffix(s, suffix)), 60
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v*unit < 1 {
		return 0, fmt.Errorf("enter a duration in minutes, like 45 or 1.5h")
	}
	return int(v*unit + 0.5), nil
}
