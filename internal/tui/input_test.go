package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumia-zhu/aiplanner-sub000/internal/conversation"
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

func TestActiveOptions_NewestActiveWins(t *testing.T) {
	old := core.ChatMessage{ID: "m1", Content: []core.ContentPart{
		{Type: core.PartInteractive, Interactive: &core.Interactive{Type: core.InteractiveWorkflowOptions, IsActive: false}},
	}}
	current := core.ChatMessage{ID: "m2", Content: []core.ContentPart{
		core.TextPart("What next?"),
		core.InteractivePart(core.InteractiveSingleTaskAction, []conversation.Option{{Value: "clarify", Label: "Clarify"}}),
	}}
	plain := core.ChatMessage{ID: "m3", Content: []core.ContentPart{core.TextPart("ok")}}

	id, in, opts := activeOptions([]core.ChatMessage{old, current, plain})
	assert.Equal(t, "m2", id)
	require.NotNil(t, in)
	assert.Equal(t, core.InteractiveSingleTaskAction, in.Type)
	require.Len(t, opts, 1)

	id, in, _ = activeOptions([]core.ChatMessage{old})
	assert.Empty(t, id)
	assert.Nil(t, in)
}

func TestOptionEvent(t *testing.T) {
	tests := []struct {
		set  core.InteractiveType
		opt  string
		want conversation.Event
	}{
		{core.InteractiveWorkflowOptions, "prioritize", conversation.Event{Kind: conversation.EventChooseFlow, Flow: conversation.FlowPrioritize}},
		{core.InteractiveSingleTaskAction, "estimate", conversation.Event{Kind: conversation.EventChooseAction, Action: conversation.ActionEstimate}},
		{core.InteractiveSingleTaskAction, "back", conversation.Event{Kind: conversation.EventBack}},
		{core.InteractiveTaskSelection, "t1", conversation.Event{Kind: conversation.EventSelectTask, TaskID: "t1"}},
		{core.InteractiveFeelingOptions, "tired", conversation.Event{Kind: conversation.EventSubmitFeeling, Text: "tired"}},
		{core.InteractiveClarificationConfirm, "reject", conversation.Event{Kind: conversation.EventReject}},
		{core.InteractiveEstimationConfirm, "with_buffer", conversation.Event{Kind: conversation.EventConfirmEstimate, WithBuffer: true}},
		{core.InteractiveEstimationConfirm, "without_buffer", conversation.Event{Kind: conversation.EventConfirmEstimate}},
		{core.InteractiveEstimationConfirm, "cancel", conversation.Event{Kind: conversation.EventCancel}},
	}
	for _, tt := range tests {
		t.Run(string(tt.set)+"/"+tt.opt, func(t *testing.T) {
			got, err := optionEvent("msg", tt.set, conversation.Option{Value: tt.opt, Label: "label"})
			require.NoError(t, err)
			tt.want.MessageID = "msg"
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := optionEvent("msg", core.InteractiveType("unknown"), conversation.Option{})
	assert.Error(t, err)
}

func TestTextEvent(t *testing.T) {
	ev, err := textEvent(conversation.KindClarificationInput, "  the talk is on Friday ")
	require.NoError(t, err)
	assert.Equal(t, conversation.Event{Kind: conversation.EventSubmitAnswer, Text: "the talk is on Friday"}, ev)

	ev, err = textEvent(conversation.KindEstimationReflection, "1.5h")
	require.NoError(t, err)
	assert.Equal(t, 90, ev.Minutes)
	assert.Equal(t, conversation.EventSubmitEstimate, ev.Kind)

	ev, err = textEvent(conversation.KindSingleTask, "/accept")
	require.NoError(t, err)
	assert.Equal(t, conversation.EventAcceptSubtasks, ev.Kind)

	ev, err = textEvent(conversation.KindContextInput, "/SKIP")
	require.NoError(t, err)
	assert.Equal(t, conversation.EventSkip, ev.Kind)

	_, err = textEvent(conversation.KindInitial, "hello")
	assert.Error(t, err)
	_, err = textEvent(conversation.KindClarificationInput, "   ")
	assert.Error(t, err)
	_, err = textEvent(conversation.KindEstimationInput, "soon")
	assert.Error(t, err)
}

func TestParseMinutes(t *testing.T) {
	for in, want := range map[string]int{
		"45":         45,
		"45m":        45,
		"45 minutes": 45,
		"30 min":     30,
		"2h":         120,
		"2 hours":    120,
		"1.5h":       90,
	} {
		got, err := parseMinutes(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "0", "-5", "abc", "0.2"} {
		_, err := parseMinutes(in)
		assert.Error(t, err, in)
	}
}
