package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
	"github.com/lumia-zhu/aiplanner-sub000/internal/testutil"
)

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not finish")
	}
}

func TestStreamer_SupersededStreamNeverAppends(t *testing.T) {
	log := NewLog("s1", "u1", time.Now(), nil, nil, nil)
	st := NewStreamer(log, nil, "s1", 2, 10*time.Millisecond)

	first := st.Stream(strings.Repeat("A", 40), nil)
	second := st.Stream("B", nil)
	waitDone(t, second)
	waitDone(t, first)

	msgs := log.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "B", msgs[0].Text())
	assert.Equal(t, core.RoleAssistant, msgs[0].Role)
	assert.False(t, st.Streaming())
}

func TestStreamer_ChunksInOrder(t *testing.T) {
	bus := events.New(64)
	defer bus.Close()
	chunks := bus.Subscribe(events.TypeStreamChunk)
	final := bus.Subscribe(events.TypeMessageFinalized)

	log := NewLog("s1", "u1", time.Now(), nil, bus, nil)
	st := NewStreamer(log, bus, "s1", 3, 0)
	waitDone(t, st.Stream("héllo wörld", nil))

	var got []string
	for len(got) < 4 {
		select {
		case e := <-chunks:
			got = append(got, e.(events.StreamChunkEvent).Chunk)
		case <-time.After(time.Second):
			t.Fatalf("only got %v", got)
		}
	}
	assert.Equal(t, []string{"hél", "lo ", "wör", "ld"}, got)

	select {
	case e := <-final:
		assert.Equal(t, "héllo wörld", e.(events.MessageFinalizedEvent).Message.Text())
	case <-time.After(time.Second):
		t.Fatal("no finalized event")
	}
}

func TestStreamer_InteractiveAttachedAndOlderDeactivated(t *testing.T) {
	log := NewLog("s1", "u1", time.Now(), nil, nil, nil)
	st := NewStreamer(log, nil, "s1", 8, 0)

	waitDone(t, st.Stream("first", &core.Interactive{Type: core.InteractiveWorkflowOptions, IsActive: true}))
	waitDone(t, st.Stream("second", &core.Interactive{Type: core.InteractiveSingleTaskAction, IsActive: true}))

	msgs := log.Messages()
	require.Len(t, msgs, 2)
	assert.False(t, msgs[0].Interactive().IsActive)
	assert.True(t, msgs[1].Interactive().IsActive)
	assert.Equal(t, core.InteractiveSingleTaskAction, msgs[1].Interactive().Type)
}

func TestStreamer_CancelAndWait(t *testing.T) {
	log := NewLog("s1", "u1", time.Now(), nil, nil, nil)
	st := NewStreamer(log, nil, "s1", 1, 20*time.Millisecond)

	done := st.Stream("a long message", nil)
	assert.True(t, st.Streaming())
	st.Cancel()
	require.NoError(t, st.Wait(context.Background()))
	waitDone(t, done)
	assert.Zero(t, log.Len())
}

func TestLog_DeactivateOnce(t *testing.T) {
	store := testutil.NewMemoryChatStore()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	log := NewLog("s1", "u1", day, store, nil, nil)
	log.Append(core.ChatMessage{ID: "m1", Content: []core.ContentPart{
		core.TextPart("pick"),
		core.InteractivePart(core.InteractiveFeelingOptions, nil),
	}})
	log.Append(core.ChatMessage{ID: "m2", Content: []core.ContentPart{core.TextPart("plain")}})

	require.NoError(t, log.Deactivate("m1"))
	assert.True(t, core.IsCategory(log.Deactivate("m1"), core.ErrCatState))
	assert.True(t, core.IsCategory(log.Deactivate("m2"), core.ErrCatState))
	assert.True(t, core.IsCategory(log.Deactivate("nope"), core.ErrCatNotFound))

	got, ok := log.Get("m1")
	require.True(t, ok)
	assert.False(t, got.Interactive().IsActive)
	persisted, err := store.ListMessages(context.Background(), "u1", day)
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}
