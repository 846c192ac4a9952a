package testutil

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/ai"
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

func userRequest(text string) ai.Request {
	return ai.Request{Messages: []ai.Message{{Role: "user", Content: text}}}
}

func TestMockProvider_Resolution(t *testing.T) {
	m := NewMockProvider().
		On("decompose", `{"subtasks":[]}`).
		OnError("explode", ErrTest).
		Enqueue(MockResponse{Content: "queued"})

	ctx := context.Background()
	r, _ := m.Complete(ctx, userRequest("decompose this"))
	AssertEqual(t, r.Content, "queued")

	r, _ = m.Complete(ctx, userRequest("decompose this"))
	AssertEqual(t, r.Content, `{"subtasks":[]}`)

	_, err := m.Complete(ctx, userRequest("explode"))
	AssertTrue(t, errors.Is(err, ErrTest), "rule error returned")

	r, _ = m.Complete(ctx, userRequest("anything"))
	AssertEqual(t, r.Content, "OK")
	AssertEqual(t, m.CallCount("Complete"), 4)

	m.Reset()
	AssertEqual(t, m.CallCount(""), 0)
}

func TestMockProvider_StreamChunksByRune(t *testing.T) {
	m := NewMockProvider().WithResponse("héllo wörld")
	var chunks []string
	resp, err := m.Stream(context.Background(), userRequest("x"), func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	AssertNoError(t, err)
	AssertEqual(t, strings.Join(chunks, ""), resp.Content)
	AssertEqual(t, chunks[0], "héll")
	AssertEqual(t, m.CallCount("Stream"), 1)
}

func TestMockProvider_DelayHonoursContext(t *testing.T) {
	m := NewMockProvider().WithDelay(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Complete(ctx, userRequest("x"))
	AssertTrue(t, errors.Is(err, context.DeadlineExceeded), "delay must stop at the deadline")
}

func TestMemoryStores(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)

	tasks := NewMemoryTaskStore()
	AssertNoError(t, tasks.CreateTask(ctx, &core.Task{ID: "a", UserID: "u", Date: core.DateKey(day), Title: "A"}))
	AssertError(t, tasks.CreateTask(ctx, &core.Task{ID: "a"}))
	list, err := tasks.ListTasks(ctx, "u", day)
	AssertNoError(t, err)
	AssertLen(t, list, 1)
	list[0].Title = "mutated"
	got, _ := tasks.GetTask(ctx, "a")
	AssertEqual(t, got.Title, "A")

	chat := NewMemoryChatStore()
	AssertNoError(t, chat.AppendMessage(ctx, "u", day, core.ChatMessage{ID: "m1"}))
	msgs, _ := chat.ListMessages(ctx, "u", day)
	AssertLen(t, msgs, 1)
	AssertNoError(t, chat.ClearMessages(ctx, "u", day))
	msgs, _ = chat.ListMessages(ctx, "u", day)
	AssertLen(t, msgs, 0)

	profiles := NewMemoryProfileStore()
	AssertNoError(t, profiles.AppendCustomTag(ctx, "u", "deep-work"))
	AssertNoError(t, profiles.AppendCustomTag(ctx, "u", "deep-work"))
	p, err := profiles.GetProfile(ctx, "u")
	AssertNoError(t, err)
	AssertLen(t, p.CustomTags, 1)
}
