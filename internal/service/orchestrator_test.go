package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/lexdesk/internal/ai"
	"github.com/xxxsen/lexdesk/internal/model"
)

func collect(t *testing.T, seq func(func(string, error) bool)) ([]string, error) {
	t.Helper()
	var out []string
	for delta, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, delta)
	}
	return out, nil
}

func TestBuildPrompt(t *testing.T) {
	o := NewOrchestrator(nil, "You are a legal assistant.")
	history := []ai.ChatMessage{
		{Role: model.RoleUser, Content: "Hi"},
		{Role: model.RoleAssistant, Content: "Hello"},
		{Role: model.RoleUser, Content: "Summarize the claim"},
	}

	prompt := o.BuildPrompt(history, []string{"chunk one", "chunk two"})
	require.Len(t, prompt, 5)
	assert.Equal(t, ai.ChatMessage{Role: model.RoleSystem, Content: "You are a legal assistant."}, prompt[0])
	assert.Equal(t, model.RoleSystem, prompt[1].Role)
	assert.Equal(t, "Relevant case materials:\nchunk one\n---\nchunk two", prompt[1].Content)
	assert.Equal(t, history, prompt[2:])

	prompt = o.BuildPrompt(history, nil)
	require.Len(t, prompt, 4)
	assert.Equal(t, history, prompt[1:])
	for _, m := range prompt {
		assert.NotContains(t, m.Content, "Relevant case materials")
	}
}

func TestStreamAssistantReplyOrder(t *testing.T) {
	streamer := &scriptedStreamer{fragments: []string{"Hel", "", "lo, ", "world"}}
	o := NewOrchestrator(streamer, "sys")
	history := []ai.ChatMessage{{Role: model.RoleUser, Content: "Hi"}}

	got, err := collect(t, o.StreamAssistantReply(context.Background(), history, []string{"ctx"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo, ", "world"}, got)
	require.Len(t, streamer.prompt, 3)
	assert.Equal(t, history[0], streamer.prompt[2])
}

func TestStreamAssistantReplyUpstreamError(t *testing.T) {
	boom := errors.New("upstream broke")
	o := NewOrchestrator(&scriptedStreamer{fragments: []string{"partial"}, err: boom}, "sys")
	got, err := collect(t, o.StreamAssistantReply(context.Background(), nil, nil))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"partial"}, got)
}

func TestStreamAssistantReplyStopsOnBreak(t *testing.T) {
	streamer := &scriptedStreamer{fragments: []string{"a", "b", "c", "d"}}
	o := NewOrchestrator(streamer, "sys")
	for delta, err := range o.StreamAssistantReply(context.Background(), nil, nil) {
		require.NoError(t, err)
		if delta == "b" {
			break
		}
	}
	assert.Equal(t, int32(2), streamer.pulled.Load())
	assert.True(t, streamer.released.Load())
}

func TestStreamAssistantReplyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	streamer := &scriptedStreamer{fragments: []string{"a", "b", "c"}}
	o := NewOrchestrator(streamer, "sys")
	var got []string
	var lastErr error
	for delta, err := range o.StreamAssistantReply(ctx, nil, nil) {
		if err != nil {
			lastErr = err
			break
		}
		got = append(got, delta)
		cancel()
	}
	assert.Equal(t, []string{"a"}, got)
	require.ErrorIs(t, lastErr, context.Canceled)
	assert.Equal(t, int32(1), streamer.pulled.Load())
}

func TestStreamAssistantReplyNotConfigured(t *testing.T) {
	_, err := collect(t, NewOrchestrator(nil, "sys").StreamAssistantReply(context.Background(), nil, nil))
	require.ErrorIs(t, err, ai.ErrChatNotConfigured)
}
