package service

import (
	"context"
	"iter"
	"strings"

	"github.com/xxxsen/lexdesk/internal/ai"
	"github.com/xxxsen/lexdesk/internal/model"
)

const (
	contextHeader    = "Relevant case materials:\n"
	contextDelimiter = "\n---\n"
)

// Orchestrator assembles the prompt for a chat turn and relays the model's
// reply fragment by fragment.
type Orchestrator struct {
	streamer     ai.IChatStreamer
	systemPrompt string
}

func NewOrchestrator(streamer ai.IChatStreamer, systemPrompt string) *Orchestrator {
	return &Orchestrator{streamer: streamer, systemPrompt: systemPrompt}
}

// BuildPrompt orders the prompt as system prompt, context message, history.
// The context message is left out when there are no chunks. history already
// ends with the new user message.
func (o *Orchestrator) BuildPrompt(history []ai.ChatMessage, chunks []string) []ai.ChatMessage {
	prompt := make([]ai.ChatMessage, 0, len(history)+2)
	prompt = append(prompt, ai.ChatMessage{Role: model.RoleSystem, Content: o.systemPrompt})
	if len(chunks) > 0 {
		prompt = append(prompt, ai.ChatMessage{
			Role:    model.RoleSystem,
			Content: contextHeader + strings.Join(chunks, contextDelimiter),
		})
	}
	return append(prompt, history...)
}

// StreamAssistantReply yields the reply fragments in arrival order. The
// sequence is single pass and pull driven: nothing is read from upstream
// while the consumer's loop body runs, and breaking out of the loop releases
// the upstream stream. An upstream failure is the last element.
func (o *Orchestrator) StreamAssistantReply(ctx context.Context, history []ai.ChatMessage, chunks []string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if o.streamer == nil {
			yield("", ai.ErrChatNotConfigured)
			return
		}
		if err := ctx.Err(); err != nil {
			yield("", err)
			return
		}
		for delta, err := range o.streamer.StreamChat(ctx, o.BuildPrompt(history, chunks)) {
			if err != nil {
				yield("", err)
				return
			}
			if delta == "" {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}
	}
}

func chunkTexts(chunks []model.EmbeddingChunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Content)
	}
	return out
}

func historyMessages(msgs []model.Message) []ai.ChatMessage {
	out := make([]ai.ChatMessage, 0, len(msgs)+1)
	for _, m := range msgs {
		out = append(out, ai.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
