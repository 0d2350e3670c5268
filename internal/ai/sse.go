package ai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"sync/atomic"
)

const maxErrorBody = 4096

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// streamChatCompletion issues req lazily and turns the chat/completions
// event stream into fragments. Reading stops as soon as the consumer stops
// pulling or ctx ends, and the response body is closed on every exit path.
func streamChatCompletion(ctx context.Context, client *http.Client, provider string, req *http.Request) iter.Seq2[string, error] {
	var used atomic.Bool
	return func(yield func(string, error) bool) {
		if !used.CompareAndSwap(false, true) {
			yield("", ErrStreamConsumed)
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			yield("", readStatusError(provider, resp))
			return
		}
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}
			if payload == "[DONE]" {
				return
			}
			var chunk chatCompletionChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				yield("", fmt.Errorf("decode %s stream chunk: %w", provider, err))
				return
			}
			if chunk.Error != nil {
				yield("", fmt.Errorf("%s stream error: %s", provider, chunk.Error.Message))
				return
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !yield(choice.Delta.Content, nil) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			yield("", fmt.Errorf("read %s stream: %w", provider, err))
			return
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			yield("", ctxErr)
		}
	}
}

func readStatusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Provider: provider, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func toChatMsgs(messages []ChatMessage) []openAIChatMsg {
	out := make([]openAIChatMsg, 0, len(messages))
	for _, m := range messages {
		out = append(out, openAIChatMsg{Role: m.Role, Content: m.Content})
	}
	return out
}
