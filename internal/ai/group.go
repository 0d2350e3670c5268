package ai

import (
	"context"
	"iter"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type StreamerEntry struct {
	Name     string
	Streamer IChatStreamer
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

type groupStreamer struct {
	items []StreamerEntry
}

// NewGroupStreamer tries each streamer in order. It only falls through to the
// next one while nothing has been emitted yet; once a fragment went out, a
// failure ends the stream.
func NewGroupStreamer(items []StreamerEntry) IChatStreamer {
	if len(items) == 0 {
		return nil
	}
	if len(items) == 1 {
		return items[0].Streamer
	}
	return &groupStreamer{items: items}
}

func (g *groupStreamer) StreamChat(ctx context.Context, messages []ChatMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var lastErr error
		for i, item := range g.items {
			if item.Streamer == nil {
				continue
			}
			started := false
			failed := false
			for fragment, err := range item.Streamer.StreamChat(ctx, messages) {
				if err != nil {
					if started {
						yield("", err)
						return
					}
					lastErr = err
					failed = true
					logutil.GetLogger(ctx).Warn("chat streamer failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
					break
				}
				started = true
				if !yield(fragment, nil) {
					return
				}
			}
			if !failed {
				return
			}
			if ctx.Err() != nil {
				break
			}
		}
		if lastErr == nil {
			lastErr = ErrChatNotConfigured
		}
		yield("", lastErr)
	}
}

func (g *groupStreamer) ModelName() string {
	return joinNames(len(g.items), func(i int) string { return g.items[i].Name })
}

type groupEmbedder struct {
	items []EmbedderEntry
}

func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	if len(items) == 0 {
		return nil
	}
	if len(items) == 1 {
		return items[0].Embedder
	}
	return &groupEmbedder{items: items}
}

func (g *groupEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Embedder == nil {
			continue
		}
		res, err := item.Embedder.EmbedBatch(ctx, texts, taskType)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("embedder failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return nil, ErrEmbedNotConfigured
	}
	return nil, lastErr
}

// ModelName is part of the embedding cache key, so it names every member
// together with the model it embeds with.
func (g *groupEmbedder) ModelName() string {
	return joinNames(len(g.items), func(i int) string {
		item := g.items[i]
		if item.Embedder == nil {
			return item.Name
		}
		model := item.Embedder.ModelName()
		switch {
		case model == "":
			return item.Name
		case item.Name == "":
			return model
		}
		return item.Name + "/" + model
	})
}

func joinNames(n int, name func(int) string) string {
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if v := name(i); v != "" {
			names = append(names, v)
		}
	}
	return strings.Join(names, "|")
}
