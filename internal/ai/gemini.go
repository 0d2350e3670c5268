package ai

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"
)

type geminiConfig struct {
	APIKey string `json:"api_key"`
}

// geminiEmbedBatchLimit is the most contents one batch embed request accepts.
const geminiEmbedBatchLimit = 100

type geminiEmbedFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)

type geminiProvider struct {
	apiKey string
	// embedContent replaces the client call when set.
	embedContent geminiEmbedFunc
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) newClient(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

// StreamChat maps system messages to the system instruction and the rest of
// the conversation to user/model turns.
func (p *geminiProvider) StreamChat(ctx context.Context, model string, messages []ChatMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		client, err := p.newClient(ctx)
		if err != nil {
			yield("", err)
			return
		}
		contents, config := buildGeminiContents(messages)
		for resp, err := range client.Models.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				yield("", err)
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

func buildGeminiContents(messages []ChatMessage) ([]*genai.Content, *genai.GenerateContentConfig) {
	var system []*genai.Part
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, genai.NewPartFromText(m.Content))
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	var config *genai.GenerateContentConfig
	if len(system) > 0 {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: system},
		}
	}
	return contents, config
}

// Embed splits texts into request sized windows and joins the results in
// input order.
func (p *geminiProvider) Embed(ctx context.Context, model string, texts []string, opts EmbedOptions) ([][]float32, error) {
	embed := p.embedContent
	if embed == nil {
		client, err := p.newClient(ctx)
		if err != nil {
			return nil, err
		}
		embed = client.Models.EmbedContent
	}
	var config *genai.EmbedContentConfig
	if opts.TaskType != "" || opts.Dimensions > 0 {
		config = &genai.EmbedContentConfig{TaskType: opts.TaskType}
		if opts.Dimensions > 0 {
			dims := int32(opts.Dimensions)
			config.OutputDimensionality = &dims
		}
	}
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiEmbedBatchLimit {
		end := min(start+geminiEmbedBatchLimit, len(texts))
		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}
		resp, err := embed(ctx, model, contents, config)
		if err != nil {
			return nil, fmt.Errorf("gemini embed [%d, %d): %w", start, end, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("%w: want %d, got %d", ErrEmbeddingMismatch, end-start, len(resp.Embeddings))
		}
		for _, emb := range resp.Embeddings {
			vectors = append(vectors, emb.Values)
		}
	}
	return vectors, nil
}

func newGeminiProvider(args interface{}) (*geminiProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &geminiProvider{apiKey: strings.TrimSpace(cfg.APIKey)}, nil
}

func createGeminiFactory(args interface{}) (IChatProvider, error) {
	return newGeminiProvider(args)
}

func createGeminiEmbedFactory(args interface{}) (IEmbedProvider, error) {
	return newGeminiProvider(args)
}

func init() {
	Register("gemini", createGeminiFactory)
	RegisterEmbed("gemini", createGeminiEmbedFactory)
}
