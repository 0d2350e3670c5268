package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"strings"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

type openrouterConfig struct {
	APIKey      string `json:"api_key"`
	BaseURL     string `json:"base_url"`
	HTTPReferer string `json:"http_referer"`
	XTitle      string `json:"x_title"`
}

// openrouterProvider only serves chat; it has no embeddings endpoint.
type openrouterProvider struct {
	apiKey      string
	baseURL     string
	httpReferer string
	xTitle      string
	client      *http.Client
}

func (p *openrouterProvider) Name() string {
	return "openrouter"
}

func (p *openrouterProvider) StreamChat(ctx context.Context, model string, messages []ChatMessage) iter.Seq2[string, error] {
	if p.apiKey == "" {
		return errorSeq(ErrUnavailable)
	}
	data, err := json.Marshal(openAIChatRequest{
		Model:    model,
		Messages: toChatMsgs(messages),
		Stream:   true,
	})
	if err != nil {
		return errorSeq(err)
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return errorSeq(err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if p.httpReferer != "" {
		req.Header.Set("HTTP-Referer", p.httpReferer)
	}
	if p.xTitle != "" {
		req.Header.Set("X-Title", p.xTitle)
	}
	return streamChatCompletion(ctx, p.client, p.Name(), req)
}

func createOpenRouterFactory(args interface{}) (IChatProvider, error) {
	cfg := &openrouterConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	return &openrouterProvider{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		baseURL:     baseURL,
		httpReferer: strings.TrimSpace(cfg.HTTPReferer),
		xTitle:      strings.TrimSpace(cfg.XTitle),
		client:      http.DefaultClient,
	}, nil
}

func init() {
	Register("openrouter", createOpenRouterFactory)
}
