package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

var (
	ErrUnavailable        = errors.New("ai provider unavailable")
	ErrEmbeddingMismatch  = errors.New("embedding count does not match input count")
	ErrStreamConsumed     = errors.New("chat stream already consumed")
	ErrChatNotConfigured  = errors.New("chat streamer not configured")
	ErrEmbedNotConfigured = errors.New("embedder not configured")
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type EmbedOptions struct {
	TaskType   string
	Dimensions int
}

// IChatProvider streams chat completions. The returned sequence is single
// pass; each element is one text fragment in arrival order, and a non-nil
// error terminates it.
type IChatProvider interface {
	Name() string
	StreamChat(ctx context.Context, model string, messages []ChatMessage) iter.Seq2[string, error]
}

// IEmbedProvider embeds a batch of texts in one call. Result i belongs to
// texts[i].
type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, texts []string, opts EmbedOptions) ([][]float32, error)
}

type IChatStreamer interface {
	StreamChat(ctx context.Context, messages []ChatMessage) iter.Seq2[string, error]
	ModelName() string
}

type IEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error)
	ModelName() string
}

type chatStreamer struct {
	provider IChatProvider
	model    string
}

func NewChatStreamer(p IChatProvider, model string) IChatStreamer {
	return &chatStreamer{provider: p, model: model}
}

func (s *chatStreamer) StreamChat(ctx context.Context, messages []ChatMessage) iter.Seq2[string, error] {
	return s.provider.StreamChat(ctx, s.model, messages)
}

func (s *chatStreamer) ModelName() string {
	return s.model
}

type embedder struct {
	provider IEmbedProvider
	model    string
	dims     int
	timeout  time.Duration
}

type EmbedderOption func(*embedder)

// WithEmbedTimeout bounds every provider call of one EmbedBatch.
func WithEmbedTimeout(d time.Duration) EmbedderOption {
	return func(e *embedder) {
		e.timeout = d
	}
}

func NewEmbedder(p IEmbedProvider, model string, dims int, opts ...EmbedderOption) IEmbedder {
	e := &embedder{provider: p, model: model, dims: dims}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *embedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	vectors, err := e.provider.Embed(ctx, e.model, texts, EmbedOptions{TaskType: taskType, Dimensions: e.dims})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrEmbeddingMismatch, len(texts), len(vectors))
	}
	return vectors, nil
}

func (e *embedder) ModelName() string {
	return e.model
}

// StatusError is a non-2xx answer from a provider endpoint.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed: %d %s: %s", e.Provider, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// IsRetryable reports whether an embedding failure is worth another attempt:
// network errors, rate limits and server errors are; client errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrEmbeddingMismatch) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return retryableStatus(apiErrPtr.Code)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

type ChatFactory func(args interface{}) (IChatProvider, error)

type EmbedFactory func(args interface{}) (IEmbedProvider, error)

var (
	chatRegistry  = map[string]ChatFactory{}
	embedRegistry = map[string]EmbedFactory{}
)

func Register(name string, factory ChatFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	chatRegistry[key] = factory
}

func RegisterEmbed(name string, factory EmbedFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewChatProvider(name string, args interface{}) (IChatProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := chatRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.embed_provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embed provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
