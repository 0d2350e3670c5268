package ai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// cappedEmbed behaves like the batch embed endpoint: more than
// geminiEmbedBatchLimit contents is a 400.
type cappedEmbed struct {
	sizes []int
	fail  error
}

func (c *cappedEmbed) call(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	c.sizes = append(c.sizes, len(contents))
	if len(contents) > geminiEmbedBatchLimit {
		return nil, genai.APIError{Code: 400, Message: "at most 100 requests can be in one batch", Status: "INVALID_ARGUMENT"}
	}
	if c.fail != nil {
		return nil, c.fail
	}
	resp := &genai.EmbedContentResponse{}
	for _, content := range contents {
		idx, err := strconv.Atoi(strings.TrimPrefix(content.Parts[0].Text, "chunk-"))
		if err != nil {
			return nil, err
		}
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: []float32{float32(idx)}})
	}
	return resp, nil
}

func TestGeminiEmbedSplitsLargeBatches(t *testing.T) {
	fake := &cappedEmbed{}
	p := &geminiProvider{embedContent: fake.call}
	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk-%d", i)
	}

	vectors, err := p.Embed(context.Background(), "text-embedding-004", texts, EmbedOptions{TaskType: TaskRetrievalDocument})
	require.NoError(t, err)
	assert.Equal(t, []int{100, 100, 50}, fake.sizes)
	require.Len(t, vectors, len(texts))
	for i, v := range vectors {
		require.Equal(t, []float32{float32(i)}, v)
	}
}

func TestGeminiEmbedWindowFailure(t *testing.T) {
	fake := &cappedEmbed{fail: genai.APIError{Code: 503, Status: "UNAVAILABLE"}}
	p := &geminiProvider{embedContent: fake.call}
	_, err := p.Embed(context.Background(), "m", []string{"chunk-0"}, EmbedOptions{})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestIsRetryableGeminiErrors(t *testing.T) {
	assert.False(t, IsRetryable(genai.APIError{Code: 400}))
	assert.False(t, IsRetryable(fmt.Errorf("embed: %w", genai.APIError{Code: 403})))
	assert.False(t, IsRetryable(&genai.APIError{Code: 404}))
	assert.True(t, IsRetryable(genai.APIError{Code: 429}))
	assert.True(t, IsRetryable(&genai.APIError{Code: 500}))
	assert.True(t, IsRetryable(errors.New("connection reset")))
}
