package service

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/xxxsen/lexdesk/internal/ai"
	"github.com/xxxsen/lexdesk/internal/model"
	appErr "github.com/xxxsen/lexdesk/internal/pkg/errors"
	"github.com/xxxsen/lexdesk/internal/repo"
)

const (
	defaultSearchTopK = 5
	maxSearchTopK     = 50
)

type Retriever struct {
	docs      *repo.DocumentRepo
	chunks    *repo.EmbeddingRepo
	embedder  ai.IEmbedder
	maxChunks int
}

func NewRetriever(docs *repo.DocumentRepo, chunks *repo.EmbeddingRepo, embedder ai.IEmbedder, maxChunks int) *Retriever {
	return &Retriever{docs: docs, chunks: chunks, embedder: embedder, maxChunks: maxChunks}
}

// GetContextChunks returns up to maxChunks chunks of the case's documents in
// chunk index order. A case without documents yields an empty slice.
func (s *Retriever) GetContextChunks(ctx context.Context, caseID string) ([]model.EmbeddingChunk, error) {
	ids, err := s.docs.ListIDsByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 || s.maxChunks <= 0 {
		return []model.EmbeddingChunk{}, nil
	}
	return s.chunks.ListByDocuments(ctx, ids, uint(s.maxChunks))
}

// Search ranks the case's chunks by cosine similarity to query.
func (s *Retriever) Search(ctx context.Context, caseID, query string, topK int) ([]model.ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErr.ErrInvalid
	}
	if s.embedder == nil {
		return nil, ai.ErrEmbedNotConfigured
	}
	if topK <= 0 {
		topK = defaultSearchTopK
	}
	if topK > maxSearchTopK {
		topK = maxSearchTopK
	}
	ids, err := s.docs.ListIDsByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.ScoredChunk{}, nil
	}
	chunks, err := s.chunks.ListAllByDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []model.ScoredChunk{}, nil
	}
	vectors, err := s.embedder.EmbedBatch(ctx, []string{query}, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, ai.ErrEmbeddingMismatch
	}
	scored := make([]model.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) != len(vectors[0]) {
			continue
		}
		score := cosineSimilarity(vectors[0], c.Embedding)
		c.Embedding = nil
		scored = append(scored, model.ScoredChunk{EmbeddingChunk: c, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
