package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/lexdesk/internal/ai"
	"github.com/xxxsen/lexdesk/internal/model"
	appErr "github.com/xxxsen/lexdesk/internal/pkg/errors"
	"github.com/xxxsen/lexdesk/internal/pkg/keylock"
	"github.com/xxxsen/lexdesk/internal/pkg/retry"
	"github.com/xxxsen/lexdesk/internal/pkg/timeutil"
	"github.com/xxxsen/lexdesk/internal/repo"
)

// Indexer rebuilds the chunk embeddings of a document.
type Indexer struct {
	chunker  *ai.Chunker
	embedder ai.IEmbedder
	chunks   *repo.EmbeddingRepo
	locks    *keylock.Map
	policy   retry.Policy
	purged   *expirable.LRU[string, struct{}]
}

const (
	purgedSize = 4096
	purgedTTL  = time.Hour
)

func NewIndexer(chunker *ai.Chunker, embedder ai.IEmbedder, chunks *repo.EmbeddingRepo, policy retry.Policy) *Indexer {
	return &Indexer{
		chunker:  chunker,
		embedder: embedder,
		chunks:   chunks,
		locks:    keylock.New(),
		policy:   policy.WithRetryable(ai.IsRetryable),
		purged:   expirable.NewLRU[string, struct{}](purgedSize, nil, purgedTTL),
	}
}

// ReindexDocument replaces every chunk of doc with the chunks of text. The old
// chunks are removed first, so a failed embedding pass leaves the document
// with no chunks until the next reindex.
func (s *Indexer) ReindexDocument(ctx context.Context, doc *model.Document, text string) error {
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", doc.ID))
	unlock := s.locks.Lock(doc.ID)
	defer unlock()

	if s.purged.Contains(doc.ID) {
		return fmt.Errorf("document %s was deleted: %w", doc.ID, appErr.ErrNotFound)
	}
	if err := s.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	pieces := s.chunker.Chunk(text)
	if len(pieces) == 0 {
		logger.Debug("document has no text to index")
		return nil
	}
	if s.embedder == nil {
		return ai.ErrEmbedNotConfigured
	}
	vectors, err := retry.Do(ctx, s.policy, "embed.batch", func(ctx context.Context) ([][]float32, error) {
		return s.embedder.EmbedBatch(ctx, pieces, ai.TaskRetrievalDocument)
	})
	if err != nil {
		logger.Error("embed document chunks failed", zap.Int("chunks", len(pieces)), zap.Error(err))
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(pieces) {
		logger.Error("embedding count mismatch", zap.Int("chunks", len(pieces)), zap.Int("vectors", len(vectors)))
		return ai.ErrEmbeddingMismatch
	}
	now := timeutil.NowUnix()
	rows := make([]model.EmbeddingChunk, 0, len(pieces))
	for i, piece := range pieces {
		rows = append(rows, model.EmbeddingChunk{
			ID:         newID(),
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    piece,
			Embedding:  vectors[i],
			Ctime:      now,
		})
	}
	if err := s.chunks.InsertBatch(ctx, rows); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	logger.Info("document reindexed", zap.Int("chunks", len(rows)), zap.String("model", s.embedder.ModelName()))
	return nil
}

// Purge removes the chunks of a document and then runs remove, both under the
// document lock. Reindex calls that were waiting on the lock are refused
// afterwards so they cannot leave orphan chunks behind.
func (s *Indexer) Purge(ctx context.Context, documentID string, remove func(ctx context.Context) error) error {
	unlock := s.locks.Lock(documentID)
	defer unlock()

	if err := s.chunks.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if remove != nil {
		if err := remove(ctx); err != nil {
			return err
		}
	}
	s.purged.Add(documentID, struct{}{})
	return nil
}
