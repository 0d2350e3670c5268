package embedcache

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/lexdesk/internal/ai"
	"github.com/xxxsen/lexdesk/internal/model"
	"github.com/xxxsen/lexdesk/internal/pkg/timeutil"
)

// Store persists embeddings across restarts.
type Store interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

func WrapDBCacheToEmbedder(e ai.IEmbedder, store Store) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &dbEmbedder{next: e, store: store}
}

type dbEmbedder struct {
	next  ai.IEmbedder
	store Store
}

func (d *dbEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	logger := logutil.GetLogger(ctx)
	hashes := make([]string, len(texts))
	out := make([][]float32, len(texts))
	var modelName string
	hits := 0
	for i, text := range texts {
		_, hashes[i], modelName = buildCacheKey(d.next.ModelName(), taskType, text)
		values, ok, err := d.store.Get(ctx, modelName, taskType, hashes[i])
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = values
			hits++
		}
	}
	if hits > 0 {
		logger.Debug("embedding cache hit (db)", zap.String("task_type", taskType), zap.Int("hits", hits), zap.Int("total", len(texts)))
	}
	err := fillMisses(ctx, d.next, texts, taskType, out, func(i int, vec []float32) {
		if err := d.store.Save(ctx, &model.EmbeddingCache{
			ModelName:   modelName,
			TaskType:    taskType,
			ContentHash: hashes[i],
			Embedding:   vec,
			Ctime:       timeutil.NowUnix(),
		}); err != nil {
			logger.Warn("failed to cache embedding", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}
