package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/lexdesk/internal/model"
	"github.com/xxxsen/lexdesk/internal/pkg/timeutil"
	"github.com/xxxsen/lexdesk/internal/repo"
	"github.com/xxxsen/lexdesk/internal/testutil"
)

func TestEmbeddingCacheCleanupJob(t *testing.T) {
	ctx := context.Background()
	conn := testutil.OpenTestConn(t)
	cache := repo.NewEmbeddingCacheRepo(conn)
	modelName := "cleanup-" + time.Now().Format("150405.000000000")

	old := &model.EmbeddingCache{ModelName: modelName, TaskType: "RETRIEVAL_DOCUMENT", ContentHash: "old", Embedding: []float32{1, 2}, Ctime: timeutil.DaysAgoUnix(40)}
	fresh := &model.EmbeddingCache{ModelName: modelName, TaskType: "RETRIEVAL_DOCUMENT", ContentHash: "fresh", Embedding: []float32{3, 4}, Ctime: timeutil.NowUnix()}
	require.NoError(t, cache.Save(ctx, old))
	require.NoError(t, cache.Save(ctx, fresh))

	j := NewEmbeddingCacheCleanupJob(cache, 30)
	assert.Equal(t, "embedding_cache_cleanup", j.Name())
	require.NoError(t, j.Run(ctx))

	_, ok, err := cache.Get(ctx, modelName, "RETRIEVAL_DOCUMENT", "old")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = cache.Get(ctx, modelName, "RETRIEVAL_DOCUMENT", "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestJobsWithoutDependencies(t *testing.T) {
	require.NoError(t, NewEmbeddingCacheCleanupJob(nil, 0).Run(context.Background()))
	require.NoError(t, NewReindexPendingJob(nil, 10).Run(context.Background()))
	assert.Equal(t, "reindex_pending", NewReindexPendingJob(nil, 10).Name())
}
