package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/lexdesk/internal/model"
	appErr "github.com/xxxsen/lexdesk/internal/pkg/errors"
	"github.com/xxxsen/lexdesk/internal/repo"
	"github.com/xxxsen/lexdesk/internal/testutil"
)

func strPtr(s string) *string {
	return &s
}

func countInCase(docs []model.Document, caseID string) int {
	n := 0
	for _, d := range docs {
		if d.CaseID == caseID {
			n++
		}
	}
	return n
}

func TestDocumentRepo(t *testing.T) {
	ctx := context.Background()
	conn := testutil.OpenTestConn(t)
	docs := repo.NewDocumentRepo(conn)
	caseID := uuid.NewString()

	withText := &model.Document{ID: uuid.NewString(), CaseID: caseID, FileName: "a.txt", FileURL: "http://x/a.txt", Content: strPtr("hello"), Ctime: 1}
	noText := &model.Document{ID: uuid.NewString(), CaseID: caseID, FileName: "b.png", FileURL: "http://x/b.png", Ctime: 2}
	require.NoError(t, docs.Create(ctx, withText))
	require.NoError(t, docs.Create(ctx, noText))

	fetched, err := docs.GetByID(ctx, noText.ID)
	require.NoError(t, err)
	require.Nil(t, fetched.Content)

	fetched, err = docs.GetByID(ctx, withText.ID)
	require.NoError(t, err)
	require.Equal(t, "hello", fetched.Text())

	list, err := docs.ListByCase(ctx, caseID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, noText.ID, list[0].ID)

	ids, err := docs.ListIDsByCase(ctx, caseID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{withText.ID, noText.ID}, ids)

	require.ErrorIs(t, docs.Delete(ctx, uuid.NewString(), withText.ID), appErr.ErrNotFound)
	require.NoError(t, docs.Delete(ctx, caseID, withText.ID))
	_, err = docs.GetByID(ctx, withText.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestEmbeddingRepoOrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	conn := testutil.OpenTestConn(t)
	docs := repo.NewDocumentRepo(conn)
	embeddings := repo.NewEmbeddingRepo(conn)
	caseID := uuid.NewString()

	docA := &model.Document{ID: uuid.NewString(), CaseID: caseID, FileName: "a", FileURL: "u", Content: strPtr("a"), Ctime: 1}
	docB := &model.Document{ID: uuid.NewString(), CaseID: caseID, FileName: "b", FileURL: "u", Content: strPtr("b"), Ctime: 2}
	require.NoError(t, docs.Create(ctx, docA))
	require.NoError(t, docs.Create(ctx, docB))

	pending, err := docs.ListUnindexed(ctx, 5, 100)
	require.NoError(t, err)
	require.Equal(t, 2, countInCase(pending, caseID))

	var batch []model.EmbeddingChunk
	for i := 0; i < 3; i++ {
		batch = append(batch, model.EmbeddingChunk{ID: uuid.NewString(), DocumentID: docA.ID, ChunkIndex: i, Content: "a", Embedding: []float32{float32(i), 1}, Ctime: 5})
	}
	require.NoError(t, embeddings.InsertBatch(ctx, batch))
	require.NoError(t, embeddings.InsertBatch(ctx, []model.EmbeddingChunk{
		{ID: uuid.NewString(), DocumentID: docB.ID, ChunkIndex: 0, Content: "b", Embedding: []float32{0.5, 0.25}, Ctime: 5},
	}))

	chunks, err := embeddings.ListByDocuments(ctx, []string{docA.ID, docB.ID}, 3)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i := 1; i < len(chunks); i++ {
		require.LessOrEqual(t, chunks[i-1].ChunkIndex, chunks[i].ChunkIndex)
	}

	all, err := embeddings.ListAllByDocuments(ctx, []string{docB.ID})
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, []float32{0.5, 0.25}, all[0].Embedding)

	pending, err = docs.ListUnindexed(ctx, 5, 100)
	require.NoError(t, err)
	require.Zero(t, countInCase(pending, caseID))

	require.NoError(t, embeddings.DeleteByDocument(ctx, docA.ID))
	require.NoError(t, embeddings.DeleteByDocument(ctx, docA.ID))
	count, err := embeddings.CountByDocument(ctx, docA.ID)
	require.NoError(t, err)
	require.Zero(t, count)

	empty, err := embeddings.ListByDocuments(ctx, nil, 6)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestEmbeddingCacheRepo(t *testing.T) {
	ctx := context.Background()
	cache := repo.NewEmbeddingCacheRepo(testutil.OpenTestConn(t))
	hash := uuid.NewString()

	_, ok, err := cache.Get(ctx, "m", "", hash)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Save(ctx, &model.EmbeddingCache{ModelName: "m", ContentHash: hash, Embedding: []float32{1, 2}, Ctime: 10}))
	require.NoError(t, cache.Save(ctx, &model.EmbeddingCache{ModelName: "m", ContentHash: hash, Embedding: []float32{3, 4}, Ctime: 20}))

	values, ok, err := cache.Get(ctx, "m", "", hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{3, 4}, values)

	deleted, err := cache.DeleteBefore(ctx, 21)
	require.NoError(t, err)
	require.GreaterOrEqual(t, deleted, int64(1))
	_, ok, err = cache.Get(ctx, "m", "", hash)
	require.NoError(t, err)
	require.False(t, ok)
}
