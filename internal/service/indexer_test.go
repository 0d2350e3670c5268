package service

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/lexdesk/internal/ai"
)

func TestReindexDocumentIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	emb := &fakeEmbedder{}
	idx := NewIndexer(mustChunker(t, 4, 1), emb, f.chunks, fastPolicy)
	doc := f.seedDocument(t, f.seedCase(t).ID, "abcdefghij")

	require.NoError(t, idx.ReindexDocument(ctx, doc, doc.Text()))
	first := chunkContents(t, f, doc.ID)
	require.NoError(t, idx.ReindexDocument(ctx, doc, doc.Text()))
	second := chunkContents(t, f, doc.ID)

	assert.Equal(t, []string{"abcd", "defg", "ghij"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, emb.callCount())
	assert.Len(t, emb.batches[0], 3)
}

func TestReindexDocumentReplacesChunks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	idx := NewIndexer(mustChunker(t, 4, 1), &fakeEmbedder{}, f.chunks, fastPolicy)
	doc := f.seedDocument(t, f.seedCase(t).ID, "abcdefghij")

	require.NoError(t, idx.ReindexDocument(ctx, doc, "abcdefghij"))
	require.NoError(t, idx.ReindexDocument(ctx, doc, "xyz"))
	assert.Equal(t, []string{"xyz"}, chunkContents(t, f, doc.ID))

	chunks, err := f.chunks.ListAllByDocuments(ctx, []string{doc.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
}

func TestReindexDocumentEmptyText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	emb := &fakeEmbedder{}
	idx := NewIndexer(mustChunker(t, 4, 1), emb, f.chunks, fastPolicy)
	doc := f.seedDocument(t, f.seedCase(t).ID, "abcdefghij")

	require.NoError(t, idx.ReindexDocument(ctx, doc, "abcdefghij"))
	require.NoError(t, idx.ReindexDocument(ctx, doc, "  \n\t "))
	assert.Empty(t, chunkContents(t, f, doc.ID))
	assert.Equal(t, 1, emb.callCount())
}

func TestReindexDocumentEmbedFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.seedDocument(t, f.seedCase(t).ID, "abcdefghij")

	permanent := &fakeEmbedder{errs: []error{&ai.StatusError{Provider: "fake", StatusCode: http.StatusBadRequest}}}
	idx := NewIndexer(mustChunker(t, 4, 1), permanent, f.chunks, fastPolicy)
	require.Error(t, idx.ReindexDocument(ctx, doc, doc.Text()))
	assert.Equal(t, 1, permanent.callCount())
	assert.Empty(t, chunkContents(t, f, doc.ID))

	transient := &fakeEmbedder{errs: []error{
		&ai.StatusError{Provider: "fake", StatusCode: http.StatusServiceUnavailable},
		&ai.StatusError{Provider: "fake", StatusCode: http.StatusTooManyRequests},
	}}
	idx = NewIndexer(mustChunker(t, 4, 1), transient, f.chunks, fastPolicy)
	require.NoError(t, idx.ReindexDocument(ctx, doc, doc.Text()))
	assert.Equal(t, 3, transient.callCount())
	assert.Len(t, chunkContents(t, f, doc.ID), 3)
}

func TestReindexDocumentFailureLeavesNoChunks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.seedDocument(t, f.seedCase(t).ID, "abcdefghij")
	idx := NewIndexer(mustChunker(t, 4, 1), &fakeEmbedder{}, f.chunks, fastPolicy)
	require.NoError(t, idx.ReindexDocument(ctx, doc, doc.Text()))

	failing := &fakeEmbedder{errs: []error{
		&ai.StatusError{Provider: "fake", StatusCode: http.StatusBadGateway},
		&ai.StatusError{Provider: "fake", StatusCode: http.StatusBadGateway},
		&ai.StatusError{Provider: "fake", StatusCode: http.StatusBadGateway},
	}}
	idx = NewIndexer(mustChunker(t, 4, 1), failing, f.chunks, fastPolicy)
	require.Error(t, idx.ReindexDocument(ctx, doc, doc.Text()))
	assert.Equal(t, 3, failing.callCount())
	assert.Empty(t, chunkContents(t, f, doc.ID))
}

func TestReindexDocumentCountMismatch(t *testing.T) {
	f := newFixture(t)
	doc := f.seedDocument(t, f.seedCase(t).ID, "abcdefghij")
	idx := NewIndexer(mustChunker(t, 4, 1), &fakeEmbedder{short: true}, f.chunks, fastPolicy)
	err := idx.ReindexDocument(context.Background(), doc, doc.Text())
	require.ErrorIs(t, err, ai.ErrEmbeddingMismatch)
	assert.Empty(t, chunkContents(t, f, doc.ID))
}

func TestReindexDocumentSerializedPerDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.seedDocument(t, f.seedCase(t).ID, strings.Repeat("a", 40))

	var active, peak atomic.Int32
	emb := &fakeEmbedder{hook: func() {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
	}}
	idx := NewIndexer(mustChunker(t, 10, 2), emb, f.chunks, fastPolicy)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, idx.ReindexDocument(ctx, doc, doc.Text()))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, 4, emb.callCount())
	assert.Len(t, chunkContents(t, f, doc.ID), len(mustChunker(t, 10, 2).Chunk(doc.Text())))
}
