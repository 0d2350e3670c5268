package repo

import (
	"context"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/lexdesk/internal/model"
)

type EmbeddingRepo struct {
	conn *Conn
}

func NewEmbeddingRepo(conn *Conn) *EmbeddingRepo {
	return &EmbeddingRepo{conn: conn}
}

// DeleteByDocument removes every chunk of the document. Deleting nothing is
// not an error.
func (r *EmbeddingRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	where := map[string]interface{}{
		"document_id": documentID,
	}
	sqlStr, args, err := builder.BuildDelete("document_embeddings", where)
	if err != nil {
		return err
	}
	_, err = r.conn.Exec(ctx, "embedding.delete", sqlStr, args...)
	return err
}

func (r *EmbeddingRepo) InsertBatch(ctx context.Context, chunks []model.EmbeddingChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(chunks))
	for _, c := range chunks {
		data = append(data, map[string]interface{}{
			"id":          c.ID,
			"document_id": c.DocumentID,
			"chunk_index": c.ChunkIndex,
			"content":     c.Content,
			"embedding":   pgvector.NewVector(c.Embedding),
			"ctime":       c.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("document_embeddings", data)
	if err != nil {
		return err
	}
	_, err = r.conn.Exec(ctx, "embedding.insert", sqlStr, args...)
	return err
}

// ListByDocuments returns at most limit chunks across all given documents,
// ordered by chunk index.
func (r *EmbeddingRepo) ListByDocuments(ctx context.Context, documentIDs []string, limit uint) ([]model.EmbeddingChunk, error) {
	if len(documentIDs) == 0 || limit == 0 {
		return []model.EmbeddingChunk{}, nil
	}
	where := map[string]interface{}{
		"document_id in": toArgs(documentIDs),
		"_orderby":       "chunk_index asc",
		"_limit":         []uint{0, limit},
	}
	return r.list(ctx, where)
}

// ListAllByDocuments returns every chunk of the given documents including
// vectors, for similarity scoring.
func (r *EmbeddingRepo) ListAllByDocuments(ctx context.Context, documentIDs []string) ([]model.EmbeddingChunk, error) {
	if len(documentIDs) == 0 {
		return []model.EmbeddingChunk{}, nil
	}
	where := map[string]interface{}{
		"document_id in": toArgs(documentIDs),
		"_orderby":       "chunk_index asc",
	}
	return r.list(ctx, where)
}

func (r *EmbeddingRepo) CountByDocument(ctx context.Context, documentID string) (int, error) {
	where := map[string]interface{}{
		"document_id": documentID,
	}
	sqlStr, args, err := builder.BuildSelect("document_embeddings", where, []string{"count(1)"})
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.conn.QueryRow(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *EmbeddingRepo) list(ctx context.Context, where map[string]interface{}) ([]model.EmbeddingChunk, error) {
	fields := []string{"id", "document_id", "chunk_index", "content", "embedding", "ctime"}
	sqlStr, args, err := builder.BuildSelect("document_embeddings", where, fields)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chunks := make([]model.EmbeddingChunk, 0)
	for rows.Next() {
		var c model.EmbeddingChunk
		var vec pgvector.Vector
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &vec, &c.Ctime); err != nil {
			return nil, err
		}
		c.Embedding = vec.Slice()
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
