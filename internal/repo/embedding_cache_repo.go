package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/lexdesk/internal/model"
)

type EmbeddingCacheRepo struct {
	conn *Conn
}

func NewEmbeddingCacheRepo(conn *Conn) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{conn: conn}
}

func (r *EmbeddingCacheRepo) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	const query = `
		SELECT embedding
		FROM embedding_cache
		WHERE model_name = ? AND task_type = ? AND content_hash = ?
	`
	var embedding pgvector.Vector
	err := r.conn.QueryRow(ctx, query, modelName, taskType, contentHash).Scan(&embedding)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return embedding.Slice(), true, nil
}

func (r *EmbeddingCacheRepo) Save(ctx context.Context, item *model.EmbeddingCache) error {
	const query = `
		INSERT INTO embedding_cache (model_name, task_type, content_hash, embedding, ctime)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (model_name, task_type, content_hash) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	_, err := r.conn.Exec(ctx, "embedding_cache.save", query,
		item.ModelName,
		item.TaskType,
		item.ContentHash,
		pgvector.NewVector(item.Embedding),
		item.Ctime,
	)
	return err
}

func (r *EmbeddingCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `DELETE FROM embedding_cache WHERE ctime < ?`
	res, err := r.conn.Exec(ctx, "embedding_cache.cleanup", query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
