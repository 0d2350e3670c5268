package model

type EmbeddingChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	Ctime      int64     `json:"ctime"`
}

type ScoredChunk struct {
	EmbeddingChunk
	Score float32 `json:"score"`
}

// EmbeddingCache is a stored provider result keyed by model, task type and
// content hash.
type EmbeddingCache struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
