package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/lexdesk/internal/model"
)

var documentFields = []string{"id", "case_id", "file_name", "file_url", "content", "ctime"}

type DocumentRepo struct {
	conn *Conn
}

func NewDocumentRepo(conn *Conn) *DocumentRepo {
	return &DocumentRepo{conn: conn}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	var content interface{}
	if doc.Content != nil {
		content = *doc.Content
	}
	data := map[string]interface{}{
		"id":        doc.ID,
		"case_id":   doc.CaseID,
		"file_name": doc.FileName,
		"file_url":  doc.FileURL,
		"content":   content,
		"ctime":     doc.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.conn.Exec(ctx, "document.create", sqlStr, args...)
	return err
}

func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	doc, err := scanDocument(r.conn.QueryRow(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound
	}
	return doc, err
}

func (r *DocumentRepo) ListByCase(ctx context.Context, caseID string) ([]model.Document, error) {
	where := map[string]interface{}{
		"case_id":  caseID,
		"_orderby": "ctime desc",
	}
	return r.list(ctx, where)
}

func (r *DocumentRepo) ListIDsByCase(ctx context.Context, caseID string) ([]string, error) {
	where := map[string]interface{}{
		"case_id": caseID,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, []string{"id"})
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListAll pages through every document, oldest first.
func (r *DocumentRepo) ListAll(ctx context.Context, offset, limit uint) ([]model.Document, error) {
	where := map[string]interface{}{
		"_orderby": "ctime asc",
		"_limit":   []uint{offset, limit},
	}
	return r.list(ctx, where)
}

// ListUnindexed returns documents that carry text but have no chunks, which
// is the state a failed reindex leaves behind. Documents with maxAttempts
// recorded repair attempts are left out and the least attempted come first,
// so a document that keeps failing cannot hold a batch slot.
func (r *DocumentRepo) ListUnindexed(ctx context.Context, maxAttempts, limit uint) ([]model.Document, error) {
	const query = `
		SELECT d.id, d.case_id, d.file_name, d.file_url, d.content, d.ctime
		FROM documents d
		LEFT JOIN document_embeddings e ON d.id = e.document_id
		WHERE e.document_id IS NULL AND d.content IS NOT NULL AND TRIM(d.content) <> ''
			AND d.reindex_attempts < ?
		ORDER BY d.reindex_attempts ASC, d.last_reindex_at ASC, d.ctime ASC
		LIMIT ?
	`
	rows, err := r.conn.Query(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// RecordReindexAttempt counts one repair pass that left the document without
// chunks.
func (r *DocumentRepo) RecordReindexAttempt(ctx context.Context, id string, at int64) error {
	const query = `UPDATE documents SET reindex_attempts = reindex_attempts + 1, last_reindex_at = ? WHERE id = ?`
	_, err := r.conn.Exec(ctx, "document.reindex_attempt", query, at, id)
	return err
}

func (r *DocumentRepo) ResetReindexAttempts(ctx context.Context, id string) error {
	const query = `UPDATE documents SET reindex_attempts = 0, last_reindex_at = 0 WHERE id = ? AND reindex_attempts > 0`
	_, err := r.conn.Exec(ctx, "document.reindex_reset", query, id)
	return err
}

// Delete removes the document only when it belongs to caseID.
func (r *DocumentRepo) Delete(ctx context.Context, caseID, id string) error {
	where := map[string]interface{}{
		"id":      id,
		"case_id": caseID,
	}
	sqlStr, args, err := builder.BuildDelete("documents", where)
	if err != nil {
		return err
	}
	res, err := r.conn.Exec(ctx, "document.delete", sqlStr, args...)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r *DocumentRepo) list(ctx context.Context, where map[string]interface{}) ([]model.Document, error) {
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var doc model.Document
	var content sql.NullString
	if err := row.Scan(&doc.ID, &doc.CaseID, &doc.FileName, &doc.FileURL, &content, &doc.Ctime); err != nil {
		return nil, err
	}
	if content.Valid {
		text := content.String
		doc.Content = &text
	}
	return &doc, nil
}

func scanDocuments(rows *sql.Rows) ([]model.Document, error) {
	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}
