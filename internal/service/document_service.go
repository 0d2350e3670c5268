package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/lexdesk/internal/extract"
	"github.com/xxxsen/lexdesk/internal/filestore"
	"github.com/xxxsen/lexdesk/internal/model"
	appErr "github.com/xxxsen/lexdesk/internal/pkg/errors"
	"github.com/xxxsen/lexdesk/internal/pkg/timeutil"
	"github.com/xxxsen/lexdesk/internal/repo"
)

const (
	defaultContentType = "application/octet-stream"
	maxPendingAttempts = 5
)

type DocumentService struct {
	cases     *repo.CaseRepo
	docs      *repo.DocumentRepo
	chunks    *repo.EmbeddingRepo
	store     filestore.Store
	bucket    string
	extractor extract.Extractor
	indexer   *Indexer
}

func NewDocumentService(cases *repo.CaseRepo, docs *repo.DocumentRepo, chunks *repo.EmbeddingRepo, store filestore.Store, bucket string, extractor extract.Extractor, indexer *Indexer) *DocumentService {
	return &DocumentService{cases: cases, docs: docs, chunks: chunks, store: store, bucket: bucket, extractor: extractor, indexer: indexer}
}

func (s *DocumentService) List(ctx context.Context, caseID string) ([]model.Document, error) {
	return s.docs.ListByCase(ctx, caseID)
}

func (s *DocumentService) Get(ctx context.Context, caseID, documentID string) (*model.Document, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.CaseID != caseID {
		return nil, appErr.ErrNotFound
	}
	return doc, nil
}

// Store extracts the text of an upload, saves the original to the blob store
// and records the document. Indexing failures are logged only; the document
// is still returned and can be reindexed later.
func (s *DocumentService) Store(ctx context.Context, caseID, fileName, mimeType string, data []byte) (*model.Document, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" || len(data) == 0 {
		return nil, appErr.ErrInvalid
	}
	if _, err := s.cases.GetByID(ctx, caseID); err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("case_id", caseID), zap.String("file_name", fileName))

	var content *string
	if text, ok := s.extractor.Extract(ctx, fileName, mimeType, data); ok && strings.TrimSpace(text) != "" {
		content = &text
	}
	contentType := mimeType
	if contentType == "" {
		contentType = defaultContentType
	}
	url, err := s.store.Upload(ctx, s.bucket, newID()+"/"+fileName, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	doc := &model.Document{
		ID:       newID(),
		CaseID:   caseID,
		FileName: fileName,
		FileURL:  url,
		Content:  content,
		Ctime:    timeutil.NowUnix(),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Text()) != "" {
		if err := s.indexer.ReindexDocument(ctx, doc, doc.Text()); err != nil {
			logger.Error("index uploaded document failed", zap.String("doc_id", doc.ID), zap.Error(err))
		}
	}
	return doc, nil
}

// Reindex rebuilds the chunks of a stored document from its saved text.
func (s *DocumentService) Reindex(ctx context.Context, caseID, documentID string) (int, error) {
	doc, err := s.Get(ctx, caseID, documentID)
	if err != nil {
		return 0, err
	}
	if err := s.indexer.ReindexDocument(ctx, doc, doc.Text()); err != nil {
		return 0, err
	}
	if err := s.docs.ResetReindexAttempts(ctx, doc.ID); err != nil {
		logutil.GetLogger(ctx).Warn("reset reindex attempts failed", zap.String("doc_id", doc.ID), zap.Error(err))
	}
	return s.chunks.CountByDocument(ctx, doc.ID)
}

// ReindexPending indexes up to limit documents that carry text but have no
// chunks and returns how many got chunks. Every pass that leaves a document
// without chunks is recorded against it; after maxPendingAttempts the
// document is no longer picked up. Failures do not stop the batch.
func (s *DocumentService) ReindexPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	docs, err := s.docs.ListUnindexed(ctx, maxPendingAttempts, uint(limit))
	if err != nil {
		return 0, err
	}
	logger := logutil.GetLogger(ctx)
	done := 0
	var errs []error
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return done, errors.Join(append(errs, err)...)
		}
		doc := &docs[i]
		n, err := s.reindexPending(ctx, doc)
		if err != nil {
			logger.Warn("reindex pending document failed", zap.String("doc_id", doc.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("reindex %s: %w", doc.ID, err))
		}
		if n == 0 {
			if err := s.docs.RecordReindexAttempt(ctx, doc.ID, timeutil.NowUnix()); err != nil {
				errs = append(errs, fmt.Errorf("record attempt %s: %w", doc.ID, err))
			}
			continue
		}
		if err := s.docs.ResetReindexAttempts(ctx, doc.ID); err != nil {
			logger.Warn("reset reindex attempts failed", zap.String("doc_id", doc.ID), zap.Error(err))
		}
		done++
	}
	return done, errors.Join(errs...)
}

func (s *DocumentService) reindexPending(ctx context.Context, doc *model.Document) (int, error) {
	if strings.TrimSpace(doc.Text()) == "" {
		return 0, nil
	}
	if err := s.indexer.ReindexDocument(ctx, doc, doc.Text()); err != nil {
		return 0, err
	}
	return s.chunks.CountByDocument(ctx, doc.ID)
}

// Delete removes the chunks first and then the document itself, holding the
// indexer lock of the document so a running reindex cannot add chunks back.
func (s *DocumentService) Delete(ctx context.Context, caseID, documentID string) error {
	doc, err := s.Get(ctx, caseID, documentID)
	if err != nil {
		return err
	}
	return s.indexer.Purge(ctx, doc.ID, func(ctx context.Context) error {
		return s.docs.Delete(ctx, caseID, doc.ID)
	})
}
