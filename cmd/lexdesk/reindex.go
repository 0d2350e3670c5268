package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xxxsen/lexdesk/internal/model"
)

const reindexPageSize = 200

type reindexOptions struct {
	CaseID    string
	Parallel  int
	PerSecond float64
}

// runReindex re-embeds every document with text. Documents run concurrently
// up to Parallel and are started no faster than PerSecond so the embedding
// provider is not flooded.
func runReindex(ctx context.Context, a *app, opts reindexOptions) error {
	logger := logutil.GetLogger(ctx)
	docs, err := listForReindex(ctx, a, opts.CaseID)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	limit := rate.Inf
	if opts.PerSecond > 0 {
		limit = rate.Limit(opts.PerSecond)
	}
	limiter := rate.NewLimiter(limit, 1)
	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	var done, failed, skipped atomic.Int64
	for i := range docs {
		doc := &docs[i]
		if doc.Text() == "" {
			skipped.Add(1)
			continue
		}
		if err := limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			if err := a.indexer.ReindexDocument(gctx, doc, doc.Text()); err != nil {
				failed.Add(1)
				logger.Error("reindex document failed", zap.String("doc_id", doc.ID), zap.String("case_id", doc.CaseID), zap.Error(err))
				return nil
			}
			done.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	logger.Info("reindex finished",
		zap.Int("documents", len(docs)),
		zap.Int64("done", done.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int64("skipped", skipped.Load()),
	)
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d documents failed to reindex", n)
	}
	return nil
}

func listForReindex(ctx context.Context, a *app, caseID string) ([]model.Document, error) {
	if caseID != "" {
		return a.docRepo.ListByCase(ctx, caseID)
	}
	var all []model.Document
	for offset := uint(0); ; offset += reindexPageSize {
		page, err := a.docRepo.ListAll(ctx, offset, reindexPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < reindexPageSize {
			return all, nil
		}
	}
}
