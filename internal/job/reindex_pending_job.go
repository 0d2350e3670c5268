package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/lexdesk/internal/service"
)

// ReindexPendingJob indexes documents that have text but no chunks, which is
// the state a failed embedding pass leaves behind.
type ReindexPendingJob struct {
	docs  *service.DocumentService
	batch int
}

func NewReindexPendingJob(docs *service.DocumentService, batch int) *ReindexPendingJob {
	return &ReindexPendingJob{docs: docs, batch: batch}
}

func (j *ReindexPendingJob) Name() string {
	return "reindex_pending"
}

func (j *ReindexPendingJob) Run(ctx context.Context) error {
	if j.docs == nil {
		return nil
	}
	done, err := j.docs.ReindexPending(ctx, j.batch)
	if done > 0 {
		logutil.GetLogger(ctx).Info("pending documents reindexed", zap.Int("count", done))
	}
	return err
}
