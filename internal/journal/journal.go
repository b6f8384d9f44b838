package journal

import (
	"context"

	"github.com/notesync/notesync/internal/models"
)

// Journal persists the history of auto-commits and sync jobs. It is a
// convenience record for `notesync log` and the API; journal failures are
// never allowed to block committing.
type Journal interface {
	RecordCommit(ctx context.Context, rec *models.CommitRecord) error
	ListCommits(ctx context.Context, limit int) ([]*models.CommitRecord, error)

	RecordSyncJob(ctx context.Context, job *models.SyncJob) error
	ListSyncJobs(ctx context.Context, limit int) ([]*models.SyncJob, error)

	Migrate(ctx context.Context) error
	Close() error
}
