package job

import (
	"context"

	"github.com/xxxsen/mjournal/internal/journal"
)

// Reindexer is satisfied by *journal.Store.
type Reindexer interface {
	Reindex(ctx context.Context) (*journal.ReindexStats, error)
}

// ReindexJob indexes entry files that were written while the index was unavailable.
type ReindexJob struct {
	store Reindexer
}

func NewReindexJob(store Reindexer) *ReindexJob {
	return &ReindexJob{store: store}
}

func (j *ReindexJob) Name() string {
	return "journal_reindex"
}

func (j *ReindexJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	_, err := j.store.Reindex(ctx)
	return err
}
