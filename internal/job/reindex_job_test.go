package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mjournal/internal/journal"
)

type stubReindexer struct {
	calls int
	err   error
}

func (s *stubReindexer) Reindex(ctx context.Context) (*journal.ReindexStats, error) {
	s.calls++
	return &journal.ReindexStats{}, s.err
}

func TestReindexJob(t *testing.T) {
	stub := &stubReindexer{}
	job := NewReindexJob(stub)
	require.Equal(t, "journal_reindex", job.Name())
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 1, stub.calls)

	stub.err = errors.New("walk failed")
	require.Error(t, job.Run(context.Background()))

	require.NoError(t, NewReindexJob(nil).Run(context.Background()))
}
