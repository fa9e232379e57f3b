package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mjournal/internal/model"
)

func TestReindex_AddsOnlyMissingEntries(t *testing.T) {
	layout := newTestLayout(t)
	index := newFakeIndexer()
	now := time.Date(2024, 11, 5, 22, 10, 3, 123_456_000, time.Local)
	store := NewStore(layout, index, WithClock(fixedClock(now)))

	indexed, err := store.WriteEntry(context.Background(), model.ScopeUser, "already indexed", nil)
	require.NoError(t, err)

	// a file written while the index was down
	bucket := filepath.Join(layout.ProjectRoot, "2024-11-05")
	require.NoError(t, os.MkdirAll(bucket, 0o755))
	orphan := filepath.Join(bucket, "22-11-00-000500-abc.md")
	require.NoError(t, os.WriteFile(orphan, []byte("## Project Notes\n\nmigrated schema\n"), 0o644))
	// not part of the layout
	require.NoError(t, os.WriteFile(filepath.Join(layout.ProjectRoot, "README.md"), []byte("x"), 0o644))

	stats, err := store.Reindex(context.Background())
	require.NoError(t, err)
	require.Equal(t, &ReindexStats{Scanned: 3, Added: 1, Skipped: 2}, stats)

	meta, ok := index.entries["project/"+EntryID(model.ScopeProject, "2024-11-05/22-11-00-000500-abc.md")]
	require.True(t, ok)
	require.Equal(t, []string{"project_notes"}, meta.Sections)
	want := time.Date(2024, 11, 5, 22, 11, 0, 500_000, time.Local).UnixMilli()
	require.Equal(t, want, meta.Timestamp)
	require.Equal(t, model.ScopeProject, meta.Type)

	ok, err = index.Has(context.Background(), model.ScopeUser, indexed.ID)
	require.NoError(t, err)
	require.True(t, ok)

	stats, err = store.Reindex(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, stats.Added)
}

func TestReindex_RecoversWriteTimestamp(t *testing.T) {
	layout := newTestLayout(t)
	index := newFakeIndexer()
	index.err = os.ErrPermission
	now := time.Date(2023, 6, 1, 8, 0, 0, 42_000_000, time.Local)
	store := NewStore(layout, index, WithClock(fixedClock(now)))

	entry, err := store.WriteEntry(context.Background(), model.ScopeUser, "## Feelings\n\n## Side Quest\n\ncalm", nil)
	require.Error(t, err)

	index.err = nil
	stats, err := store.Reindex(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Added)
	meta := index.entries["user/"+entry.ID]
	require.Equal(t, entry.Timestamp, meta.Timestamp)
	require.Equal(t, []string{"feelings", "Side Quest"}, meta.Sections)
}

func TestReindex_MissingRoots(t *testing.T) {
	store := NewStore(newTestLayout(t), newFakeIndexer())
	stats, err := store.Reindex(context.Background())
	require.NoError(t, err)
	require.Equal(t, &ReindexStats{}, stats)
}

func TestEntryTimestamp(t *testing.T) {
	_, ok := entryTimestamp("README.md")
	require.False(t, ok)
	_, ok = entryTimestamp("2024-01-01/notes.md")
	require.False(t, ok)
	_, ok = entryTimestamp("2024-01-01/10-00-00-xx-abc.md")
	require.False(t, ok)
	ts, ok := entryTimestamp("2024-01-01/10-00-00-001000-abc.md")
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 1_000_000, time.Local).UnixMilli(), ts)
}
