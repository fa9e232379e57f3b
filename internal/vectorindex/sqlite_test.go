package vectorindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mjournal/internal/ai"
	"github.com/xxxsen/mjournal/internal/config"
	"github.com/xxxsen/mjournal/internal/model"
	appErr "github.com/xxxsen/mjournal/internal/pkg/errors"
)

func newSQLiteIndex(t *testing.T, path string, dim int) *Index {
	t.Helper()
	backend, err := NewBackend(config.IndexConfig{Type: "sqlite", Data: map[string]interface{}{"path": path}})
	require.NoError(t, err)
	idx := New(backend, ai.NewLocalEmbedder(dim))
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSQLiteIndex_AddQueryList(t *testing.T) {
	ctx := context.Background()
	idx := newSQLiteIndex(t, filepath.Join(t.TempDir(), "index", "journal.db"), 64)

	entries := []struct {
		id   string
		text string
		ts   int64
	}{
		{"a", "deploy pipeline failed on staging", 1000},
		{"b", "I enjoyed the quiet morning walk", 2000},
		{"c", "deploy pipeline fixed after retry", 3000},
	}
	for _, e := range entries {
		meta := model.EntryMetadata{Text: e.text, Sections: []string{"Project Notes"}, Timestamp: e.ts, Path: e.id + ".md", Type: model.ScopeProject}
		require.NoError(t, idx.Add(ctx, e.id, e.text, meta))
	}

	vec, err := idx.EmbedQuery(ctx, "deploy pipeline")
	require.NoError(t, err)
	hits, err := idx.Query(ctx, model.ScopeProject, vec, 2, Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.ElementsMatch(t, []string{"a", "c"}, []string{hits[0].ID, hits[1].ID})
	require.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
	require.Equal(t, []string{"Project Notes"}, hits[0].Metadata.Sections)
	require.Equal(t, model.ScopeProject, hits[0].Metadata.Type)

	from := int64(2500)
	hits, err = idx.Query(ctx, model.ScopeProject, vec, 10, Filter{TimestampFrom: &from})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "c", hits[0].ID)

	listed, err := idx.List(ctx, model.ScopeProject, Filter{}, 2)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "c", listed[0].ID)
	require.Equal(t, "b", listed[1].ID)

	listed, err = idx.List(ctx, model.ScopeUser, Filter{}, 10)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestSQLiteIndex_DuplicateIDConflicts(t *testing.T) {
	ctx := context.Background()
	idx := newSQLiteIndex(t, filepath.Join(t.TempDir(), "journal.db"), 32)
	meta := model.EntryMetadata{Text: "x", Timestamp: 1, Path: "x.md", Type: model.ScopeUser}
	require.NoError(t, idx.Add(ctx, "dup", "x", meta))
	err := idx.Add(ctx, "dup", "x", meta)
	require.ErrorIs(t, err, appErr.ErrConflict)
}

func TestSQLiteIndex_DimensionPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	first := newSQLiteIndex(t, path, 32)
	require.NoError(t, first.Add(ctx, "a", "alpha", model.EntryMetadata{Text: "alpha", Type: model.ScopeUser}))
	require.NoError(t, first.Close())

	second := newSQLiteIndex(t, path, 48)
	err := second.Add(ctx, "b", "beta", model.EntryMetadata{Text: "beta", Type: model.ScopeUser})
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)

	require.NoError(t, second.Reset(ctx))
	require.NoError(t, second.Add(ctx, "b", "beta", model.EntryMetadata{Text: "beta", Type: model.ScopeUser}))
}

func TestSQLiteIndex_QueryAfterBindByAnotherHandle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	reader := newSQLiteIndex(t, path, 32)
	require.NoError(t, reader.Initialize(ctx))

	writer := newSQLiteIndex(t, path, 16)
	require.NoError(t, writer.Add(ctx, "a", "alpha", model.EntryMetadata{Text: "alpha", Type: model.ScopeUser}))

	vec, err := reader.EmbedQuery(ctx, "alpha")
	require.NoError(t, err)
	_, err = reader.Query(ctx, model.ScopeUser, vec, 5, Filter{})
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)

	_, err = reader.backend.Query(ctx, CollectionUser, vec, 5, Filter{})
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
}

func TestSQLiteIndex_HasDelete(t *testing.T) {
	ctx := context.Background()
	idx := newSQLiteIndex(t, filepath.Join(t.TempDir(), "journal.db"), 16)
	require.NoError(t, idx.Add(ctx, "a", "alpha", model.EntryMetadata{Text: "alpha", Type: model.ScopeUser}))

	ok, err := idx.Has(ctx, model.ScopeUser, "a")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, idx.Delete(ctx, model.ScopeUser, "a"))
	ok, err = idx.Has(ctx, model.ScopeUser, "a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNewBackend_Errors(t *testing.T) {
	_, err := NewBackend(config.IndexConfig{Type: "chroma"})
	require.Error(t, err)
	_, err = NewBackend(config.IndexConfig{Type: "sqlite", Data: map[string]interface{}{}})
	require.Error(t, err)
	_, err = NewBackend(config.IndexConfig{Type: "postgres", Data: map[string]interface{}{"port": 5432}})
	require.Error(t, err)
}

func TestVectorBlobRoundTrip(t *testing.T) {
	vec := []float32{0.5, -1, 3.25}
	got, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	require.Equal(t, vec, got)
	_, err = decodeVector([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestCosineDistance(t *testing.T) {
	require.InDelta(t, 0, cosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	require.InDelta(t, 1, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.InDelta(t, 2, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	require.Equal(t, float64(1), cosineDistance([]float32{0, 0}, []float32{1, 0}))
	require.Equal(t, float64(1), cosineDistance([]float32{1}, []float32{1, 0}))
}
