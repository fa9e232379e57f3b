package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mjournal/internal/ai"
	"github.com/xxxsen/mjournal/internal/config"
	"github.com/xxxsen/mjournal/internal/db/dbtest"
	"github.com/xxxsen/mjournal/internal/model"
)

func TestPostgresIndex_AddQuery(t *testing.T) {
	cfg := dbtest.PostgresConfig(t)
	ctx := context.Background()
	data := map[string]interface{}{
		"host":     cfg.Host,
		"port":     cfg.Port,
		"user":     cfg.User,
		"password": cfg.Password,
		"dbname":   cfg.DBName,
		"sslmode":  cfg.SSLMode,
	}
	backend, err := NewBackend(config.IndexConfig{Type: "postgres", Data: data})
	require.NoError(t, err)
	idx := New(backend, ai.NewLocalEmbedder(32))
	defer idx.Close()
	require.NoError(t, idx.Reset(ctx))

	require.NoError(t, idx.Add(ctx, "a", "release notes drafted", model.EntryMetadata{Text: "release notes drafted", Timestamp: 10, Type: model.ScopeUser}))
	require.NoError(t, idx.Add(ctx, "b", "garden tomatoes ripened", model.EntryMetadata{Text: "garden tomatoes ripened", Timestamp: 20, Type: model.ScopeUser}))

	vec, err := idx.EmbedQuery(ctx, "release notes")
	require.NoError(t, err)
	hits, err := idx.Query(ctx, model.ScopeUser, vec, 1, Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "a", hits[0].ID)

	listed, err := idx.List(ctx, model.ScopeUser, Filter{}, 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "b", listed[0].ID)

	from := int64(15)
	hits, err = idx.Query(ctx, model.ScopeUser, vec, 5, Filter{TimestampFrom: &from})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "b", hits[0].ID)
}
