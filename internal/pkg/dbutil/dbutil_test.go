package dbutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalize_RebindsAndRewritesLimit(t *testing.T) {
	query, args := Finalize("SELECT id FROM t WHERE a = ? AND b >= ? LIMIT ?, ?", []interface{}{"x", 10, 0, 5})
	require.Equal(t, "SELECT id FROM t WHERE a = $1 AND b >= $2 LIMIT $3 OFFSET $4", query)
	require.Equal(t, []interface{}{"x", 10, 5, 0}, args)
}

func TestFinalize_PlainQuery(t *testing.T) {
	query, args := Finalize("DELETE FROM t WHERE id = ?", []interface{}{"x"})
	require.Equal(t, "DELETE FROM t WHERE id = $1", query)
	require.Equal(t, []interface{}{"x"}, args)
}

func TestIsConflict(t *testing.T) {
	require.True(t, IsConflict(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	require.False(t, IsConflict(&pq.Error{Code: "42P01"}))
	require.False(t, IsConflict(errors.New("boom")))
}
