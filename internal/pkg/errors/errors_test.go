package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsNotFound_MatchesWrappedEntryNotFound(t *testing.T) {
	err := fmt.Errorf("read 2026-01-01/a.md: %w", ErrEntryNotFound)
	require.True(t, IsNotFound(err))
	require.False(t, IsConflict(err))
}

func TestIsIndexUnavailable_MatchesJoinedCause(t *testing.T) {
	err := fmt.Errorf("%w: %w", ErrIndexUnavailable, fmt.Errorf("dial tcp: refused"))
	require.True(t, IsIndexUnavailable(err))
	require.False(t, IsNotFound(err))
}
