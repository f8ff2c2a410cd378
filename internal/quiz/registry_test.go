package quiz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.Zero(t, r.Len())

	first := &Session{roomID: 1}
	require.NoError(t, r.Create(first))
	require.Equal(t, 1, r.Len())

	got, ok := r.Get(1)
	require.True(t, ok)
	require.Same(t, first, got)

	require.ErrorIs(t, r.Create(&Session{roomID: 1}), ErrGameInProgress)

	require.NoError(t, r.Create(&Session{roomID: 2}))
	require.Equal(t, 2, r.Len())

	r.Remove(1)
	_, ok = r.Get(1)
	require.False(t, ok)
	require.Equal(t, 1, r.Len())

	r.Remove(1) // removing twice is harmless
	require.Equal(t, 1, r.Len())
}
