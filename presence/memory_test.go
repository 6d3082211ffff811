package presence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	st, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, st, "unknown user has no status")

	require.NoError(t, s.SetOnline(ctx, "u1", "server-1"))
	st, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "server-1", st.ServerID)
	assert.False(t, st.OnlineAt.IsZero())

	require.NoError(t, s.SetOffline(ctx, "u1"))
	st, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Empty(t, st.ServerID, "offline record keeps only last-online time")
	assert.False(t, st.LastOnline.IsZero())

	require.NoError(t, s.RefreshTTL(ctx, "u1"))
}
