package websocket

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kartikroy01/video-chat/auth"
	"github.com/Kartikroy01/video-chat/metrics"
	"github.com/Kartikroy01/video-chat/presence"
)

func newTestManager() *ClientManager {
	return NewClientManager(presence.NewMemoryStore(), "test-server")
}

func testClient(connID, userID string) *ClientSession {
	return &ClientSession{ID: connID, Identity: auth.Identity{UserID: userID}}
}

func TestClientManager_RemoveClientTwiceDecrementsOnce(t *testing.T) {
	m := newTestManager()
	baseline := testutil.ToFloat64(metrics.ActiveConnections)

	cs := testClient("conn-1", "u1")
	m.AddClient(cs)
	require.Equal(t, baseline+1, testutil.ToFloat64(metrics.ActiveConnections))

	// Shutdown closes the connection through CloseAllConnections, then the
	// read loop's teardown removes the same client again.
	m.RemoveClient(cs)
	m.RemoveClient(cs)

	assert.Equal(t, baseline, testutil.ToFloat64(metrics.ActiveConnections),
		"a duplicate removal must not drive the gauge negative")
	_, ok := m.GetClient("conn-1")
	assert.False(t, ok)
}

func TestClientManager_StaleRemoveKeepsNewConnection(t *testing.T) {
	m := newTestManager()

	old := testClient("conn-old", "u1")
	m.AddClient(old)
	m.RemoveClient(old)

	fresh := testClient("conn-fresh", "u1")
	m.AddClient(fresh)

	// A duplicate removal of the old connection must not disturb the new one.
	m.RemoveClient(old)

	got, ok := m.GetClient("conn-fresh")
	require.True(t, ok)
	assert.Same(t, fresh, got)
	assert.Len(t, m.ClientsForUser("u1"), 1)
}
