package websocket

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Kartikroy01/video-chat/chat"
	"github.com/Kartikroy01/video-chat/logger"
	"github.com/Kartikroy01/video-chat/metrics"
	"github.com/Kartikroy01/video-chat/presence"
)

// ClientManager tracks connected websocket clients for a single server
// instance and resolves hub deliveries to actual sockets. It also mirrors
// online status into the persistent presence store.
type ClientManager struct {
	clients  sync.Map // connID -> *ClientSession
	mu       sync.Mutex
	byUser   map[string]map[string]*ClientSession // userID -> connID -> session
	wg       sync.WaitGroup
	store    presence.Store
	serverID string
}

// NewClientManager creates a new client manager.
func NewClientManager(store presence.Store, serverID string) *ClientManager {
	return &ClientManager{
		byUser:   make(map[string]map[string]*ClientSession),
		store:    store,
		serverID: serverID,
	}
}

// AddClient registers a live connection.
func (m *ClientManager) AddClient(cs *ClientSession) {
	m.clients.Store(cs.ID, cs)

	m.mu.Lock()
	conns := m.byUser[cs.Identity.UserID]
	if conns == nil {
		conns = make(map[string]*ClientSession)
		m.byUser[cs.Identity.UserID] = conns
	}
	conns[cs.ID] = cs
	m.mu.Unlock()

	metrics.ActiveConnections.Inc()
	metrics.TotalConnections.Inc()
	logger.Infof("Client %s connected for user %s on server %s", cs.ID, cs.Identity.UserID, m.serverID)
}

// RemoveClient drops a connection and, when it was the user's last one,
// records the user offline in the presence store. A connection can be
// removed twice: shutdown closes it through CloseAllConnections and the
// read loop's teardown then races in with the same removal. The second
// call must not touch the gauges again.
func (m *ClientManager) RemoveClient(cs *ClientSession) {
	if _, present := m.clients.LoadAndDelete(cs.ID); !present {
		return
	}

	lastConn := false
	m.mu.Lock()
	if conns, ok := m.byUser[cs.Identity.UserID]; ok {
		delete(conns, cs.ID)
		if len(conns) == 0 {
			delete(m.byUser, cs.Identity.UserID)
			lastConn = true
		}
	}
	m.mu.Unlock()

	if lastConn {
		// The request context is gone by the time we get here.
		if err := m.store.SetOffline(context.Background(), cs.Identity.UserID); err != nil {
			logger.Errorf("Failed to record user %s offline: %v", cs.Identity.UserID, err)
		}
	}

	metrics.ActiveConnections.Dec()
	logger.Infof("Client %s disconnected (user %s)", cs.ID, cs.Identity.UserID)
}

// GetClient retrieves a live connection by its connection id.
func (m *ClientManager) GetClient(connID string) (*ClientSession, bool) {
	if cs, ok := m.clients.Load(connID); ok {
		return cs.(*ClientSession), true
	}
	return nil, false
}

// ClientsForUser returns all live connections of a user.
func (m *ClientManager) ClientsForUser(userID string) []*ClientSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns := m.byUser[userID]
	out := make([]*ClientSession, 0, len(conns))
	for _, cs := range conns {
		out = append(out, cs)
	}
	return out
}

// MarkOnline records the user online in the presence store.
func (m *ClientManager) MarkOnline(ctx context.Context, userID string) {
	if err := m.store.SetOnline(ctx, userID, m.serverID); err != nil {
		logger.Errorf("Failed to record user %s online: %v", userID, err)
	}
}

// RefreshPresence extends the user's presence record. Failures are logged
// only; a transient Redis hiccup is no reason to drop the connection.
func (m *ClientManager) RefreshPresence(ctx context.Context, userID string) {
	if err := m.store.RefreshTTL(ctx, userID); err != nil {
		logger.Warnf("Failed to refresh presence TTL for user %s: %v", userID, err)
	}
}

// Deliver writes one hub delivery to its destination: a single connection,
// all connections of a user, or every connected client. A vanished
// recipient is a silent drop; delivery here is best-effort.
func (m *ClientManager) Deliver(d chat.Delivery) {
	switch {
	case d.ConnID != "":
		if cs, ok := m.GetClient(d.ConnID); ok {
			m.write(cs, d)
		}
	case d.UserID != "":
		for _, cs := range m.ClientsForUser(d.UserID) {
			m.write(cs, d)
		}
	default:
		m.clients.Range(func(_, value interface{}) bool {
			m.write(value.(*ClientSession), d)
			return true
		})
	}
}

// DeliverAll writes a batch of deliveries in order.
func (m *ClientManager) DeliverAll(deliveries []chat.Delivery) {
	for _, d := range deliveries {
		m.Deliver(d)
	}
}

func (m *ClientManager) write(cs *ClientSession, d chat.Delivery) {
	if err := cs.WriteEvent(d.Event, d.Payload); err != nil {
		logger.Warnf("Failed to deliver %s to client %s: %v", d.Event, cs.ID, err)
	}
}

// IncreaseWaitGroup tracks an in-flight background operation.
func (m *ClientManager) IncreaseWaitGroup() {
	m.wg.Add(1)
}

// DecreaseWaitGroup marks a background operation done.
func (m *ClientManager) DecreaseWaitGroup() {
	m.wg.Done()
}

// WaitForCompletion waits for all background operations to complete.
func (m *ClientManager) WaitForCompletion() {
	m.wg.Wait()
}

// CloseAllConnections sends close messages to all clients and removes them.
func (m *ClientManager) CloseAllConnections(reason string) {
	m.clients.Range(func(_, value interface{}) bool {
		cs := value.(*ClientSession)
		logger.Infof("Closing connection for client %s: %s", cs.ID, reason)
		cs.Close(websocket.CloseGoingAway, reason)
		m.RemoveClient(cs)
		return true
	})
}
