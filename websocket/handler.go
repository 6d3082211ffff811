package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Kartikroy01/video-chat/auth"
	"github.com/Kartikroy01/video-chat/broker"
	"github.com/Kartikroy01/video-chat/chat"
	"github.com/Kartikroy01/video-chat/config"
	"github.com/Kartikroy01/video-chat/logger"
	"github.com/Kartikroy01/video-chat/metrics"
)

const publishTimeout = 10 * time.Second

// Upgrader for websocket connections
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inEnvelope frames every inbound client event.
type inEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound payload shapes, matching the web client's wire contract.
type chatRef struct {
	ChatID string `json:"chatId"`
}

type sendMessageReq struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type privateMessageReq struct {
	RecipientID string `json:"recipientId"`
	Message     string `json:"message"`
}

type signalReq struct {
	ChatID      string          `json:"chatId"`
	RecipientID string          `json:"recipientId"`
	Offer       json.RawMessage `json:"offer"`
	Answer      json.RawMessage `json:"answer"`
	Candidate   json.RawMessage `json:"candidate"`
}

// eventHandler processes one inbound event for a connection and returns
// the deliveries to write plus lifecycle events for the broker. Handlers
// never touch the socket themselves.
type eventHandler func(cs *ClientSession, data json.RawMessage) ([]chat.Delivery, []chat.LifecycleEvent)

// Handler authenticates new connections and routes their events into the
// hub via a dispatch table.
type Handler struct {
	manager      *ClientManager
	hub          *chat.Hub
	gateway      *auth.Gateway
	broker       broker.MessageBroker
	authConfig   *config.AuthConfig
	eventChannel string
	dispatch     map[string]eventHandler
}

// NewHandler creates a new websocket handler.
func NewHandler(manager *ClientManager, hub *chat.Hub, gateway *auth.Gateway, messageBroker broker.MessageBroker, cfg *config.AppConfig) *Handler {
	h := &Handler{
		manager:      manager,
		hub:          hub,
		gateway:      gateway,
		broker:       messageBroker,
		authConfig:   &cfg.Auth,
		eventChannel: cfg.Broker.EventChannel,
	}
	h.dispatch = map[string]eventHandler{
		chat.EventUserOnline:     h.onUserOnline,
		chat.EventJoinQueue:      h.onJoinQueue,
		chat.EventSendMessage:    h.onSendMessage,
		chat.EventTyping:         h.onTyping,
		chat.EventStopTyping:     h.onStopTyping,
		chat.EventNextChat:       h.onNextChat,
		chat.EventEndChat:        h.onEndChat,
		chat.EventPrivateMessage: h.onPrivateMessage,
		chat.EventWebRTCOffer:    h.signalHandler(chat.SignalOffer),
		chat.EventWebRTCAnswer:   h.signalHandler(chat.SignalAnswer),
		chat.EventWebRTCICE:      h.signalHandler(chat.SignalICE),
	}
	return h
}

// HandleWebSocket handles incoming websocket connections.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get(h.authConfig.TokenQueryParam)

	identity, err := h.gateway.Authenticate(r.Context(), tokenString)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUnauthorized):
			metrics.AuthFailures.WithLabelValues("unauthorized").Inc()
			logger.Warnf("Refused connection from %s: %v", r.RemoteAddr, err)
			http.Error(w, "User not authorized", http.StatusForbidden)
		default:
			metrics.AuthFailures.WithLabelValues("unauthenticated").Inc()
			logger.Warnf("Refused connection from %s: %v", r.RemoteAddr, err)
			http.Error(w, "Authentication failed", http.StatusUnauthorized)
		}
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	connID := uuid.New().String()
	cs := NewClientSession(connID, identity, conn, &config.Get().WebSocket)
	if limit := cs.cfg.MessageSizeLimit; limit > 0 {
		conn.SetReadLimit(limit)
	}
	cs.StartTimers()
	conn.SetPongHandler(cs.GetPongHandler())

	h.manager.AddClient(cs)
	h.publishEvent(broker.Event{
		Type:    broker.EventUserConnected,
		UserIDs: []string{identity.UserID},
	})
	defer h.teardown(cs)

	// Tell the client how this connection is addressed.
	if err := cs.WriteEvent("connected", map[string]string{"connectionId": connID}); err != nil {
		logger.Errorf("Failed to send connection id to %s: %v", connID, err)
		cs.Close(websocket.CloseInternalServerErr, "Handshake write failed")
		return // defer handles hub and registry cleanup
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, net.ErrClosed) {
				logger.Warnf("Read error from client %s: %v", connID, err)
			}
			cs.Close(websocket.CloseNormalClosure, "Client disconnected")
			return
		}
		cs.UpdateActivity()
		h.manager.RefreshPresence(r.Context(), identity.UserID)

		var env inEnvelope
		if err := json.Unmarshal(msg, &env); err != nil || env.Event == "" {
			logger.Debug("Dropping malformed frame from client " + connID)
			continue
		}

		handle, ok := h.dispatch[env.Event]
		if !ok {
			logger.Debug("Unknown event " + env.Event + " from client " + connID)
			continue
		}

		deliveries, events := handle(cs, env.Data)
		h.manager.DeliverAll(deliveries)
		for _, ev := range events {
			h.publishLifecycle(ev)
		}
	}
}

// teardown performs the full disconnect cleanup: hub state, notifications
// to an abandoned peer, the connection registry, and the broker event.
func (h *Handler) teardown(cs *ClientSession) {
	deliveries, events := h.hub.Disconnect(cs.Identity, cs.ID)
	h.manager.RemoveClient(cs)
	h.manager.DeliverAll(deliveries)
	for _, ev := range events {
		h.publishLifecycle(ev)
	}
	h.publishEvent(broker.Event{
		Type:    broker.EventUserDisconnected,
		UserIDs: []string{cs.Identity.UserID},
	})
}

func (h *Handler) onUserOnline(cs *ClientSession, _ json.RawMessage) ([]chat.Delivery, []chat.LifecycleEvent) {
	h.manager.MarkOnline(cs.ctx, cs.Identity.UserID)
	return h.hub.Announce(cs.Identity, cs.ID), nil
}

func (h *Handler) onJoinQueue(cs *ClientSession, _ json.RawMessage) ([]chat.Delivery, []chat.LifecycleEvent) {
	return h.hub.JoinQueue(cs.Identity, cs.ID)
}

func (h *Handler) onSendMessage(cs *ClientSession, data json.RawMessage) ([]chat.Delivery, []chat.LifecycleEvent) {
	var req sendMessageReq
	if err := json.Unmarshal(data, &req); err != nil || req.ChatID == "" {
		return nil, nil
	}
	return h.hub.SendMessage(cs.Identity, req.ChatID, req.Message), nil
}

func (h *Handler) onTyping(cs *ClientSession, data json.RawMessage) ([]chat.Delivery, []chat.LifecycleEvent) {
	var req chatRef
	if err := json.Unmarshal(data, &req); err != nil || req.ChatID == "" {
		return nil, nil
	}
	return h.hub.Typing(cs.Identity, req.ChatID, false), nil
}

func (h *Handler) onStopTyping(cs *ClientSession, data json.RawMessage) ([]chat.Delivery, []chat.LifecycleEvent) {
	var req chatRef
	if err := json.Unmarshal(data, &req); err != nil || req.ChatID == "" {
		return nil, nil
	}
	return h.hub.Typing(cs.Identity, req.ChatID, true), nil
}

// onNextChat ignores the chat id the client echoes back; the hub ends
// whatever session the caller actually holds.
func (h *Handler) onNextChat(cs *ClientSession, _ json.RawMessage) ([]chat.Delivery, []chat.LifecycleEvent) {
	return h.hub.Skip(cs.Identity, cs.ID)
}

func (h *Handler) onEndChat(cs *ClientSession, data json.RawMessage) ([]chat.Delivery, []chat.LifecycleEvent) {
	var req chatRef
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, nil
	}
	return h.hub.EndChat(cs.Identity, req.ChatID)
}

func (h *Handler) onPrivateMessage(cs *ClientSession, data json.RawMessage) ([]chat.Delivery, []chat.LifecycleEvent) {
	var req privateMessageReq
	if err := json.Unmarshal(data, &req); err != nil || req.RecipientID == "" {
		return nil, nil
	}
	return h.hub.PrivateMessage(cs.Identity, req.RecipientID, req.Message), nil
}

func (h *Handler) signalHandler(kind chat.SignalKind) eventHandler {
	return func(cs *ClientSession, data json.RawMessage) ([]chat.Delivery, []chat.LifecycleEvent) {
		var req signalReq
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, nil
		}
		var payload json.RawMessage
		switch kind {
		case chat.SignalOffer:
			payload = req.Offer
		case chat.SignalAnswer:
			payload = req.Answer
		case chat.SignalICE:
			payload = req.Candidate
		}
		if len(payload) == 0 {
			return nil, nil
		}
		return h.hub.Signal(cs.Identity, kind, req.ChatID, req.RecipientID, payload), nil
	}
}

func (h *Handler) publishLifecycle(ev chat.LifecycleEvent) {
	h.publishEvent(broker.Event{
		Type:      ev.Type,
		SessionID: ev.SessionID,
		UserIDs:   ev.UserIDs,
		Reason:    ev.Reason,
		At:        ev.At,
	})
}

// publishEvent hands a lifecycle event to the broker off the hot path.
func (h *Handler) publishEvent(ev broker.Event) {
	if h.broker == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	ev.ServerID = h.manager.serverID

	h.manager.IncreaseWaitGroup()
	go func() {
		defer h.manager.DecreaseWaitGroup()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := h.broker.Publish(ctx, h.eventChannel, ev); err != nil {
			logger.Errorf("Failed to publish %s event: %v", ev.Type, err)
			return
		}
		metrics.BrokerEventsPublished.WithLabelValues(h.broker.Type()).Inc()
	}()
}
