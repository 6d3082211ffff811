package chat

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/Kartikroy01/video-chat/auth"
	"github.com/Kartikroy01/video-chat/filter"
	"github.com/Kartikroy01/video-chat/logger"
	"github.com/Kartikroy01/video-chat/metrics"
)

// Peer notification texts for the three ways a session ends.
const (
	MsgPeerEnded   = "The other user ended the chat"
	MsgPeerSkipped = "The other user skipped to the next chat"
	MsgPeerLeft    = "The other user left the chat"
)

const (
	ReasonEnded      = "ended"
	ReasonSkipped    = "skipped"
	ReasonDisconnect = "disconnect"
)

// SignalKind selects which WebRTC signaling event is being relayed.
type SignalKind int

const (
	SignalOffer SignalKind = iota
	SignalAnswer
	SignalICE
)

// Hub owns the shared matchmaking state: the presence set, the waiting
// queue, and the session registry. Events from independent connections
// interleave arbitrarily, so every operation runs under one mutex; the
// queue-length check and the double dequeue are never split. Hub methods
// do no I/O: they return the deliveries the transport must write, which
// keeps socket writes outside the lock and the whole state machine
// testable without a live connection.
type Hub struct {
	mu       sync.Mutex
	online   map[string]struct{}
	queue    *Queue
	sessions *Sessions
	filter   *filter.Filter
}

func NewHub(f *filter.Filter) *Hub {
	return &Hub{
		online:   make(map[string]struct{}),
		queue:    NewQueue(),
		sessions: NewSessions(),
		filter:   f,
	}
}

// OnlineCount is queue length plus two per active session. Users who are
// connected but neither waiting nor paired are not counted; this is the
// product's definition of "online", not the raw connection count.
func (h *Hub) OnlineCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.onlineCountLocked()
}

func (h *Hub) onlineCountLocked() int {
	return h.queue.Len() + 2*h.sessions.Len()
}

func (h *Hub) countBroadcastLocked() Delivery {
	return Delivery{
		Event:   EventOnlineCount,
		Payload: OnlineCountPayload{OnlineCount: h.onlineCountLocked()},
	}
}

func (h *Hub) updateGaugesLocked() {
	metrics.QueueDepth.Set(float64(h.queue.Len()))
	metrics.ActiveSessions.Set(float64(h.sessions.Len()))
}

// Announce marks the user online. Registering twice is harmless.
func (h *Hub) Announce(id auth.Identity, connID string) []Delivery {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.online[id.UserID] = struct{}{}
	return []Delivery{h.countBroadcastLocked()}
}

// JoinQueue enrolls the user for random pairing and attempts a match. Any
// stale queue entry or live session held by the same user is cleared
// first, so a rapid skip-and-rejoin never leaves two concurrent selves in
// the structures.
func (h *Hub) JoinQueue(id auth.Identity, connID string) ([]Delivery, []LifecycleEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Delivery
	var events []LifecycleEvent

	if s, ok := h.sessions.ByUser(id.UserID); ok {
		out, events = h.endSessionLocked(s.ID, id.UserID, ReasonSkipped, out, events)
	}
	h.queue.Remove(id.UserID)
	h.queue.Enqueue(QueueEntry{
		UserID:      id.UserID,
		ConnID:      connID,
		Alias:       id.Alias,
		Institution: id.Institution,
	})

	out, events = h.tryMatchLocked(out, events)
	out = append(out, h.countBroadcastLocked())
	h.updateGaugesLocked()
	return out, events
}

// Skip ends the caller's current session, notifies the abandoned peer,
// and re-enqueues the caller for a fresh match. The session is resolved
// by user, never by a client-supplied id: a duplicate skip arrives
// carrying the id of a session that already ended, and honoring it would
// enqueue a user who is mid-session in their replacement match.
func (h *Hub) Skip(id auth.Identity, connID string) ([]Delivery, []LifecycleEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Delivery
	var events []LifecycleEvent

	if s, ok := h.sessions.ByUser(id.UserID); ok {
		out, events = h.endSessionLocked(s.ID, id.UserID, ReasonSkipped, out, events)
	}
	h.queue.Remove(id.UserID)
	h.queue.Enqueue(QueueEntry{
		UserID:      id.UserID,
		ConnID:      connID,
		Alias:       id.Alias,
		Institution: id.Institution,
	})

	out, events = h.tryMatchLocked(out, events)
	out = append(out, h.countBroadcastLocked())
	h.updateGaugesLocked()
	return out, events
}

// EndChat ends the caller's session without re-enqueueing them.
func (h *Hub) EndChat(id auth.Identity, chatID string) ([]Delivery, []LifecycleEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Delivery
	var events []LifecycleEvent

	if s, ok := h.sessions.Get(chatID); ok && s.Has(id.UserID) {
		out, events = h.endSessionLocked(chatID, id.UserID, ReasonEnded, out, events)
	}
	h.queue.Remove(id.UserID)

	out = append(out, h.countBroadcastLocked())
	h.updateGaugesLocked()
	return out, events
}

// Disconnect is the universal cancellation signal: the user leaves the
// presence set and the queue, and any session they held ends with the
// remaining peer notified as if the user left. All three effects happen
// under one lock; partial cleanup would leak entries.
func (h *Hub) Disconnect(id auth.Identity, connID string) ([]Delivery, []LifecycleEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Delivery
	var events []LifecycleEvent

	delete(h.online, id.UserID)
	h.queue.Remove(id.UserID)
	if s, ok := h.sessions.ByUser(id.UserID); ok {
		out, events = h.endSessionLocked(s.ID, id.UserID, ReasonDisconnect, out, events)
	}

	out = append(out, h.countBroadcastLocked())
	h.updateGaugesLocked()
	return out, events
}

// SendMessage relays chat text to the other session member. Blank text is
// dropped, content is filtered, and the sender never receives an echo.
func (h *Hub) SendMessage(id auth.Identity, chatID, text string) []Delivery {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	filtered := h.filter.Apply(text)

	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions.Get(chatID)
	if !ok || !s.Has(id.UserID) {
		// Session raced away (peer skipped or disconnected); drop.
		return nil
	}
	other, ok := s.Other(id.UserID)
	if !ok {
		return nil
	}

	metrics.MessagesRelayed.WithLabelValues("chat").Inc()
	return []Delivery{{
		ConnID: other.ConnID,
		Event:  EventReceiveMessage,
		Payload: ReceiveMessagePayload{
			Sender:    id.Alias,
			Message:   filtered,
			Timestamp: time.Now(),
		},
	}}
}

// Typing forwards a typing indicator to the other session member,
// verbatim. A stop indicator the client never sends is bounded by the
// client's own inactivity window; the hub imposes no timer.
func (h *Hub) Typing(id auth.Identity, chatID string, stopped bool) []Delivery {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions.Get(chatID)
	if !ok || !s.Has(id.UserID) {
		return nil
	}
	other, ok := s.Other(id.UserID)
	if !ok {
		return nil
	}

	event := EventUserTyping
	if stopped {
		event = EventUserStopTyping
	}
	return []Delivery{{
		ConnID:  other.ConnID,
		Event:   event,
		Payload: TypingPayload{User: id.Alias},
	}}
}

// PrivateMessage relays filtered text to every live connection of a
// friend, bypassing sessions.
func (h *Hub) PrivateMessage(id auth.Identity, recipientID, text string) []Delivery {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	metrics.MessagesRelayed.WithLabelValues("private").Inc()
	return []Delivery{{
		UserID: recipientID,
		Event:  EventReceivePrivate,
		Payload: ReceivePrivatePayload{
			Sender:    id.Alias,
			SenderID:  id.UserID,
			Message:   h.filter.Apply(text),
			Timestamp: time.Now(),
		},
	}}
}

// Signal relays an opaque WebRTC payload. With a chatID it goes to the
// other session participant only; otherwise to the addressed peer's
// private channel. The payload is never inspected and never echoed.
func (h *Hub) Signal(id auth.Identity, kind SignalKind, chatID, recipientID string, payload json.RawMessage) []Delivery {
	var event string
	var body any
	switch kind {
	case SignalOffer:
		event = EventReceiveOffer
		body = ReceiveOfferPayload{From: id.UserID, Offer: payload}
	case SignalAnswer:
		event = EventReceiveAnswer
		body = ReceiveAnswerPayload{From: id.UserID, Answer: payload}
	case SignalICE:
		event = EventReceiveCandidate
		body = ReceiveCandidatePayload{From: id.UserID, Candidate: payload}
	default:
		return nil
	}

	if chatID != "" {
		h.mu.Lock()
		defer h.mu.Unlock()

		s, ok := h.sessions.Get(chatID)
		if !ok || !s.Has(id.UserID) {
			return nil
		}
		other, ok := s.Other(id.UserID)
		if !ok {
			return nil
		}
		metrics.MessagesRelayed.WithLabelValues("signaling").Inc()
		return []Delivery{{ConnID: other.ConnID, Event: event, Payload: body}}
	}

	if recipientID == "" {
		return nil
	}
	metrics.MessagesRelayed.WithLabelValues("signaling").Inc()
	return []Delivery{{UserID: recipientID, Event: event, Payload: body}}
}

// endSessionLocked evicts the session and, when the abandoned peer is
// known, queues their chat_ended notification. Idempotent: a second end
// on the same id appends nothing.
func (h *Hub) endSessionLocked(chatID, byUserID, reason string, out []Delivery, events []LifecycleEvent) ([]Delivery, []LifecycleEvent) {
	s, ok := h.sessions.End(chatID)
	if !ok {
		return out, events
	}

	msg := MsgPeerLeft
	switch reason {
	case ReasonEnded:
		msg = MsgPeerEnded
	case ReasonSkipped:
		msg = MsgPeerSkipped
	}

	if other, ok := s.Other(byUserID); ok {
		out = append(out, Delivery{
			ConnID:  other.ConnID,
			Event:   EventChatEnded,
			Payload: ChatEndedPayload{Message: msg},
		})
	}

	events = append(events, LifecycleEvent{
		Type:      LifecycleSessionEnded,
		SessionID: s.ID,
		UserIDs:   []string{s.Participants[0].UserID, s.Participants[1].UserID},
		Reason:    reason,
		At:        time.Now(),
	})
	logger.Infof("Session %s ended (%s)", s.ID, reason)
	return out, events
}

// tryMatchLocked pairs the two earliest waiters, if any. The first
// dequeued entry becomes the WebRTC initiator; exactly one side must
// create the offer.
func (h *Hub) tryMatchLocked(out []Delivery, events []LifecycleEvent) ([]Delivery, []LifecycleEvent) {
	a, b, ok := h.queue.DequeuePair()
	if !ok {
		return out, events
	}

	s := h.sessions.Create(a, b)
	metrics.MatchesTotal.Inc()
	logger.Infof("Matched users %s and %s in session %s", a.UserID, b.UserID, s.ID)

	out = append(out,
		Delivery{
			ConnID: a.ConnID,
			Event:  EventMatchFound,
			Payload: MatchFoundPayload{
				ChatID:      s.ID,
				OtherUser:   PeerInfo{AnonymousName: b.Alias, Institution: b.Institution},
				IsInitiator: true,
			},
		},
		Delivery{
			ConnID: b.ConnID,
			Event:  EventMatchFound,
			Payload: MatchFoundPayload{
				ChatID:      s.ID,
				OtherUser:   PeerInfo{AnonymousName: a.Alias, Institution: a.Institution},
				IsInitiator: false,
			},
		},
	)
	events = append(events, LifecycleEvent{
		Type:      LifecycleMatchCreated,
		SessionID: s.ID,
		UserIDs:   []string{a.UserID, b.UserID},
		At:        time.Now(),
	})
	return out, events
}
