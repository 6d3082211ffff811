package chat

import (
	"encoding/json"
	"time"
)

// Inbound event names. These follow the wire contract the web client
// speaks; each maps to a handler in the websocket dispatch table.
const (
	EventUserOnline     = "user_online"
	EventJoinQueue      = "join_queue"
	EventSendMessage    = "send_message"
	EventTyping         = "typing"
	EventStopTyping     = "stop_typing"
	EventNextChat       = "next_chat"
	EventEndChat        = "end_chat"
	EventPrivateMessage = "private_message"
	EventWebRTCOffer    = "webrtc_offer"
	EventWebRTCAnswer   = "webrtc_answer"
	EventWebRTCICE      = "webrtc_ice_candidate"
)

// Outbound event names.
const (
	EventMatchFound       = "match_found"
	EventOnlineCount      = "update_online_count"
	EventReceiveMessage   = "receive_message"
	EventUserTyping       = "user_typing"
	EventUserStopTyping   = "user_stop_typing"
	EventChatEnded        = "chat_ended"
	EventReceivePrivate   = "receive_private_message"
	EventReceiveOffer     = "receive_webrtc_offer"
	EventReceiveAnswer    = "receive_webrtc_answer"
	EventReceiveCandidate = "receive_webrtc_ice_candidate"
)

// Delivery is one outbound message produced by a hub operation. Exactly one
// of ConnID and UserID is set to address a single connection or all live
// connections of a user; when both are empty the event is broadcast to
// every connected client. The transport layer performs the actual writes.
type Delivery struct {
	ConnID  string
	UserID  string
	Event   string
	Payload any
}

// Broadcast reports whether the delivery targets all connections.
func (d Delivery) Broadcast() bool {
	return d.ConnID == "" && d.UserID == ""
}

const (
	LifecycleMatchCreated = "match_created"
	LifecycleSessionEnded = "session_ended"
)

// LifecycleEvent records a pairing or teardown for out-of-band consumers
// (moderation, analytics). Published via the broker, never on the socket.
type LifecycleEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	UserIDs   []string  `json:"user_ids"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// PeerInfo is the anonymous profile revealed to a matched partner.
type PeerInfo struct {
	AnonymousName string `json:"anonymousName"`
	Institution   string `json:"institution"`
}

type MatchFoundPayload struct {
	ChatID      string   `json:"chatId"`
	OtherUser   PeerInfo `json:"otherUser"`
	IsInitiator bool     `json:"isInitiator"`
}

type OnlineCountPayload struct {
	OnlineCount int `json:"onlineCount"`
}

type ReceiveMessagePayload struct {
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type TypingPayload struct {
	User string `json:"user"`
}

type ChatEndedPayload struct {
	Message string `json:"message"`
}

type ReceivePrivatePayload struct {
	Sender    string    `json:"sender"`
	SenderID  string    `json:"senderId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Signaling payloads are forwarded opaque; only the sender id is attached.

type ReceiveOfferPayload struct {
	From  string          `json:"from"`
	Offer json.RawMessage `json:"offer"`
}

type ReceiveAnswerPayload struct {
	From   string          `json:"from"`
	Answer json.RawMessage `json:"answer"`
}

type ReceiveCandidatePayload struct {
	From      string          `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}
