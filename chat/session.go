package chat

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Participant is one member of an active session.
type Participant struct {
	UserID      string
	ConnID      string
	Alias       string
	Institution string
}

// Session is an active pairing between exactly two users. Participants[0]
// is the WebRTC initiator. Records exist only while the session is active;
// ending a session evicts it.
type Session struct {
	ID           string
	Participants [2]Participant
	StartedAt    time.Time
}

// Other returns the participant that is not userID.
func (s *Session) Other(userID string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.UserID != userID {
			return p, true
		}
	}
	return Participant{}, false
}

// Has reports whether userID is a participant.
func (s *Session) Has(userID string) bool {
	return s.Participants[0].UserID == userID || s.Participants[1].UserID == userID
}

// Sessions is the registry of active pairings. Like Queue it is owned and
// serialized by the Hub.
type Sessions struct {
	byID   map[string]*Session
	byUser map[string]string // userID -> session ID
}

func NewSessions() *Sessions {
	return &Sessions{
		byID:   make(map[string]*Session),
		byUser: make(map[string]string),
	}
}

// newSessionID allocates a fresh id. ULIDs are time-ordered with 80 bits
// of entropy, so ids never collide within a process lifetime and sort by
// creation time like the ids the platform used historically.
func newSessionID() string {
	return fmt.Sprintf("chat_%s", ulid.Make().String())
}

// Create opens a session for the two dequeued entries; a is the initiator.
func (r *Sessions) Create(a, b QueueEntry) *Session {
	id := newSessionID()
	if _, exists := r.byID[id]; exists {
		// A duplicate ULID means the registry is corrupt.
		panic(fmt.Sprintf("session id collision: %s", id))
	}

	s := &Session{
		ID: id,
		Participants: [2]Participant{
			{UserID: a.UserID, ConnID: a.ConnID, Alias: a.Alias, Institution: a.Institution},
			{UserID: b.UserID, ConnID: b.ConnID, Alias: b.Alias, Institution: b.Institution},
		},
		StartedAt: time.Now(),
	}
	r.byID[id] = s
	r.byUser[a.UserID] = id
	r.byUser[b.UserID] = id
	return s
}

// End evicts a session. Ending an unknown or already-ended id is a no-op:
// both peers racing to end the same session is normal, not an error.
func (r *Sessions) End(id string) (*Session, bool) {
	s, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	for _, p := range s.Participants {
		if r.byUser[p.UserID] == id {
			delete(r.byUser, p.UserID)
		}
	}
	return s, true
}

// Get returns the active session with the given id.
func (r *Sessions) Get(id string) (*Session, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// ByUser returns the active session userID participates in, if any.
func (r *Sessions) ByUser(userID string) (*Session, bool) {
	id, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	return r.Get(id)
}

func (r *Sessions) Len() int {
	return len(r.byID)
}
