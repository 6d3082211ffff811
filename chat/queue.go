package chat

import "time"

// QueueEntry is one user waiting for a random partner.
type QueueEntry struct {
	UserID      string
	ConnID      string
	Alias       string
	Institution string
	AddedAt     time.Time
}

// Queue holds users waiting to be matched, in arrival order. It is not
// internally synchronized: the Hub owns it and serializes all access.
type Queue struct {
	entries []QueueEntry
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends an entry. Callers must remove any stale entry for the
// same user first; the Hub does this on every join path.
func (q *Queue) Enqueue(e QueueEntry) {
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now()
	}
	q.entries = append(q.entries, e)
}

// Remove drops the pending entry for userID. Removing an absent user is a
// no-op; it reports whether an entry was removed.
func (q *Queue) Remove(userID string) bool {
	for i, e := range q.entries {
		if e.UserID == userID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether userID has a pending entry.
func (q *Queue) Contains(userID string) bool {
	for _, e := range q.entries {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

func (q *Queue) Len() int {
	return len(q.entries)
}

// DequeuePair removes and returns the two earliest entries. The first is
// the WebRTC initiator; that assignment is part of the signaling protocol
// and stays fixed for the life of the resulting session. With fewer than
// two entries it returns ok=false and leaves the queue untouched.
func (q *Queue) DequeuePair() (initiator, responder QueueEntry, ok bool) {
	if len(q.entries) < 2 {
		return QueueEntry{}, QueueEntry{}, false
	}
	initiator, responder = q.entries[0], q.entries[1]
	q.entries = append(q.entries[:0], q.entries[2:]...)
	return initiator, responder, true
}
