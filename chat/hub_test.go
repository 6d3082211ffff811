package chat

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kartikroy01/video-chat/auth"
	"github.com/Kartikroy01/video-chat/filter"
)

func newTestHub() *Hub {
	return NewHub(filter.New([]string{"hate", "abuse"}))
}

func ident(u string) auth.Identity {
	return auth.Identity{UserID: u, Alias: "alias-" + u, Institution: "inst-" + u}
}

func connOf(u string) string {
	return "conn-" + u
}

func join(h *Hub, u string) ([]Delivery, []LifecycleEvent) {
	return h.JoinQueue(ident(u), connOf(u))
}

func byEvent(ds []Delivery, event string) []Delivery {
	var out []Delivery
	for _, d := range ds {
		if d.Event == event {
			out = append(out, d)
		}
	}
	return out
}

// matchAndGetSession pairs a and b and returns the session id both saw.
func matchAndGetSession(t *testing.T, h *Hub, a, b string) string {
	t.Helper()
	join(h, a)
	ds, evs := join(h, b)

	matches := byEvent(ds, EventMatchFound)
	require.Len(t, matches, 2)
	require.NotEmpty(t, evs)
	require.Equal(t, LifecycleMatchCreated, evs[0].Type)

	chatID := matches[0].Payload.(MatchFoundPayload).ChatID
	require.Equal(t, chatID, matches[1].Payload.(MatchFoundPayload).ChatID)
	return chatID
}

func TestHub_NoMatchWithSingleWaiter(t *testing.T) {
	h := newTestHub()

	ds, evs := join(h, "a")
	assert.Empty(t, byEvent(ds, EventMatchFound))
	assert.Empty(t, evs)

	counts := byEvent(ds, EventOnlineCount)
	require.Len(t, counts, 1)
	assert.True(t, counts[0].Broadcast())
	assert.Equal(t, OnlineCountPayload{OnlineCount: 1}, counts[0].Payload)
}

func TestHub_SecondJoinPairsBoth(t *testing.T) {
	h := newTestHub()

	join(h, "a")
	ds, evs := join(h, "b")

	matches := byEvent(ds, EventMatchFound)
	require.Len(t, matches, 2)

	// First enqueued gets the initiator role; roles and peers are crossed.
	assert.Equal(t, connOf("a"), matches[0].ConnID)
	pa := matches[0].Payload.(MatchFoundPayload)
	assert.True(t, pa.IsInitiator)
	assert.Equal(t, PeerInfo{AnonymousName: "alias-b", Institution: "inst-b"}, pa.OtherUser)

	assert.Equal(t, connOf("b"), matches[1].ConnID)
	pb := matches[1].Payload.(MatchFoundPayload)
	assert.False(t, pb.IsInitiator)
	assert.Equal(t, PeerInfo{AnonymousName: "alias-a", Institution: "inst-a"}, pb.OtherUser)

	require.Len(t, evs, 1)
	assert.Equal(t, LifecycleMatchCreated, evs[0].Type)
	assert.ElementsMatch(t, []string{"a", "b"}, evs[0].UserIDs)

	// Queue emptied, one active session: online count is 2.
	counts := byEvent(ds, EventOnlineCount)
	require.Len(t, counts, 1)
	assert.Equal(t, OnlineCountPayload{OnlineCount: 2}, counts[0].Payload)
}

func TestHub_ThreeWaitersLeaveOneQueued(t *testing.T) {
	h := newTestHub()

	var matches []Delivery
	for _, u := range []string{"a", "b", "c"} {
		ds, _ := join(h, u)
		matches = append(matches, byEvent(ds, EventMatchFound)...)
	}

	require.Len(t, matches, 2, "exactly one pair forms among three waiters")
	assert.Equal(t, 1, h.queue.Len())
	assert.Equal(t, 1, h.sessions.Len())
	assert.True(t, h.queue.Contains("c"), "the latest joiner stays queued")
	assert.Equal(t, 3, h.OnlineCount())
}

func TestHub_RepeatJoinKeepsSingleEntry(t *testing.T) {
	h := newTestHub()

	join(h, "a")
	join(h, "a")
	join(h, "a")

	assert.Equal(t, 1, h.queue.Len(), "re-joining must replace the stale entry, not stack")
	assert.Equal(t, 0, h.sessions.Len())

	// The deduped entry still matches normally.
	ds, _ := join(h, "b")
	assert.Len(t, byEvent(ds, EventMatchFound), 2)
}

func TestHub_UserNeverInQueueAndSessionAtOnce(t *testing.T) {
	h := newTestHub()
	matchAndGetSession(t, h, "a", "b")

	assert.False(t, h.queue.Contains("a"))
	assert.False(t, h.queue.Contains("b"))

	// Joining mid-session tears the session down first.
	ds, evs := join(h, "a")
	_, inSession := h.sessions.ByUser("a")
	assert.False(t, inSession)
	assert.True(t, h.queue.Contains("a"))

	ends := byEvent(ds, EventChatEnded)
	require.Len(t, ends, 1)
	assert.Equal(t, connOf("b"), ends[0].ConnID)
	require.Len(t, evs, 1)
	assert.Equal(t, LifecycleSessionEnded, evs[0].Type)
}

func TestHub_SkipNotifiesPeerAndRequeuesSkipper(t *testing.T) {
	h := newTestHub()
	matchAndGetSession(t, h, "a", "b")

	ds, evs := h.Skip(ident("a"), connOf("a"))

	ends := byEvent(ds, EventChatEnded)
	require.Len(t, ends, 1)
	assert.Equal(t, connOf("b"), ends[0].ConnID)
	assert.Equal(t, ChatEndedPayload{Message: MsgPeerSkipped}, ends[0].Payload)

	assert.True(t, h.queue.Contains("a"), "skipper is re-enqueued")
	assert.False(t, h.queue.Contains("b"), "abandoned peer is not auto-requeued")
	assert.Equal(t, 0, h.sessions.Len())

	require.Len(t, evs, 1)
	assert.Equal(t, ReasonSkipped, evs[0].Reason)
}

func TestHub_DuplicateSkipAfterRematch(t *testing.T) {
	h := newTestHub()
	first := matchAndGetSession(t, h, "a", "b")

	// Double-clicked "next": the first skip ends the a+b session and
	// re-enqueues a, who immediately matches with c.
	h.Skip(ident("a"), connOf("a"))
	ds, _ := join(h, "c")
	require.Len(t, byEvent(ds, EventMatchFound), 2)
	second, inSession := h.sessions.ByUser("a")
	require.True(t, inSession)
	require.NotEqual(t, first, second.ID)

	// The second click lands now. It must end the live a+c session, not
	// re-enqueue a on top of it.
	ds, evs := h.Skip(ident("a"), connOf("a"))

	ends := byEvent(ds, EventChatEnded)
	require.Len(t, ends, 1)
	assert.Equal(t, connOf("c"), ends[0].ConnID)
	require.Len(t, evs, 1)
	assert.Equal(t, second.ID, evs[0].SessionID)

	_, inSession = h.sessions.ByUser("a")
	queued := h.queue.Contains("a")
	assert.True(t, queued != inSession, "user a must be in exactly one structure")
	assert.True(t, queued, "the skipper waits for a fresh match")
}

func TestHub_EndChatNotifiesPeerWithoutRequeue(t *testing.T) {
	h := newTestHub()
	chatID := matchAndGetSession(t, h, "a", "b")

	ds, evs := h.EndChat(ident("a"), chatID)

	ends := byEvent(ds, EventChatEnded)
	require.Len(t, ends, 1)
	assert.Equal(t, connOf("b"), ends[0].ConnID)
	assert.Equal(t, ChatEndedPayload{Message: MsgPeerEnded}, ends[0].Payload)

	assert.False(t, h.queue.Contains("a"))
	assert.Equal(t, 0, h.sessions.Len())
	assert.Equal(t, 0, h.OnlineCount())

	require.Len(t, evs, 1)
	assert.Equal(t, ReasonEnded, evs[0].Reason)
}

func TestHub_EndChatIdempotent(t *testing.T) {
	h := newTestHub()
	chatID := matchAndGetSession(t, h, "a", "b")

	h.EndChat(ident("a"), chatID)
	ds, evs := h.EndChat(ident("a"), chatID)

	assert.Empty(t, byEvent(ds, EventChatEnded), "peer must not be notified twice")
	assert.Empty(t, evs)

	ds, evs = h.EndChat(ident("a"), "chat_unknown")
	assert.Empty(t, byEvent(ds, EventChatEnded))
	assert.Empty(t, evs)
}

func TestHub_EndChatIgnoresNonParticipant(t *testing.T) {
	h := newTestHub()
	chatID := matchAndGetSession(t, h, "a", "b")

	ds, evs := h.EndChat(ident("mallory"), chatID)
	assert.Empty(t, byEvent(ds, EventChatEnded))
	assert.Empty(t, evs)
	assert.Equal(t, 1, h.sessions.Len(), "a stranger cannot end someone else's session")
}

func TestHub_DisconnectCleansEverything(t *testing.T) {
	h := newTestHub()
	h.Announce(ident("a"), connOf("a"))
	h.Announce(ident("b"), connOf("b"))
	chatID := matchAndGetSession(t, h, "a", "b")

	ds, evs := h.Disconnect(ident("a"), connOf("a"))

	ends := byEvent(ds, EventChatEnded)
	require.Len(t, ends, 1)
	assert.Equal(t, connOf("b"), ends[0].ConnID)
	assert.Equal(t, ChatEndedPayload{Message: MsgPeerLeft}, ends[0].Payload)

	_, online := h.online["a"]
	assert.False(t, online)
	assert.False(t, h.queue.Contains("a"))
	_, ok := h.sessions.Get(chatID)
	assert.False(t, ok)

	require.Len(t, evs, 1)
	assert.Equal(t, ReasonDisconnect, evs[0].Reason)
}

func TestHub_DisconnectWhileQueued(t *testing.T) {
	h := newTestHub()
	join(h, "a")

	ds, evs := h.Disconnect(ident("a"), connOf("a"))
	assert.Empty(t, evs)
	assert.Equal(t, 0, h.queue.Len())

	counts := byEvent(ds, EventOnlineCount)
	require.Len(t, counts, 1)
	assert.Equal(t, OnlineCountPayload{OnlineCount: 0}, counts[0].Payload)
}

func TestHub_AnnouncedButIdleUsersAreNotCounted(t *testing.T) {
	h := newTestHub()

	ds := h.Announce(ident("a"), connOf("a"))
	require.Len(t, ds, 1)
	// Connected but neither queued nor paired: the product counts these
	// as zero. Preserved as-is from the original behavior.
	assert.Equal(t, OnlineCountPayload{OnlineCount: 0}, ds[0].Payload)
	assert.Equal(t, 0, h.OnlineCount())
}

func TestHub_SendMessageFiltersAndNeverEchoes(t *testing.T) {
	h := newTestHub()
	chatID := matchAndGetSession(t, h, "a", "b")

	ds := h.SendMessage(ident("a"), chatID, "no hate here")
	require.Len(t, ds, 1)
	assert.Equal(t, connOf("b"), ds[0].ConnID, "never delivered back to the sender")

	p := ds[0].Payload.(ReceiveMessagePayload)
	assert.Equal(t, "alias-a", p.Sender)
	assert.Equal(t, "no **** here", p.Message)
	assert.False(t, p.Timestamp.IsZero())
}

func TestHub_SendMessageDropsBlankAndStale(t *testing.T) {
	h := newTestHub()
	chatID := matchAndGetSession(t, h, "a", "b")

	assert.Empty(t, h.SendMessage(ident("a"), chatID, ""))
	assert.Empty(t, h.SendMessage(ident("a"), chatID, "   \t\n"))
	assert.Empty(t, h.SendMessage(ident("a"), "chat_unknown", "hello"))
	assert.Empty(t, h.SendMessage(ident("mallory"), chatID, "hello"))

	h.EndChat(ident("a"), chatID)
	assert.Empty(t, h.SendMessage(ident("a"), chatID, "hello"), "messages to an ended session are dropped")
}

func TestHub_TypingForwardedToPeerOnly(t *testing.T) {
	h := newTestHub()
	chatID := matchAndGetSession(t, h, "a", "b")

	ds := h.Typing(ident("a"), chatID, false)
	require.Len(t, ds, 1)
	assert.Equal(t, connOf("b"), ds[0].ConnID)
	assert.Equal(t, EventUserTyping, ds[0].Event)
	assert.Equal(t, TypingPayload{User: "alias-a"}, ds[0].Payload)

	ds = h.Typing(ident("b"), chatID, true)
	require.Len(t, ds, 1)
	assert.Equal(t, connOf("a"), ds[0].ConnID)
	assert.Equal(t, EventUserStopTyping, ds[0].Event)

	assert.Empty(t, h.Typing(ident("a"), "chat_unknown", false))
}

func TestHub_SignalScopedToSessionPeer(t *testing.T) {
	h := newTestHub()
	chatID := matchAndGetSession(t, h, "a", "b")

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	ds := h.Signal(ident("a"), SignalOffer, chatID, "", offer)
	require.Len(t, ds, 1)
	assert.Equal(t, connOf("b"), ds[0].ConnID, "offer goes to the responder only, never back to the sender")
	assert.Equal(t, EventReceiveOffer, ds[0].Event)

	p := ds[0].Payload.(ReceiveOfferPayload)
	assert.Equal(t, "a", p.From)
	assert.JSONEq(t, string(offer), string(p.Offer), "payload forwarded untouched")

	answer := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
	ds = h.Signal(ident("b"), SignalAnswer, chatID, "", answer)
	require.Len(t, ds, 1)
	assert.Equal(t, connOf("a"), ds[0].ConnID)
	assert.Equal(t, EventReceiveAnswer, ds[0].Event)

	assert.Empty(t, h.Signal(ident("a"), SignalOffer, "chat_unknown", "", offer))
	assert.Empty(t, h.Signal(ident("mallory"), SignalOffer, chatID, "", offer))
}

func TestHub_SignalPrivateChannel(t *testing.T) {
	h := newTestHub()

	candidate := json.RawMessage(`{"candidate":"candidate:1"}`)
	ds := h.Signal(ident("a"), SignalICE, "", "friend-1", candidate)
	require.Len(t, ds, 1)
	assert.Equal(t, "friend-1", ds[0].UserID)
	assert.Empty(t, ds[0].ConnID)
	assert.Equal(t, EventReceiveCandidate, ds[0].Event)

	assert.Empty(t, h.Signal(ident("a"), SignalICE, "", "", candidate))
}

func TestHub_PrivateMessageFiltered(t *testing.T) {
	h := newTestHub()

	ds := h.PrivateMessage(ident("a"), "friend-1", "stop the abuse now")
	require.Len(t, ds, 1)
	assert.Equal(t, "friend-1", ds[0].UserID)

	p := ds[0].Payload.(ReceivePrivatePayload)
	assert.Equal(t, "alias-a", p.Sender)
	assert.Equal(t, "a", p.SenderID)
	assert.Equal(t, "stop the ***** now", p.Message)

	assert.Empty(t, h.PrivateMessage(ident("a"), "friend-1", "  "))
}

func TestHub_ConcurrentJoinsKeepInvariants(t *testing.T) {
	h := newTestHub()

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			join(h, fmt.Sprintf("u%02d", i))
		}(i)
	}
	wg.Wait()

	// Every joiner is either waiting or paired, exactly once.
	assert.Equal(t, n, h.queue.Len()+2*h.sessions.Len())
	assert.Equal(t, n, h.OnlineCount())
	for i := 0; i < n; i++ {
		u := fmt.Sprintf("u%02d", i)
		_, inSession := h.sessions.ByUser(u)
		queued := h.queue.Contains(u)
		assert.True(t, inSession != queued, "user %s must be in exactly one structure", u)
	}
}

func TestHub_ConcurrentSkipAndDisconnect(t *testing.T) {
	h := newTestHub()
	matchAndGetSession(t, h, "a", "b")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.Skip(ident("a"), connOf("a"))
	}()
	go func() {
		defer wg.Done()
		h.Disconnect(ident("b"), connOf("b"))
	}()
	wg.Wait()

	// However the two races resolve, nothing leaks: the session is gone
	// and b is nowhere.
	assert.Equal(t, 0, h.sessions.Len())
	assert.False(t, h.queue.Contains("b"))
	_, online := h.online["b"]
	assert.False(t, online)
}
