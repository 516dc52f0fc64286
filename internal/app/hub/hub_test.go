package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(queueSize int) *Registry {
	return NewRegistry(Options{SendQueueSize: queueSize})
}

func attach(t *testing.T, g *Registry, roomID string) *Client {
	t.Helper()
	c, err := g.Attach(roomID, nil)
	require.NoError(t, err)
	return c
}

func send(t *testing.T, c *Client, frame string) {
	t.Helper()
	require.NoError(t, c.handleFrame([]byte(frame)))
}

func join(t *testing.T, c *Client, userID string) {
	t.Helper()
	send(t, c, fmt.Sprintf(`{"type":"join_room","userId":%q}`, userID))
}

// next pops the next queued outbound frame. Dispatch enqueues synchronously, so an empty
// queue means nothing was delivered.
func next(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case f := <-c.send:
		return f
	default:
		t.Fatalf("client %s: expected a queued frame, queue is empty", c.id)
		return nil
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case f := <-c.send:
		t.Fatalf("client %s: unexpected frame %s", c.id, f)
	default:
	}
}

func nextParticipants(t *testing.T, c *Client) []string {
	t.Helper()
	var msg ParticipantsMessage
	require.NoError(t, json.Unmarshal(next(t, c), &msg))
	require.Equal(t, TypeRoomParticipants, msg.Type)
	return msg.Participants
}

func TestJoin_BroadcastsParticipantListToEveryone(t *testing.T) {
	g := newTestRegistry(16)
	alice := attach(t, g, "r1")
	bob := attach(t, g, "r1")

	join(t, alice, "alice")
	assert.Equal(t, []string{"alice"}, nextParticipants(t, alice))
	assertEmpty(t, bob)

	join(t, bob, "bob")
	assert.Equal(t, []string{"alice", "bob"}, nextParticipants(t, alice))
	assert.Equal(t, []string{"alice", "bob"}, nextParticipants(t, bob))

	room, ok := g.Get("r1")
	require.True(t, ok)
	assert.Equal(t, 2, room.Len())
}

func TestJoin_WithoutUserIDIsIgnored(t *testing.T) {
	g := newTestRegistry(16)
	c := attach(t, g, "r1")

	send(t, c, `{"type":"join_room"}`)
	send(t, c, `{"type":"join_room","userId":""}`)
	send(t, c, `{"type":"join_room","userId":7}`)
	send(t, c, `{"type":"join_room","userId":{"id":"alice"}}`)

	assertEmpty(t, c)
	room, _ := g.Get("r1")
	assert.Equal(t, 0, room.Len())
	assert.Empty(t, c.userID)
}

func TestJoin_ResendSameUserIDKeepsParticipantSet(t *testing.T) {
	g := newTestRegistry(16)
	alice := attach(t, g, "r1")

	join(t, alice, "alice")
	nextParticipants(t, alice)

	join(t, alice, "alice")
	assert.Equal(t, []string{"alice"}, nextParticipants(t, alice))

	room, _ := g.Get("r1")
	assert.Equal(t, []string{"alice"}, room.Participants())
}

func TestJoin_RebindToNewUserIDReplacesOwnEntry(t *testing.T) {
	g := newTestRegistry(16)
	c := attach(t, g, "r1")
	bob := attach(t, g, "r1")
	join(t, bob, "bob")
	nextParticipants(t, bob)

	join(t, c, "alice")
	nextParticipants(t, c)
	nextParticipants(t, bob)

	join(t, c, "alicia")
	assert.Equal(t, []string{"alicia", "bob"}, nextParticipants(t, bob))
	assert.Equal(t, []string{"alicia", "bob"}, nextParticipants(t, c))
	assert.Equal(t, "alicia", c.userID)
}

func TestJoin_DuplicateUserIDLastWriterWins(t *testing.T) {
	g := newTestRegistry(16)
	first := attach(t, g, "r1")
	second := attach(t, g, "r1")

	join(t, first, "alice")
	nextParticipants(t, first)

	join(t, second, "alice")
	assert.Equal(t, []string{"alice"}, nextParticipants(t, second))
	assertEmpty(t, first)

	room, _ := g.Get("r1")
	assert.Same(t, second, room.participants["alice"])

	// The displaced connection leaving must not remove the entry that replaced it.
	first.cleanupOnDisconnect()
	assertEmpty(t, second)
	assert.Equal(t, []string{"alice"}, room.Participants())
	assert.Equal(t, 1, g.Len())

	second.cleanupOnDisconnect()
	assert.Equal(t, 0, g.Len())
}

func TestChat_RelayedVerbatimToOthersAndStored(t *testing.T) {
	g := newTestRegistry(16)
	alice := attach(t, g, "r1")
	bob := attach(t, g, "r1")
	join(t, alice, "alice")
	join(t, bob, "bob")
	nextParticipants(t, alice)
	nextParticipants(t, alice)
	nextParticipants(t, bob)

	chat := `{"type":"chat","userId":"alice","text":"hi"}`
	send(t, alice, chat)

	assert.Equal(t, chat, string(next(t, bob)))
	assertEmpty(t, alice)

	room, _ := g.Get("r1")
	history := room.History()
	require.Len(t, history, 1)
	assert.JSONEq(t, chat, string(history[0]))
}

func TestChat_HistoryKeepsArrivalOrder(t *testing.T) {
	g := newTestRegistry(64)
	alice := attach(t, g, "r1")
	join(t, alice, "alice")

	const n = 25
	for i := 0; i < n; i++ {
		send(t, alice, fmt.Sprintf(`{"type":"chat","userId":"alice","seq":%d}`, i))
	}

	room, _ := g.Get("r1")
	history := room.History()
	require.Len(t, history, n)
	for i, raw := range history {
		var msg struct {
			Seq int `json:"seq"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, i, msg.Seq)
	}
}

func TestRelay_NegotiationTypesExcludeSender(t *testing.T) {
	for _, typ := range []MessageType{TypeOffer, TypeAnswer, TypeICECandidate} {
		t.Run(string(typ), func(t *testing.T) {
			g := newTestRegistry(16)
			alice := attach(t, g, "r1")
			bob := attach(t, g, "r1")
			carol := attach(t, g, "r1")
			for _, p := range []struct {
				c  *Client
				id string
			}{{alice, "alice"}, {bob, "bob"}, {carol, "carol"}} {
				join(t, p.c, p.id)
			}
			for _, c := range []*Client{alice, bob, carol} {
				for len(c.send) > 0 {
					<-c.send
				}
			}

			frame := fmt.Sprintf(`{"type":%q,"userId":"alice","sdp":{"opaque":true}}`, typ)
			send(t, alice, frame)

			assert.Equal(t, frame, string(next(t, bob)))
			assert.Equal(t, frame, string(next(t, carol)))
			assertEmpty(t, alice)

			room, _ := g.Get("r1")
			assert.Equal(t, 0, room.HistoryLen())
		})
	}
}

func TestRelay_NonStringUserIDIsStillForwarded(t *testing.T) {
	g := newTestRegistry(16)
	alice := attach(t, g, "r1")
	bob := attach(t, g, "r1")
	join(t, alice, "alice")
	join(t, bob, "bob")
	nextParticipants(t, alice)
	nextParticipants(t, alice)
	nextParticipants(t, bob)

	chat := `{"type":"chat","userId":7,"text":"hi"}`
	offer := `{"type":"offer","userId":{"id":"alice"},"sdp":"v=0"}`
	send(t, alice, chat)
	send(t, alice, offer)

	assert.Equal(t, chat, string(next(t, bob)))
	assert.Equal(t, offer, string(next(t, bob)))
	assertEmpty(t, alice)

	room, ok := g.Get("r1")
	require.True(t, ok)
	assert.Equal(t, 1, room.HistoryLen())
	assert.Equal(t, []string{"alice", "bob"}, room.Participants())
}

func TestRelay_BeforeJoinFansOutToEveryone(t *testing.T) {
	g := newTestRegistry(16)
	alice := attach(t, g, "r1")
	bob := attach(t, g, "r1")
	anon := attach(t, g, "r1")
	join(t, alice, "alice")
	join(t, bob, "bob")
	nextParticipants(t, alice)
	nextParticipants(t, alice)
	nextParticipants(t, bob)

	frame := `{"type":"offer","userId":"alice","sdp":"x"}`
	send(t, anon, frame)

	assert.Equal(t, frame, string(next(t, alice)))
	assert.Equal(t, frame, string(next(t, bob)))
	assertEmpty(t, anon)
}

func TestDispatch_UnknownOrMissingTypeIsIgnored(t *testing.T) {
	g := newTestRegistry(16)
	alice := attach(t, g, "r1")
	bob := attach(t, g, "r1")
	join(t, alice, "alice")
	join(t, bob, "bob")
	nextParticipants(t, alice)
	nextParticipants(t, alice)
	nextParticipants(t, bob)

	send(t, alice, `{"type":"leave_room","userId":"alice"}`)
	send(t, alice, `{"userId":"alice","text":"no type"}`)
	send(t, alice, `null`)

	assertEmpty(t, alice)
	assertEmpty(t, bob)
}

func TestDispatch_MalformedFrameKeepsConnectionUsable(t *testing.T) {
	g := newTestRegistry(16)
	alice := attach(t, g, "r1")
	bob := attach(t, g, "r1")
	join(t, alice, "alice")
	join(t, bob, "bob")
	nextParticipants(t, alice)
	nextParticipants(t, alice)
	nextParticipants(t, bob)

	for _, bad := range []string{`{"type":"chat","text":"hi"`, `not json`, `"chat"`, `{"type":42}`} {
		require.NoError(t, alice.handleFrame([]byte(bad)), bad)
	}
	assertEmpty(t, bob)

	chat := `{"type":"chat","userId":"alice","text":"hi"}`
	send(t, alice, chat)
	assert.Equal(t, chat, string(next(t, bob)))
}

func TestDispatch_PanicIsRecoveredAsError(t *testing.T) {
	c := &Client{id: "broken", roomID: "r1", logger: zerolog.Nop()}

	err := c.handleFrame([]byte(`{"type":"join_room","userId":"alice"}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestRooms_AreIsolated(t *testing.T) {
	g := newTestRegistry(16)
	a := attach(t, g, "r1")
	b := attach(t, g, "r2")
	join(t, a, "alice")
	join(t, b, "bob")
	assert.Equal(t, []string{"alice"}, nextParticipants(t, a))
	assert.Equal(t, []string{"bob"}, nextParticipants(t, b))

	send(t, a, `{"type":"chat","userId":"alice","text":"r1 only"}`)
	send(t, b, `{"type":"offer","userId":"bob"}`)

	assertEmpty(t, a)
	assertEmpty(t, b)
	assert.Equal(t, 2, g.Len())
}

func TestDisconnect_NotifiesRemainingAndRemovesEmptyRoom(t *testing.T) {
	g := newTestRegistry(16)
	alice := attach(t, g, "r1")
	bob := attach(t, g, "r1")
	join(t, alice, "alice")
	join(t, bob, "bob")
	nextParticipants(t, alice)
	nextParticipants(t, alice)
	nextParticipants(t, bob)

	alice.cleanupOnDisconnect()
	assert.Equal(t, []string{"bob"}, nextParticipants(t, bob))
	assertEmpty(t, bob)
	assert.Equal(t, 1, g.Len())

	bob.cleanupOnDisconnect()
	_, ok := g.Get("r1")
	assert.False(t, ok)
	assert.Equal(t, 0, g.Len())
}

func TestDisconnect_CleanupRunsOnce(t *testing.T) {
	g := newTestRegistry(16)
	alice := attach(t, g, "r1")
	bob := attach(t, g, "r1")
	join(t, alice, "alice")
	join(t, bob, "bob")
	for len(bob.send) > 0 {
		<-bob.send
	}

	var wg sync.WaitGroup
	for j := 0; j < 5; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alice.cleanupOnDisconnect()
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"bob"}, nextParticipants(t, bob))
	assertEmpty(t, bob)
}

func TestDisconnect_UnjoinedConnectionDoesNotLeakRoom(t *testing.T) {
	g := newTestRegistry(16)
	c := attach(t, g, "lonely")
	assert.Equal(t, 1, g.Len())

	c.cleanupOnDisconnect()
	assert.Equal(t, 0, g.Len())
}

func TestRemoveIfEmpty_KeepsOccupiedRoom(t *testing.T) {
	g := newTestRegistry(16)
	c := attach(t, g, "r1")
	join(t, c, "alice")

	assert.False(t, g.RemoveIfEmpty("r1"))
	assert.False(t, g.RemoveIfEmpty("missing"))
	assert.Equal(t, 1, g.Len())
}

func TestRegistry_JoinAfterRemovalRecreatesRoom(t *testing.T) {
	g := newTestRegistry(16)
	c := attach(t, g, "r1")
	old, _ := g.Get("r1")
	require.True(t, g.RemoveIfEmpty("r1"))

	join(t, c, "alice")

	room, ok := g.Get("r1")
	require.True(t, ok)
	assert.NotSame(t, old, room)
	assert.Equal(t, []string{"alice"}, room.Participants())
	assert.Equal(t, 0, old.Len())
}

func TestBroadcast_RecipientFailureDoesNotStopOthers(t *testing.T) {
	g := newTestRegistry(16)
	alice := attach(t, g, "r1")
	bob := attach(t, g, "r1")
	carol := attach(t, g, "r1")
	join(t, alice, "alice")
	join(t, bob, "bob")
	join(t, carol, "carol")
	for _, c := range []*Client{alice, bob, carol} {
		for len(c.send) > 0 {
			<-c.send
		}
	}

	bob.Close(1000, "")

	chat := `{"type":"chat","userId":"alice","text":"still here"}`
	send(t, alice, chat)

	assert.Equal(t, chat, string(next(t, carol)))
	assertEmpty(t, alice)
	room, _ := g.Get("r1")
	assert.Equal(t, 1, room.HistoryLen())
}

func TestClient_SendErrors(t *testing.T) {
	g := newTestRegistry(1)
	c := attach(t, g, "r1")

	require.NoError(t, c.Send([]byte("one")))
	assert.ErrorIs(t, c.Send([]byte("two")), ErrSendQueueFull)

	c.Close(1000, "")
	c.Close(1000, "")
	assert.ErrorIs(t, c.Send([]byte("three")), ErrClientClosed)
}

func TestRegistry_ConcurrentJoinAndLeaveLeavesNoRooms(t *testing.T) {
	g := newTestRegistry(1024)

	const perRoom = 20
	rooms := []string{"a", "b", "c"}

	var wg sync.WaitGroup
	for _, roomID := range rooms {
		for i := 0; i < perRoom; i++ {
			roomID, i := roomID, i
			wg.Add(1)
			go func() {
				defer wg.Done()
				c, err := g.Attach(roomID, nil)
				if !assert.NoError(t, err) {
					return
				}
				userID := fmt.Sprintf("u%d", i)
				assert.NoError(t, c.handleFrame([]byte(fmt.Sprintf(`{"type":"join_room","userId":%q}`, userID))))
				assert.NoError(t, c.handleFrame([]byte(`{"type":"chat","text":"x"}`)))
				c.cleanupOnDisconnect()
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, 0, g.Len())
}

func TestRegistry_ShutdownClosesAttachedClients(t *testing.T) {
	g := newTestRegistry(16)
	clients := []*Client{attach(t, g, "r1"), attach(t, g, "r1"), attach(t, g, "r2")}
	join(t, clients[0], "alice")

	// Without a socket nothing runs ReadPump; stand in for it.
	for _, c := range clients {
		c := c
		go func() {
			<-c.done
			c.cleanupOnDisconnect()
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, g.Shutdown(ctx))
	assert.Equal(t, 0, g.Len())

	_, err := g.Attach("r3", nil)
	assert.ErrorIs(t, err, ErrRegistryClosed)
}
