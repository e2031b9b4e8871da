package realtime

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestClient(userID int64) *Client {
	return &Client{
		ID:     "test-conn",
		UserID: userID,
		send:   make(chan []byte, 8),
	}
}

func TestPresenceTransitions(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	first := newTestClient(1)
	second := newTestClient(1)

	require.True(t, r.Connect(first), "first connection must come online")
	require.False(t, r.Connect(second), "second tab must not re-announce online")
	require.True(t, r.IsOnline(1))

	// Closing one of two tabs keeps the user online.
	require.False(t, r.Disconnect(first), "non-final disconnect must not go offline")
	require.True(t, r.IsOnline(1))

	require.True(t, r.Disconnect(second), "final disconnect must go offline")
	require.False(t, r.IsOnline(1))
}

func TestDisconnectIsIdempotent(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	c := newTestClient(1)
	require.True(t, r.Connect(c))
	require.True(t, r.Disconnect(c))

	// A racing second teardown of the same connection must be a no-op, not
	// a second offline transition or a double close.
	require.False(t, r.Disconnect(c))
}

func TestBroadcastScopedToRoom(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	inRoom := newTestClient(1)
	otherRoom := newTestClient(2)
	noRoom := newTestClient(3)

	r.Connect(inRoom)
	r.Connect(otherRoom)
	r.Connect(noRoom)

	r.Join(inRoom, "thread:7")
	r.Join(otherRoom, "thread:8")

	r.Broadcast("thread:7", []byte("hello"))

	require.Len(t, inRoom.send, 1)
	require.Empty(t, otherRoom.send)
	require.Empty(t, noRoom.send)
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	c := &Client{UserID: 1, send: make(chan []byte, 1)}
	r.Connect(c)
	r.Join(c, "thread:1")

	r.Broadcast("thread:1", []byte("one"))
	r.Broadcast("thread:1", []byte("two")) // buffer full, dropped

	require.Len(t, c.send, 1)
	require.Equal(t, []byte("one"), <-c.send)
}

func TestDisconnectClearsRoomMemberships(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	c := newTestClient(1)
	r.Connect(c)
	r.Join(c, "thread:1")
	r.Join(c, "thread:2")
	require.Equal(t, 1, r.RoomSize("thread:1"))

	r.Disconnect(c)

	require.Zero(t, r.RoomSize("thread:1"))
	require.Zero(t, r.RoomSize("thread:2"))

	// A stale join after disconnect must not resurrect the connection.
	r.Join(c, "thread:3")
	require.Zero(t, r.RoomSize("thread:3"))
}

func TestBroadcastAllReachesEveryConnection(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	a := newTestClient(1)
	b := newTestClient(2)
	r.Connect(a)
	r.Connect(b)

	r.BroadcastAll([]byte("presence"))

	require.Len(t, a.send, 1)
	require.Len(t, b.send, 1)
}
