package realtime

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry owns the two pieces of in-process shared state the real-time
// layer has: per-user connection counts (presence) and per-room membership.
// It is constructed once at startup and handed to every connection; nothing
// here is a package-level singleton.
//
// Presence transitions must be atomic with the count update, otherwise two
// tabs closing at once could emit a duplicate offline broadcast. One mutex
// over both maps keeps the increment-and-compare step race-free.
type Registry struct {
	mu          sync.RWMutex
	connCounts  map[int64]int
	rooms       map[string]map[*Client]bool
	memberships map[*Client]map[string]bool
	log         zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		connCounts:  make(map[int64]int),
		rooms:       make(map[string]map[*Client]bool),
		memberships: make(map[*Client]map[string]bool),
		log:         log,
	}
}

// Connect records a new connection for the client's user and reports whether
// this was the user's offline-to-online transition.
func (r *Registry) Connect(c *Client) (cameOnline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connCounts[c.UserID]++
	r.memberships[c] = make(map[string]bool)
	return r.connCounts[c.UserID] == 1
}

// Disconnect removes the connection from every room it joined, closes its
// send channel and decrements the user's connection count. Reports whether
// the user went offline (last connection gone).
func (r *Registry) Disconnect(c *Client) (wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, known := r.memberships[c]
	if !known {
		// Already disconnected; multi-tab teardown can race here.
		return false
	}

	for room := range joined {
		if members, ok := r.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(r.rooms, room)
			}
		}
	}
	delete(r.memberships, c)
	close(c.send)

	r.connCounts[c.UserID]--
	if r.connCounts[c.UserID] <= 0 {
		delete(r.connCounts, c.UserID)
		return true
	}
	return false
}

// Join adds the connection to a room. No-op for unknown (already
// disconnected) clients.
func (r *Registry) Join(c *Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, known := r.memberships[c]
	if !known {
		return
	}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[*Client]bool)
	}
	r.rooms[room][c] = true
	joined[room] = true
}

// InRoom reports whether the connection is currently a member of the room.
func (r *Registry) InRoom(c *Client, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.memberships[c][room]
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connCounts[userID] > 0
}

// RoomSize returns the number of connections joined to a room.
func (r *Registry) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Broadcast fans a frame out to every connection in the room. A connection
// whose send buffer is full misses the frame; delivery here is best-effort
// and the client reconciles by re-fetching on reconnect.
func (r *Registry) Broadcast(room string, frame []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.rooms[room] {
		select {
		case c.send <- frame:
		default:
			r.log.Warn().Str("room", room).Int64("user_id", c.UserID).
				Msg("send buffer full, dropping frame")
		}
	}
}

// BroadcastAll sends a frame to every connected client, regardless of rooms.
func (r *Registry) BroadcastAll(frame []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.memberships {
		select {
		case c.send <- frame:
		default:
			r.log.Warn().Int64("user_id", c.UserID).
				Msg("send buffer full, dropping frame")
		}
	}
}
