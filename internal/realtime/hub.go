package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/talelchaanbi/consultlink/internal/chat"
	"github.com/talelchaanbi/consultlink/internal/session"
)

// How long a socket event handler may spend on store I/O.
const handlerTimeout = 10 * time.Second

// ThreadDirectory is the slice of the chat store the hub needs: the
// membership guard and the read-receipt update.
type ThreadDirectory interface {
	IsParticipant(ctx context.Context, threadID, userID int64) (bool, error)
	MarkThreadRead(ctx context.Context, threadID, userID int64) (int64, error)
}

// SessionResolver authenticates the handshake with the same session logic
// the HTTP middleware uses.
type SessionResolver interface {
	Resolve(ctx context.Context, req *http.Request) (*session.Session, error)
}

// Hub accepts socket connections and turns inbound frames into guarded
// operations against the registry and the chat store. Failures inside an
// event handler are logged and dropped; nothing here can crash a connection
// or surface an error frame to the peer.
type Hub struct {
	registry *Registry
	threads  ThreadDirectory
	sessions SessionResolver
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewHub(registry *Registry, threads ThreadDirectory, sessions SessionResolver, log zerolog.Logger) *Hub {
	return &Hub{
		registry: registry,
		threads:  threads,
		sessions: sessions,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // same-origin deployment; cookie carries auth
			},
		},
	}
}

// ServeWS is the socket endpoint. The session cookie is resolved before the
// upgrade, so an unauthenticated peer is rejected at the HTTP layer and no
// anonymous socket ever exists.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Resolve(r.Context(), r)
	if err != nil {
		h.log.Debug().Err(err).Msg("socket handshake rejected")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		UserID: sess.UserID,
		Role:   sess.UserRole,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
	h.register(client)

	go client.writePump()
	go client.readPump()
}

// register wires a freshly authenticated connection in: private room
// membership plus the presence transition. The online broadcast fires only
// on the user's first connection, so extra tabs stay silent.
func (h *Hub) register(c *Client) {
	cameOnline := h.registry.Connect(c)
	h.registry.Join(c, userRoom(c.UserID))

	h.log.Debug().Str("conn_id", c.ID).Int64("user_id", c.UserID).Msg("socket connected")

	if cameOnline {
		h.broadcastPresence(c.UserID, true)
	}
}

// unregister runs on every socket teardown, voluntary or not. The offline
// broadcast fires only when the last connection goes.
func (h *Hub) unregister(c *Client) {
	wentOffline := h.registry.Disconnect(c)

	h.log.Debug().Str("conn_id", c.ID).Int64("user_id", c.UserID).Msg("socket disconnected")

	if wentOffline {
		h.broadcastPresence(c.UserID, false)
	}
}

// dispatch routes one inbound frame to its command handler. Unknown or
// malformed frames are logged and ignored.
func (h *Hub) dispatch(c *Client, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		h.log.Debug().Err(err).Str("conn_id", c.ID).Msg("malformed frame")
		return
	}

	var cmd ThreadCommand
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			h.log.Debug().Err(err).Str("event", env.Event).Msg("malformed command payload")
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch env.Event {
	case CommandJoinThread:
		h.handleJoinThread(ctx, c, cmd.ThreadID)
	case CommandThreadRead:
		h.handleThreadRead(ctx, c, cmd.ThreadID)
	default:
		h.log.Debug().Str("event", env.Event).Str("conn_id", c.ID).Msg("unknown event")
	}
}

// handleJoinThread adds the connection to the thread's room after the
// membership check. Joining implies viewing, so the thread is marked read
// in the same stroke. A non-participant is dropped silently.
func (h *Hub) handleJoinThread(ctx context.Context, c *Client, threadID int64) {
	if !h.authorize(ctx, c, threadID, "joinThread") {
		return
	}

	h.registry.Join(c, threadRoom(threadID))
	h.markRead(ctx, c, threadID)
}

// handleThreadRead records read receipts for every unseen message in the
// thread. Safe to repeat; the read set only grows.
func (h *Hub) handleThreadRead(ctx context.Context, c *Client, threadID int64) {
	if !h.authorize(ctx, c, threadID, "threadRead") {
		return
	}

	h.markRead(ctx, c, threadID)
}

// authorize is the fail-closed, fail-silent membership guard. Errors and
// denials both end the operation; only the log knows.
func (h *Hub) authorize(ctx context.Context, c *Client, threadID int64, op string) bool {
	ok, err := h.threads.IsParticipant(ctx, threadID, c.UserID)
	if err != nil {
		h.log.Error().Err(err).Int64("thread_id", threadID).Str("op", op).
			Msg("membership check failed")
		return false
	}
	if !ok {
		h.log.Warn().Int64("thread_id", threadID).Int64("user_id", c.UserID).Str("op", op).
			Msg("authorization denied")
		return false
	}
	return true
}

func (h *Hub) markRead(ctx context.Context, c *Client, threadID int64) {
	marked, err := h.threads.MarkThreadRead(ctx, threadID, c.UserID)
	if err != nil {
		h.log.Error().Err(err).Int64("thread_id", threadID).Int64("user_id", c.UserID).
			Msg("mark read failed")
		return
	}
	if marked == 0 {
		return
	}

	frame, err := encodeEvent(EventChatRead, &ReadPayload{ThreadID: threadID, UserID: c.UserID})
	if err != nil {
		h.log.Error().Err(err).Msg("encode read event")
		return
	}
	h.registry.Broadcast(threadRoom(threadID), frame)
}

// BroadcastMessage fans a persisted message out to the thread's room. Called
// by the chat service after the store write; order is the caller's concern.
func (h *Hub) BroadcastMessage(threadID int64, m *chat.Message) {
	frame, err := encodeEvent(EventChatMessage, &MessagePayload{ThreadID: threadID, Message: m})
	if err != nil {
		h.log.Error().Err(err).Int64("thread_id", threadID).Msg("encode message event")
		return
	}
	h.registry.Broadcast(threadRoom(threadID), frame)
}

// PushToUser delivers an event to the user's private room if they have any
// open connection. Reports whether a delivery was attempted.
func (h *Hub) PushToUser(userID int64, event string, payload any) bool {
	if !h.registry.IsOnline(userID) {
		return false
	}

	frame, err := encodeEvent(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode push event")
		return false
	}
	h.registry.Broadcast(userRoom(userID), frame)
	return true
}

func (h *Hub) broadcastPresence(userID int64, online bool) {
	frame, err := encodeEvent(EventPresence, &PresencePayload{UserID: userID, Online: online})
	if err != nil {
		h.log.Error().Err(err).Msg("encode presence event")
		return
	}
	h.registry.BroadcastAll(frame)
}
