package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/talelchaanbi/consultlink/internal/chat"
)

// Client -> server commands.
const (
	CommandJoinThread = "joinThread"
	CommandThreadRead = "threadRead"
)

// Server -> client events.
const (
	EventChatMessage  = "chat:message"
	EventChatRead     = "chat:read"
	EventPresence     = "presence:update"
	EventNotification = "notification"
)

// Envelope is the wire frame in both directions: an event name plus a
// payload. Inbound payloads stay raw until the dispatcher knows the type.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ThreadCommand is the payload of both inbound commands.
type ThreadCommand struct {
	ThreadID int64 `json:"threadId"`
}

type PresencePayload struct {
	UserID int64 `json:"userId"`
	Online bool  `json:"online"`
}

type ReadPayload struct {
	ThreadID int64 `json:"threadId"`
	UserID   int64 `json:"userId"`
}

type MessagePayload struct {
	ThreadID int64         `json:"threadId"`
	Message  *chat.Message `json:"message"`
}

// encodeEvent marshals an outbound envelope.
func encodeEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(&Envelope{Event: event, Data: data})
}

// Room naming. Every connection sits in its user's private room; thread
// rooms are joined on demand.
func userRoom(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func threadRoom(threadID int64) string {
	return fmt.Sprintf("thread:%d", threadID)
}
