package notification

import "time"

// Well-known notification types. The column is free-form text; these are the
// ones the core itself emits.
const (
	TypeChatMessage = "CHAT_MESSAGE"
)

type Notification struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body,omitempty"`
	Link      string         `json:"link,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

// Input is what a domain event supplies when it wants to alert a user.
type Input struct {
	Type     string
	Title    string
	Body     string
	Link     string
	Metadata map[string]any
}
