package chat

import "time"

// MaxContentLength caps message bodies after trimming.
const MaxContentLength = 2000

// Thread is a two-party conversation. Participants are stored as a sorted
// pair so the database can enforce at most one thread per unordered pair.
type Thread struct {
	ID            int64      `json:"id"`
	ParticipantA  int64      `json:"-"`
	ParticipantB  int64      `json:"-"`
	Participants  []int64    `json:"participants"`
	LastMessageAt *time.Time `json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// HasParticipant reports whether userID belongs to the thread.
func (t *Thread) HasParticipant(userID int64) bool {
	return userID == t.ParticipantA || userID == t.ParticipantB
}

type Message struct {
	ID             int64     `json:"id"`
	ThreadID       int64     `json:"thread_id"`
	SenderID       int64     `json:"sender_id"`
	SenderUsername string    `json:"sender_username"` // denormalized for the UI
	Content        string    `json:"content"`
	ReadBy         []int64   `json:"read_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// canonicalPair orders two user IDs into the stored (a, b) form.
func canonicalPair(x, y int64) (int64, int64) {
	if x < y {
		return x, y
	}
	return y, x
}
