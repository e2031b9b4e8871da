package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// Pusher attempts immediate delivery to a connected user. Returns false when
// the user has no open connection. Implemented by the realtime hub.
type Pusher interface {
	PushToUser(userID int64, event string, payload any) bool
}

// Notifier is the fan-out for domain events. Persist first, always; then try
// a direct push if the recipient is online. Neither step may fail the
// triggering action, so every error ends at the log.
type Notifier struct {
	store  Store
	pusher Pusher
	log    zerolog.Logger
}

func NewNotifier(store Store, pusher Pusher, log zerolog.Logger) *Notifier {
	return &Notifier{store: store, pusher: pusher, log: log}
}

// Notify records a notification for the recipient and pushes it to their
// private channel when they are connected. Offline recipients pick it up on
// their next poll.
func (n *Notifier) Notify(ctx context.Context, recipientID int64, in Input) {
	if recipientID == 0 {
		return
	}

	record := &Notification{
		UserID:   recipientID,
		Type:     in.Type,
		Title:    in.Title,
		Body:     in.Body,
		Link:     in.Link,
		Metadata: in.Metadata,
	}

	if err := n.store.Create(ctx, record); err != nil {
		n.log.Error().Err(err).Int64("user_id", recipientID).Str("type", in.Type).
			Msg("notification persist failed")
		return
	}

	if delivered := n.pusher.PushToUser(recipientID, "notification", record); delivered {
		n.log.Debug().Int64("user_id", recipientID).Int64("notification_id", record.ID).
			Msg("notification pushed")
	}
}
