package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/talelchaanbi/consultlink/internal/notification"
)

var (
	ErrNotParticipant = errors.New("not a thread participant")
	ErrEmptyContent   = errors.New("content is required")
	ErrContentTooLong = errors.New("content exceeds maximum length")
)

// Broadcaster fans a persisted message out to the thread's room. Implemented
// by the realtime hub; the service never touches the transport directly.
type Broadcaster interface {
	BroadcastMessage(threadID int64, m *Message)
}

// Notifier alerts the other participant about a new message. Fire-and-forget
// by contract: it must never fail the send.
type Notifier interface {
	Notify(ctx context.Context, recipientID int64, in notification.Input)
}

// Service owns the message send path: validate, persist, broadcast, notify,
// in that order. Sends within one thread are serialized by a per-thread lock
// so room delivery order always matches persistence order. Threads lock
// independently; concurrent sends to different threads do not contend.
type Service struct {
	store       Store
	broadcaster Broadcaster
	notifier    Notifier
	log         zerolog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewService(store Store, broadcaster Broadcaster, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		store:       store,
		broadcaster: broadcaster,
		notifier:    notifier,
		log:         log,
		locks:       make(map[int64]*sync.Mutex),
	}
}

func (s *Service) threadLock(threadID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[threadID] = l
	}
	return l
}

func (s *Service) GetOrCreateThread(ctx context.Context, userID, otherUserID int64) (*Thread, error) {
	return s.store.GetOrCreateThread(ctx, userID, otherUserID)
}

func (s *Service) ListThreads(ctx context.Context, userID int64) ([]*Thread, error) {
	return s.store.ListThreads(ctx, userID)
}

// ListMessages returns the thread history, participant-only.
func (s *Service) ListMessages(ctx context.Context, threadID, userID int64) ([]*Message, error) {
	thread, err := s.store.FindThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return s.store.ListMessages(ctx, threadID)
}

// SendMessage validates and persists a message, then broadcasts it to the
// thread room and notifies the other participant. Persist happens-before
// broadcast happens-before notify; the notify step runs behind an error
// boundary and cannot roll the send back.
func (s *Service) SendMessage(ctx context.Context, threadID, senderID int64, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if len(content) > MaxContentLength {
		return nil, ErrContentTooLong
	}

	thread, err := s.store.FindThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}

	lock := s.threadLock(threadID)
	lock.Lock()
	m, err := s.store.CreateMessage(ctx, threadID, senderID, content)
	if err == nil {
		s.broadcaster.BroadcastMessage(threadID, m)
	}
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	for _, participant := range thread.Participants {
		if participant == senderID {
			continue
		}
		s.notifier.Notify(ctx, participant, notification.Input{
			Type:  notification.TypeChatMessage,
			Title: "New message",
			Body:  "You have received a message",
			Link:  "/app?view=chat",
			Metadata: map[string]any{
				"threadId": threadID,
			},
		})
	}

	return m, nil
}
