package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/talelchaanbi/consultlink/internal/notification"
)

// memoryStore is an in-memory Store used to exercise the service without
// Postgres.
type memoryStore struct {
	mu         sync.Mutex
	nextThread int64
	nextMsg    int64
	threads    map[int64]*Thread
	messages   []*Message
	reads      map[int64]map[int64]bool // message id -> reader set
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		threads: make(map[int64]*Thread),
		reads:   make(map[int64]map[int64]bool),
	}
}

func (s *memoryStore) addThread(a, b int64) *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextThread++
	pa, pb := canonicalPair(a, b)
	t := &Thread{ID: s.nextThread, ParticipantA: pa, ParticipantB: pb, Participants: []int64{pa, pb}}
	s.threads[t.ID] = t
	return t
}

func (s *memoryStore) GetOrCreateThread(_ context.Context, userA, userB int64) (*Thread, error) {
	if userA == userB {
		return nil, ErrSameUser
	}
	s.mu.Lock()
	a, b := canonicalPair(userA, userB)
	for _, t := range s.threads {
		if t.ParticipantA == a && t.ParticipantB == b {
			s.mu.Unlock()
			return t, nil
		}
	}
	s.mu.Unlock()
	return s.addThread(a, b), nil
}

func (s *memoryStore) FindThread(_ context.Context, threadID int64) (*Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return nil, ErrThreadNotFound
	}
	return t, nil
}

func (s *memoryStore) ListThreads(_ context.Context, userID int64) ([]*Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Thread
	for _, t := range s.threads {
		if t.HasParticipant(userID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memoryStore) IsParticipant(_ context.Context, threadID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	return ok && t.HasParticipant(userID), nil
}

func (s *memoryStore) CreateMessage(_ context.Context, threadID, senderID int64, content string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return nil, ErrThreadNotFound
	}
	s.nextMsg++
	now := time.Now()
	m := &Message{
		ID:        s.nextMsg,
		ThreadID:  threadID,
		SenderID:  senderID,
		Content:   content,
		ReadBy:    []int64{},
		CreatedAt: now,
	}
	s.messages = append(s.messages, m)
	t.LastMessageAt = &now
	return m, nil
}

func (s *memoryStore) ListMessages(_ context.Context, threadID int64) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Message
	for _, m := range s.messages {
		if m.ThreadID == threadID {
			cp := *m
			cp.ReadBy = nil
			for reader := range s.reads[m.ID] {
				cp.ReadBy = append(cp.ReadBy, reader)
			}
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memoryStore) MarkThreadRead(_ context.Context, threadID, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var marked int64
	for _, m := range s.messages {
		if m.ThreadID != threadID || m.SenderID == userID {
			continue
		}
		if s.reads[m.ID] == nil {
			s.reads[m.ID] = make(map[int64]bool)
		}
		if !s.reads[m.ID][userID] {
			s.reads[m.ID][userID] = true
			marked++
		}
	}
	return marked, nil
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []*Message
}

func (b *recordingBroadcaster) BroadcastMessage(_ int64, m *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, m)
}

type recordingNotifier struct {
	recipients []int64
	inputs     []notification.Input
}

func (n *recordingNotifier) Notify(_ context.Context, recipientID int64, in notification.Input) {
	n.recipients = append(n.recipients, recipientID)
	n.inputs = append(n.inputs, in)
}

func newTestService(store Store) (*Service, *recordingBroadcaster, *recordingNotifier) {
	broadcaster := &recordingBroadcaster{}
	notifier := &recordingNotifier{}
	return NewService(store, broadcaster, notifier, zerolog.Nop()), broadcaster, notifier
}

func TestSendMessageValidation(t *testing.T) {
	store := newMemoryStore()
	thread := store.addThread(1, 2)
	svc, broadcaster, _ := newTestService(store)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, thread.ID, 1, "   ")
	require.ErrorIs(t, err, ErrEmptyContent)

	_, err = svc.SendMessage(ctx, thread.ID, 1, strings.Repeat("x", MaxContentLength+1))
	require.ErrorIs(t, err, ErrContentTooLong)

	// Exactly at the cap is fine.
	_, err = svc.SendMessage(ctx, thread.ID, 1, strings.Repeat("x", MaxContentLength))
	require.NoError(t, err)

	require.Len(t, broadcaster.messages, 1, "rejected messages must not broadcast")
}

func TestSendMessageTrimsContent(t *testing.T) {
	store := newMemoryStore()
	thread := store.addThread(1, 2)
	svc, _, _ := newTestService(store)

	m, err := svc.SendMessage(context.Background(), thread.ID, 1, "  hello  ")
	require.NoError(t, err)
	require.Equal(t, "hello", m.Content)
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	store := newMemoryStore()
	thread := store.addThread(1, 2)
	svc, broadcaster, notifier := newTestService(store)

	_, err := svc.SendMessage(context.Background(), thread.ID, 3, "hi")
	require.ErrorIs(t, err, ErrNotParticipant)
	require.Empty(t, broadcaster.messages)
	require.Empty(t, notifier.recipients)
}

func TestSendMessageNotifiesOtherParticipantOnly(t *testing.T) {
	store := newMemoryStore()
	thread := store.addThread(1, 2)
	svc, _, notifier := newTestService(store)

	_, err := svc.SendMessage(context.Background(), thread.ID, 1, "hello")
	require.NoError(t, err)

	require.Equal(t, []int64{2}, notifier.recipients)
	require.Equal(t, notification.TypeChatMessage, notifier.inputs[0].Type)
	require.Equal(t, thread.ID, notifier.inputs[0].Metadata["threadId"])
}

func TestSendMessagePersistsBeforeBroadcastInOrder(t *testing.T) {
	store := newMemoryStore()
	thread := store.addThread(1, 2)
	svc, broadcaster, _ := newTestService(store)
	ctx := context.Background()

	first, err := svc.SendMessage(ctx, thread.ID, 1, "first")
	require.NoError(t, err)
	second, err := svc.SendMessage(ctx, thread.ID, 2, "second")
	require.NoError(t, err)

	require.Len(t, broadcaster.messages, 2)
	require.Equal(t, first.ID, broadcaster.messages[0].ID)
	require.Equal(t, second.ID, broadcaster.messages[1].ID)
	require.Less(t, first.ID, second.ID, "broadcast order must match persistence order")
	require.NotNil(t, thread.LastMessageAt)
}

func TestListMessagesGuarded(t *testing.T) {
	store := newMemoryStore()
	thread := store.addThread(1, 2)
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, thread.ID, 1, "hello")
	require.NoError(t, err)

	_, err = svc.ListMessages(ctx, thread.ID, 3)
	require.ErrorIs(t, err, ErrNotParticipant)

	messages, err := svc.ListMessages(ctx, thread.ID, 2)
	require.NoError(t, err)
	require.Len(t, messages, 1)
}

func TestReadReceiptsGrowMonotonically(t *testing.T) {
	store := newMemoryStore()
	thread := store.addThread(1, 2)
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, thread.ID, 1, "hello")
	require.NoError(t, err)

	marked, err := store.MarkThreadRead(ctx, thread.ID, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), marked)

	// Repeat is a no-op; the set never shrinks.
	marked, err = store.MarkThreadRead(ctx, thread.ID, 2)
	require.NoError(t, err)
	require.Zero(t, marked)

	messages, err := svc.ListMessages(ctx, thread.ID, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{2}, messages[0].ReadBy)

	// The sender never receipts their own message.
	marked, err = store.MarkThreadRead(ctx, thread.ID, 1)
	require.NoError(t, err)
	require.Zero(t, marked)
}

func TestGetOrCreateThreadIsStable(t *testing.T) {
	store := newMemoryStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	first, err := svc.GetOrCreateThread(ctx, 2, 1)
	require.NoError(t, err)
	second, err := svc.GetOrCreateThread(ctx, 1, 2)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID, "one thread per unordered pair")
	require.Equal(t, []int64{1, 2}, first.Participants)

	_, err = svc.GetOrCreateThread(ctx, 1, 1)
	require.ErrorIs(t, err, ErrSameUser)
}
