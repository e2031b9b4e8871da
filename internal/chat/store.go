package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrSameUser       = errors.New("cannot open a thread with yourself")
)

// Store is the persistence surface the chat service, HTTP handlers and the
// realtime hub share. The Postgres implementation below is the real one;
// tests use an in-memory fake.
type Store interface {
	GetOrCreateThread(ctx context.Context, userA, userB int64) (*Thread, error)
	FindThread(ctx context.Context, threadID int64) (*Thread, error)
	ListThreads(ctx context.Context, userID int64) ([]*Thread, error)
	IsParticipant(ctx context.Context, threadID, userID int64) (bool, error)
	CreateMessage(ctx context.Context, threadID, senderID int64, content string) (*Message, error)
	ListMessages(ctx context.Context, threadID int64) ([]*Message, error)
	MarkThreadRead(ctx context.Context, threadID, userID int64) (int64, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetOrCreateThread returns the unique thread for the pair, creating it
// lazily on first contact. A concurrent create races through the unique
// index: ON CONFLICT DO NOTHING followed by a re-select keeps this safe.
func (s *PostgresStore) GetOrCreateThread(ctx context.Context, userA, userB int64) (*Thread, error) {
	if userA == userB {
		return nil, ErrSameUser
	}
	a, b := canonicalPair(userA, userB)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (participant_a, participant_b) VALUES ($1, $2)
         ON CONFLICT (participant_a, participant_b) DO NOTHING`, a, b)
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	t := &Thread{}
	err = s.db.QueryRowContext(ctx,
		`SELECT id, participant_a, participant_b, last_message_at, created_at
         FROM threads WHERE participant_a = $1 AND participant_b = $2`, a, b).
		Scan(&t.ID, &t.ParticipantA, &t.ParticipantB, &t.LastMessageAt, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("load thread: %w", err)
	}
	t.Participants = []int64{t.ParticipantA, t.ParticipantB}
	return t, nil
}

func (s *PostgresStore) FindThread(ctx context.Context, threadID int64) (*Thread, error) {
	t := &Thread{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, participant_a, participant_b, last_message_at, created_at
         FROM threads WHERE id = $1`, threadID).
		Scan(&t.ID, &t.ParticipantA, &t.ParticipantB, &t.LastMessageAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	t.Participants = []int64{t.ParticipantA, t.ParticipantB}
	return t, nil
}

func (s *PostgresStore) ListThreads(ctx context.Context, userID int64) ([]*Thread, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, participant_a, participant_b, last_message_at, created_at
         FROM threads WHERE participant_a = $1 OR participant_b = $1
         ORDER BY last_message_at DESC NULLS LAST, created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		t := &Thread{}
		if err := rows.Scan(&t.ID, &t.ParticipantA, &t.ParticipantB, &t.LastMessageAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Participants = []int64{t.ParticipantA, t.ParticipantB}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

func (s *PostgresStore) IsParticipant(ctx context.Context, threadID, userID int64) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM threads WHERE id = $1 AND (participant_a = $2 OR participant_b = $2))`,
		threadID, userID).Scan(&ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// CreateMessage persists the message and bumps the thread's last_message_at
// in one transaction.
func (s *PostgresStore) CreateMessage(ctx context.Context, threadID, senderID int64, content string) (*Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m := &Message{ThreadID: threadID, SenderID: senderID, Content: content, ReadBy: []int64{}}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO messages (thread_id, sender_id, content) VALUES ($1, $2, $3)
         RETURNING id, created_at`, threadID, senderID, content).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET last_message_at = $2 WHERE id = $1`, threadID, m.CreatedAt); err != nil {
		return nil, fmt.Errorf("bump thread: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT username FROM users WHERE id = $1`, senderID).Scan(&m.SenderUsername); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, threadID int64) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.thread_id, m.sender_id, u.username, m.content, m.created_at
         FROM messages m JOIN users u ON u.id = m.sender_id
         WHERE m.thread_id = $1 ORDER BY m.created_at ASC, m.id ASC`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	byID := make(map[int64]*Message)
	for rows.Next() {
		m := &Message{ReadBy: []int64{}}
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.SenderUsername, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
		byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	readRows, err := s.db.QueryContext(ctx,
		`SELECT mr.message_id, mr.user_id FROM message_reads mr
         JOIN messages m ON m.id = mr.message_id WHERE m.thread_id = $1`, threadID)
	if err != nil {
		return nil, err
	}
	defer readRows.Close()

	for readRows.Next() {
		var messageID, userID int64
		if err := readRows.Scan(&messageID, &userID); err != nil {
			return nil, err
		}
		if m, ok := byID[messageID]; ok {
			m.ReadBy = append(m.ReadBy, userID)
		}
	}
	return messages, readRows.Err()
}

// MarkThreadRead adds userID to the read set of every message in the thread
// they did not send. Pure set union: re-marking is a no-op, the set never
// shrinks. Returns how many messages were newly marked.
func (s *PostgresStore) MarkThreadRead(ctx context.Context, threadID, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO message_reads (message_id, user_id)
         SELECT m.id, $2 FROM messages m
         WHERE m.thread_id = $1 AND m.sender_id <> $2
         ON CONFLICT (message_id, user_id) DO NOTHING`, threadID, userID)
	if err != nil {
		return 0, fmt.Errorf("mark thread read: %w", err)
	}
	return res.RowsAffected()
}
