// Package session owns the server-side session records shared by the HTTP
// middleware and the websocket handshake. A session lives in Redis under a
// sliding TTL: every successful lookup pushes the expiry forward, logout or
// expiry destroys it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

// Session is the authentication record a logged-in browser holds a handle to.
type Session struct {
	ID       string
	UserID   int64
	UserRole string
}

// Store persists sessions. Get refreshes the sliding TTL as a side effect.
type Store interface {
	Create(ctx context.Context, userID int64, userRole string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Destroy(ctx context.Context, id string) error
}

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string {
	return "session:" + id
}

func (s *RedisStore) Create(ctx context.Context, userID int64, userRole string) (*Session, error) {
	sess := &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		UserRole: userRole,
	}

	key := sessionKey(sess.ID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, "user_id", strconv.FormatInt(userID, 10), "user_role", userRole)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	key := sessionKey(id)
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", id, err)
	}

	// Sliding expiry: any authenticated use keeps the session alive.
	s.rdb.Expire(ctx, key, s.ttl)

	return &Session{ID: id, UserID: userID, UserRole: fields["user_role"]}, nil
}

func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, sessionKey(id)).Err()
}
