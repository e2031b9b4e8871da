package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memoryStore stands in for the Redis store.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]*Session)}
}

func (s *memoryStore) Create(_ context.Context, userID int64, userRole string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{ID: uuid.NewString(), UserID: userID, UserRole: userRole}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *memoryStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func TestIssueAndResolve(t *testing.T) {
	store := newMemoryStore()
	resolver := NewResolver(store, []byte("test-secret"))
	ctx := context.Background()

	sess, cookie, err := resolver.Issue(ctx, 42, "recruiter")
	require.NoError(t, err)
	require.Equal(t, CookieName, cookie.Name)
	require.True(t, cookie.HttpOnly)

	req := httptest.NewRequest("GET", "/ws", nil)
	req.AddCookie(cookie)

	resolved, err := resolver.Resolve(ctx, req)
	require.NoError(t, err)
	require.Equal(t, sess.ID, resolved.ID)
	require.Equal(t, int64(42), resolved.UserID)
	require.Equal(t, "recruiter", resolved.UserRole)
}

func TestResolveWithoutCookie(t *testing.T) {
	resolver := NewResolver(newMemoryStore(), []byte("test-secret"))

	req := httptest.NewRequest("GET", "/", nil)
	_, err := resolver.Resolve(context.Background(), req)
	require.ErrorIs(t, err, ErrNoCookie)
}

func TestResolveRejectsTamperedCookie(t *testing.T) {
	store := newMemoryStore()
	resolver := NewResolver(store, []byte("test-secret"))
	ctx := context.Background()

	_, cookie, err := resolver.Issue(ctx, 42, "consultant")
	require.NoError(t, err)

	// A cookie signed with a different secret must fail before the store.
	other := NewResolver(store, []byte("other-secret"))
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookie)
	_, err = other.Resolve(ctx, req)
	require.Error(t, err)

	// Garbage in the cookie fails the same way.
	req = httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	_, err = resolver.Resolve(ctx, req)
	require.Error(t, err)
}

func TestClearDestroysSession(t *testing.T) {
	store := newMemoryStore()
	resolver := NewResolver(store, []byte("test-secret"))
	ctx := context.Background()

	_, cookie, err := resolver.Issue(ctx, 42, "consultant")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	req.AddCookie(cookie)

	expired, err := resolver.Clear(ctx, req)
	require.NoError(t, err)
	require.Negative(t, expired.MaxAge)

	// The old cookie no longer authenticates: the record is gone.
	req = httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookie)
	_, err = resolver.Resolve(ctx, req)
	require.ErrorIs(t, err, ErrNotFound)
}
