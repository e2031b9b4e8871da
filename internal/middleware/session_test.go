package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/talelchaanbi/consultlink/internal/session"
)

type stubResolver struct {
	sess *session.Session
	err  error
}

func (s *stubResolver) Resolve(_ context.Context, _ *http.Request) (*session.Session, error) {
	return s.sess, s.err
}

func TestAuthInjectsIdentity(t *testing.T) {
	auth := NewAuth(&stubResolver{sess: &session.Session{ID: "s1", UserID: 42, UserRole: "recruiter"}}, zerolog.Nop())

	var gotUser int64
	var gotRole string
	handler := auth.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = UserID(r.Context())
		gotRole, _ = r.Context().Value(RoleKey).(string)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/auth/me", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(42), gotUser)
	require.Equal(t, "recruiter", gotRole)
}

func TestAuthRejectsWithoutSession(t *testing.T) {
	auth := NewAuth(&stubResolver{err: errors.New("no session")}, zerolog.Nop())

	called := false
	handler := auth.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/chat/threads", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, called)
	require.JSONEq(t, `{"msg":"Authentication required"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	auth := NewAuth(&stubResolver{sess: &session.Session{ID: "s1", UserID: 1, UserRole: "consultant"}}, zerolog.Nop())

	admin := auth.Handle(RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	rec := httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest("GET", "/api/admin", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	either := auth.Handle(RequireRole("admin", "consultant")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	rec = httptest.NewRecorder()
	either.ServeHTTP(rec, httptest.NewRequest("GET", "/api/admin", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
