package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/talelchaanbi/consultlink/internal/session"
)

// Context keys, exported so handlers can read the authenticated identity.
type contextKey string

const (
	UserKey contextKey = "user_id"
	RoleKey contextKey = "user_role"
)

// SessionResolver is what we need from the session layer. The interface keeps
// this package decoupled from the concrete resolver, mirroring how handlers
// elsewhere depend on narrow interfaces rather than packages.
type SessionResolver interface {
	Resolve(ctx context.Context, req *http.Request) (*session.Session, error)
}

type Auth struct {
	resolver SessionResolver
	log      zerolog.Logger
}

func NewAuth(resolver SessionResolver, log zerolog.Logger) *Auth {
	return &Auth{resolver: resolver, log: log}
}

// Handle rejects requests without a live session and injects userID/userRole
// into the request context for everything downstream.
func (a *Auth) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := a.resolver.Resolve(r.Context(), r)
		if err != nil {
			a.log.Debug().Err(err).Str("path", r.URL.Path).Msg("unauthenticated request")
			writeJSONError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), UserKey, sess.UserID)
		ctx = context.WithValue(ctx, RoleKey, sess.UserRole)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a route group on the session's role. Must run after Handle.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := r.Context().Value(RoleKey).(string)
			if !ok || !allowed[role] {
				writeJSONError(w, http.StatusForbidden, "Insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserID pulls the authenticated user out of a context populated by Handle.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserKey).(int64)
	return id, ok
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"msg": msg})
}
