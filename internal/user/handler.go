package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/talelchaanbi/consultlink/internal/middleware"
	"github.com/talelchaanbi/consultlink/internal/session"
)

// SessionIssuer is the slice of the session layer the auth handlers need:
// minting a session on login and destroying it on logout.
type SessionIssuer interface {
	Issue(ctx context.Context, userID int64, userRole string) (*session.Session, *http.Cookie, error)
	Clear(ctx context.Context, req *http.Request) (*http.Cookie, error)
}

type Handler struct {
	service  *Service
	sessions SessionIssuer
	log      zerolog.Logger
}

func NewHandler(service *Service, sessions SessionIssuer, log zerolog.Logger) *Handler {
	return &Handler{service: service, sessions: sessions, log: log}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.service.Register(r.Context(), &req)
	if err != nil {
		h.log.Warn().Err(err).Msg("register failed")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(u)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.service.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.log.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	_, cookie, err := h.sessions.Issue(r.Context(), u.ID, u.Role)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", u.ID).Msg("session issue failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	http.SetCookie(w, cookie)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(u)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := h.sessions.Clear(r.Context(), r)
	if err != nil {
		h.log.Warn().Err(err).Msg("session destroy failed")
	}
	http.SetCookie(w, cookie)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	u, err := h.service.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(u)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"msg": msg})
}
