package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/talelchaanbi/consultlink/internal/middleware"
)

type Handler struct {
	service *Service
	log     zerolog.Logger
}

func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

type startThreadRequest struct {
	UserID int64 `json:"userId"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// StartThread finds or lazily creates the thread with another user.
func (h *Handler) StartThread(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	var req startThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	thread, err := h.service.GetOrCreateThread(r.Context(), userID, req.UserID)
	if err != nil {
		if errors.Is(err, ErrSameUser) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("start thread failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, thread)
}

func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	threads, err := h.service.ListThreads(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("list threads failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if threads == nil {
		threads = []*Thread{}
	}
	writeJSON(w, http.StatusOK, threads)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	threadID, ok := threadIDParam(w, r)
	if !ok {
		return
	}

	messages, err := h.service.ListMessages(r.Context(), threadID, userID)
	if err != nil {
		h.respondServiceError(w, err, "list messages")
		return
	}
	if messages == nil {
		messages = []*Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	threadID, ok := threadIDParam(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.service.SendMessage(r.Context(), threadID, userID, req.Content)
	if err != nil {
		h.respondServiceError(w, err, "send message")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrThreadNotFound):
		writeError(w, http.StatusNotFound, "Thread not found")
	case errors.Is(err, ErrNotParticipant):
		writeError(w, http.StatusForbidden, "Not authorized")
	case errors.Is(err, ErrEmptyContent), errors.Is(err, ErrContentTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Str("op", op).Msg("chat handler error")
		writeError(w, http.StatusInternalServerError, "server error")
	}
}

func threadIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid thread id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"msg": msg})
}
