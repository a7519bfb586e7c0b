package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"careline/internal/entity"
	"careline/internal/usecase"
	"careline/pkg/logger"
)

const (
	defaultPage  = 1
	defaultLimit = 50
)

// HttpHandler is the synchronous messaging facade: history, read receipts
// and unread totals for clients without a live connection.
type HttpHandler struct {
	conversationUc usecase.ConversationUsecase
	messageUc      usecase.MessageUsecase
	health         func(ctx context.Context) error
	log            *logger.Logger
}

func NewHttpHandler(conversationUc usecase.ConversationUsecase, messageUc usecase.MessageUsecase, health func(ctx context.Context) error, log *logger.Logger) *HttpHandler {
	return &HttpHandler{
		conversationUc: conversationUc,
		messageUc:      messageUc,
		health:         health,
		log:            log,
	}
}

type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GET /conversations/{userId}
func (h *HttpHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "userId")
	principal := PrincipalFromContext(r.Context())

	conversations, err := h.conversationUc.List(r.Context(), principal, userId)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: conversations})
}

// GET /messages/{conversationId}?page&limit
func (h *HttpHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationId := chi.URLParam(r, "conversationId")
	principal := PrincipalFromContext(r.Context())

	page := queryInt(r, "page", defaultPage)
	limit := queryInt(r, "limit", defaultLimit)

	messages, err := h.messageUc.History(r.Context(), principal, conversationId, page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if messages == nil {
		messages = []entity.Message{}
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: messages})
}

// PUT /messages/{id}/read
func (h *HttpHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	messageId := chi.URLParam(r, "id")
	principal := PrincipalFromContext(r.Context())

	message, err := h.messageUc.MarkRead(r.Context(), principal, messageId)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: message})
}

// GET /unread-count/{userId}
func (h *HttpHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "userId")
	principal := PrincipalFromContext(r.Context())

	count, err := h.messageUc.CountUnread(r.Context(), principal, userId)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: count})
}

// GET /healthz
func (h *HttpHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, Response{Success: false, Error: "store unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: "ok"})
}

func (h *HttpHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusForError(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, Response{Success: false, Error: message})
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, usecase.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, usecase.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, usecase.ErrMessageNotFound):
		return http.StatusNotFound, "message not found"
	case errors.Is(err, usecase.ErrInvalidRecipient),
		errors.Is(err, usecase.ErrInvalidMessageType),
		errors.Is(err, usecase.ErrEmptyContent):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
