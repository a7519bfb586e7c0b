package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"careline/infrastructure/cache"
	"careline/infrastructure/ws"
	"careline/internal/entity"
	"careline/internal/usecase"
	"careline/pkg/logger"
	"careline/pkg/token"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GatewayHandler owns the persistent-connection side of the messaging core:
// it authenticates the handshake, drives the per-connection event loop, and
// routes sends to the recipient's live connections.
type GatewayHandler struct {
	hub       ws.IHub
	verifier  token.Verifier
	messageUc usecase.MessageUsecase
	presence  cache.Presence
	log       *logger.Logger
}

func NewGatewayHandler(hub ws.IHub, verifier token.Verifier, messageUc usecase.MessageUsecase, presence cache.Presence, log *logger.Logger) *GatewayHandler {
	return &GatewayHandler{
		hub:       hub,
		verifier:  verifier,
		messageUc: messageUc,
		presence:  presence,
		log:       log,
	}
}

// HandleWebSocket authenticates and upgrades a connection. The credential
// comes from the token query parameter (connection-scoped field) or the
// Authorization bearer header; a bad credential closes the handshake with
// 401 before any upgrade happens.
func (h *GatewayHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	credential := bearerToken(r)
	if credential == "" {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}

	principal, err := h.verifier.Verify(credential)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(principal.UserId, h.hub, conn)

	go client.WritePump()
	client.ReadPump(
		func(data []byte) {
			h.handleEvent(r.Context(), client, data)
		},
		func() {
			// heartbeat doubles as the presence TTL refresh
			if client.Joined() {
				if err := h.presence.Set(context.Background(), client.UserId); err != nil {
					h.log.Warn("presence refresh failed", zap.Error(err))
				}
			}
		},
	)
}

// HandleUserOffline clears the presence flag once the user's last
// connection is gone. Wired to the hub's offline callback.
func (h *GatewayHandler) HandleUserOffline(userId string) {
	if err := h.presence.Clear(context.Background(), userId); err != nil {
		h.log.Warn("presence clear failed", zap.String("user_id", userId), zap.Error(err))
	}
}

func (h *GatewayHandler) handleEvent(ctx context.Context, client *ws.UserClient, data []byte) {
	var event InboundEvent
	if err := json.Unmarshal(data, &event); err != nil {
		h.replyError(client, CodeBadRequest, "malformed event")
		return
	}

	switch event.Event {
	case EventJoin:
		h.handleJoin(ctx, client)
	case EventSendMessage:
		h.handleSendMessage(ctx, client, event.Data)
	case EventTyping:
		h.handleTyping(client, event.Data)
	default:
		h.replyError(client, CodeBadRequest, "unknown event: "+event.Event)
	}
}

func (h *GatewayHandler) handleJoin(ctx context.Context, client *ws.UserClient) {
	if !client.Joined() {
		h.hub.RegisterClient(client)
		client.MarkJoined()

		if err := h.presence.Set(ctx, client.UserId); err != nil {
			h.log.Warn("presence set failed", zap.String("user_id", client.UserId), zap.Error(err))
		}
	}

	h.reply(client, EventJoined, JoinedData{UserId: client.UserId})
}

func (h *GatewayHandler) handleSendMessage(ctx context.Context, client *ws.UserClient, data json.RawMessage) {
	if !client.Joined() {
		h.replyError(client, CodeUnauthorized, "join before sending")
		return
	}

	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.replyError(client, CodeBadRequest, "malformed send_message payload")
		return
	}

	message, err := h.messageUc.Send(ctx, client.UserId, usecase.SendMessageInput{
		RecipientId: payload.RecipientId,
		Type:        entity.MessageType(payload.Type),
		Content:     payload.Content,
		Metadata:    payload.Metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidRecipient),
			errors.Is(err, usecase.ErrInvalidMessageType),
			errors.Is(err, usecase.ErrEmptyContent):
			h.replyError(client, CodeValidationFailed, err.Error())
		default:
			// no broadcast happened; sender may resend
			h.log.Error("persist message failed", zap.String("sender_id", client.UserId), zap.Error(err))
			h.replyError(client, CodePersistenceFailed, "message could not be stored")
		}
		return
	}

	// fan out to every connection the recipient holds; zero connections is
	// not an error, the message is durable for later retrieval
	h.push(message.RecipientId, EventNewMessage, message)

	h.reply(client, EventMessageSent, MessageSentData{
		Id:             message.Id,
		ConversationId: message.ConversationId,
		Status:         message.Status,
		CreatedAt:      message.CreatedAt,
	})
}

func (h *GatewayHandler) handleTyping(client *ws.UserClient, data json.RawMessage) {
	if !client.Joined() {
		h.replyError(client, CodeUnauthorized, "join before sending")
		return
	}

	var payload TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RecipientId == "" {
		// fire-and-forget, drop silently
		return
	}

	h.push(payload.RecipientId, EventUserTyping, UserTypingData{UserId: client.UserId})
}

// push marshals an outbound event and fans it out to every one of the
// user's live connections.
func (h *GatewayHandler) push(userId, event string, data any) {
	payload, err := json.Marshal(OutboundEvent{Event: event, Data: data})
	if err != nil {
		h.log.Error("marshal outbound event", zap.String("event", event), zap.Error(err))
		return
	}
	h.hub.SendToUser(userId, payload)
}

// reply enqueues an event on this client only. Non-blocking so a stalled
// connection cannot back-pressure the event loop.
func (h *GatewayHandler) reply(client *ws.UserClient, event string, data any) {
	payload, err := json.Marshal(OutboundEvent{Event: event, Data: data})
	if err != nil {
		h.log.Error("marshal outbound event", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case client.Send <- payload:
	default:
		h.log.Warn("reply dropped, send buffer full", zap.String("user_id", client.UserId))
	}
}

func (h *GatewayHandler) replyError(client *ws.UserClient, code, message string) {
	h.reply(client, EventError, ErrorData{Code: code, Message: message})
}

func bearerToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}
