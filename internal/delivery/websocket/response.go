package websocket

import (
	"time"

	"careline/internal/entity"
)

// Outbound event names.
const (
	EventJoined      = "joined"
	EventMessageSent = "message_sent"
	EventNewMessage  = "new_message"
	EventUserTyping  = "user_typing"
	EventError       = "error"
)

// Error codes carried by EventError.
const (
	CodeUnauthorized      = "unauthorized"
	CodeValidationFailed  = "validation_failed"
	CodePersistenceFailed = "persistence_failed"
	CodeBadRequest        = "bad_request"
)

// OutboundEvent is the envelope every server frame is sent in.
type OutboundEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type JoinedData struct {
	UserId string `json:"userId"`
}

// MessageSentData acknowledges a send to its author.
type MessageSentData struct {
	Id             string               `json:"id"`
	ConversationId string               `json:"conversationId"`
	Status         entity.MessageStatus `json:"status"`
	CreatedAt      time.Time            `json:"createdAt"`
}

type UserTypingData struct {
	UserId string `json:"userId"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
