package websocket

import "encoding/json"

// Inbound event names.
const (
	EventJoin        = "join"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
)

// InboundEvent is the envelope every client frame arrives in.
type InboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type SendMessagePayload struct {
	RecipientId string         `json:"recipientId"`
	Type        string         `json:"type"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type TypingPayload struct {
	RecipientId string `json:"recipientId"`
}
