package entity

import (
	"sort"
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVoice MessageType = "voice"
	MessageTypeVideo MessageType = "video"
	MessageTypeFile  MessageType = "file"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVoice, MessageTypeVideo, MessageTypeFile:
		return true
	}
	return false
}

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// Message is the single persisted record of the messaging core. Immutable
// once created except for status/readAt, which only advance via mark-read.
type Message struct {
	Id             string         `bson:"_id" json:"id"`
	ConversationId string         `bson:"conversationId" json:"conversationId"`
	SenderId       string         `bson:"senderId" json:"senderId"`
	RecipientId    string         `bson:"recipientId" json:"recipientId"`
	Type           MessageType    `bson:"type" json:"type"`
	Content        string         `bson:"content" json:"content"`
	Metadata       map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Status         MessageStatus  `bson:"status" json:"status"`
	ReadAt         *time.Time     `bson:"readAt,omitempty" json:"readAt,omitempty"`
	CreatedAt      time.Time      `bson:"createdAt" json:"createdAt"`
}

type MessagePageFilter struct {
	ConversationId string
	Page           int
	Limit          int
}

const conversationIdSeparator = "_"

// ConversationID derives the conversation partition key from the two
// participant ids. The ids are sorted lexicographically before joining, so
// both parties converge on the same key no matter who initiates.
func ConversationID(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return strings.Join(ids, conversationIdSeparator)
}

// IsParticipant reports whether userId is one of the two parties encoded in
// conversationId.
func IsParticipant(conversationId, userId string) bool {
	if userId == "" {
		return false
	}
	return strings.HasPrefix(conversationId, userId+conversationIdSeparator) ||
		strings.HasSuffix(conversationId, conversationIdSeparator+userId)
}
