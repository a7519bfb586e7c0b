package entity

// Conversation is a derived view, never stored: the newest message of one
// conversation plus the viewer's unread count. Computed per request from the
// message log.
type Conversation struct {
	ConversationId string  `bson:"_id" json:"conversationId"`
	LastMessage    Message `bson:"lastMessage" json:"lastMessage"`
	UnreadCount    int64   `bson:"unreadCount" json:"unreadCount"`
}
