package usecase

import (
	"context"
	"errors"

	"careline/internal/entity"
	"careline/internal/repository"
	"careline/pkg/metrics"
)

// SendMessageInput is a validated send intent from an authenticated sender.
type SendMessageInput struct {
	RecipientId string
	Type        entity.MessageType
	Content     string
	Metadata    map[string]any
}

type MessageUsecase interface {
	// Send validates the intent and persists it with status sent. One
	// persistence attempt only; the caller resends on failure.
	Send(ctx context.Context, senderId string, input SendMessageInput) (entity.Message, error)
	// History returns one page of a conversation, newest first.
	History(ctx context.Context, principal *entity.Principal, conversationId string, page, limit int) ([]entity.Message, error)
	MarkRead(ctx context.Context, principal *entity.Principal, messageId string) (entity.Message, error)
	CountUnread(ctx context.Context, principal *entity.Principal, userId string) (int64, error)
}

type messageUsecase struct {
	messageRepo repository.MessageRepository
}

func NewMessageUsecase(messageRepo repository.MessageRepository) MessageUsecase {
	return &messageUsecase{
		messageRepo: messageRepo,
	}
}

func (u *messageUsecase) Send(ctx context.Context, senderId string, input SendMessageInput) (entity.Message, error) {
	if senderId == "" {
		return entity.Message{}, ErrUnauthenticated
	}
	if input.RecipientId == "" {
		return entity.Message{}, ErrInvalidRecipient
	}
	if !input.Type.Valid() {
		return entity.Message{}, ErrInvalidMessageType
	}
	if input.Content == "" {
		return entity.Message{}, ErrEmptyContent
	}

	message := entity.Message{
		ConversationId: entity.ConversationID(senderId, input.RecipientId),
		SenderId:       senderId,
		RecipientId:    input.RecipientId,
		Type:           input.Type,
		Content:        input.Content,
		Metadata:       input.Metadata,
	}

	persisted, err := u.messageRepo.Create(ctx, message)
	if err != nil {
		return entity.Message{}, err
	}

	metrics.MessagesSentTotal.WithLabelValues(string(persisted.Type)).Inc()
	return persisted, nil
}

func (u *messageUsecase) History(ctx context.Context, principal *entity.Principal, conversationId string, page, limit int) ([]entity.Message, error) {
	if principal == nil {
		return nil, ErrUnauthenticated
	}
	if !principal.Elevated() && !entity.IsParticipant(conversationId, principal.UserId) {
		return nil, ErrForbidden
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	return u.messageRepo.GetByConversation(ctx, entity.MessagePageFilter{
		ConversationId: conversationId,
		Page:           page,
		Limit:          limit,
	})
}

func (u *messageUsecase) MarkRead(ctx context.Context, principal *entity.Principal, messageId string) (entity.Message, error) {
	if principal == nil {
		return entity.Message{}, ErrUnauthenticated
	}

	message, err := u.messageRepo.MarkRead(ctx, messageId)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return entity.Message{}, ErrMessageNotFound
		}
		return entity.Message{}, err
	}

	return message, nil
}

func (u *messageUsecase) CountUnread(ctx context.Context, principal *entity.Principal, userId string) (int64, error) {
	if principal == nil {
		return 0, ErrUnauthenticated
	}
	if !principal.CanActFor(userId) {
		return 0, ErrForbidden
	}

	return u.messageRepo.CountUnread(ctx, userId)
}
