package usecase

import (
	"context"

	"careline/internal/entity"
	"careline/internal/repository"
)

type ConversationUsecase interface {
	// List derives the viewer's conversation list from the message log:
	// newest message plus unread count per conversation, newest first.
	List(ctx context.Context, principal *entity.Principal, userId string) ([]entity.Conversation, error)
}

type conversationUsecase struct {
	messageRepo repository.MessageRepository
}

func NewConversationUsecase(messageRepo repository.MessageRepository) ConversationUsecase {
	return &conversationUsecase{
		messageRepo: messageRepo,
	}
}

func (u *conversationUsecase) List(ctx context.Context, principal *entity.Principal, userId string) ([]entity.Conversation, error) {
	if principal == nil {
		return nil, ErrUnauthenticated
	}
	if !principal.CanActFor(userId) {
		return nil, ErrForbidden
	}

	conversations, err := u.messageRepo.AggregateConversations(ctx, userId)
	if err != nil {
		return nil, err
	}

	if conversations == nil {
		conversations = []entity.Conversation{}
	}
	return conversations, nil
}
