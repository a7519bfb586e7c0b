package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"careline/internal/entity"
	"careline/internal/repository"
)

type mockMessageRepo struct {
	created      []entity.Message
	createErr    error
	markReadFn   func(messageId string) (entity.Message, error)
	unreadCount  int64
	unreadErr    error
	pageFilter   entity.MessagePageFilter
	pageResult   []entity.Message
	conversation []entity.Conversation
	aggErr       error
}

func (m *mockMessageRepo) Create(_ context.Context, message entity.Message) (entity.Message, error) {
	if m.createErr != nil {
		return entity.Message{}, m.createErr
	}
	message.Id = "m-1"
	message.Status = entity.MessageStatusSent
	message.CreatedAt = time.Now().UTC()
	m.created = append(m.created, message)
	return message, nil
}

func (m *mockMessageRepo) Get(_ context.Context, _ string) (entity.Message, error) {
	return entity.Message{}, repository.ErrMessageNotFound
}

func (m *mockMessageRepo) GetByConversation(_ context.Context, filter entity.MessagePageFilter) ([]entity.Message, error) {
	m.pageFilter = filter
	return m.pageResult, nil
}

func (m *mockMessageRepo) MarkRead(_ context.Context, messageId string) (entity.Message, error) {
	if m.markReadFn != nil {
		return m.markReadFn(messageId)
	}
	return entity.Message{}, repository.ErrMessageNotFound
}

func (m *mockMessageRepo) CountUnread(_ context.Context, _ string) (int64, error) {
	return m.unreadCount, m.unreadErr
}

func (m *mockMessageRepo) AggregateConversations(_ context.Context, _ string) ([]entity.Conversation, error) {
	return m.conversation, m.aggErr
}

func (m *mockMessageRepo) EnsureIndexes(_ context.Context) error {
	return nil
}

func TestSendValidation(t *testing.T) {
	uc := NewMessageUsecase(&mockMessageRepo{})
	ctx := context.Background()

	_, err := uc.Send(ctx, "", SendMessageInput{RecipientId: "u2", Type: entity.MessageTypeText, Content: "hi"})
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = uc.Send(ctx, "u1", SendMessageInput{Type: entity.MessageTypeText, Content: "hi"})
	require.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = uc.Send(ctx, "u1", SendMessageInput{RecipientId: "u2", Type: "sticker", Content: "hi"})
	require.ErrorIs(t, err, ErrInvalidMessageType)

	_, err = uc.Send(ctx, "u1", SendMessageInput{RecipientId: "u2", Type: entity.MessageTypeText})
	require.ErrorIs(t, err, ErrEmptyContent)
}

func TestSendDerivesConversationId(t *testing.T) {
	repo := &mockMessageRepo{}
	uc := NewMessageUsecase(repo)
	ctx := context.Background()

	first, err := uc.Send(ctx, "u1", SendMessageInput{RecipientId: "u2", Type: entity.MessageTypeText, Content: "hi"})
	require.NoError(t, err)

	second, err := uc.Send(ctx, "u2", SendMessageInput{RecipientId: "u1", Type: entity.MessageTypeText, Content: "hello back"})
	require.NoError(t, err)

	// both directions land in the same partition
	require.Equal(t, first.ConversationId, second.ConversationId)
	require.Equal(t, entity.MessageStatusSent, first.Status)
	require.Len(t, repo.created, 2)
}

func TestSendSinglePersistenceAttempt(t *testing.T) {
	repo := &mockMessageRepo{createErr: errors.New("store unavailable")}
	uc := NewMessageUsecase(repo)

	_, err := uc.Send(context.Background(), "u1", SendMessageInput{RecipientId: "u2", Type: entity.MessageTypeText, Content: "hi"})
	require.Error(t, err)
	require.Empty(t, repo.created)
}

func TestMarkReadMapsNotFound(t *testing.T) {
	uc := NewMessageUsecase(&mockMessageRepo{})

	_, err := uc.MarkRead(context.Background(), &entity.Principal{UserId: "u1"}, "missing")
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMarkReadIdempotent(t *testing.T) {
	now := time.Now().UTC()
	repo := &mockMessageRepo{
		markReadFn: func(messageId string) (entity.Message, error) {
			return entity.Message{Id: messageId, Status: entity.MessageStatusRead, ReadAt: &now}, nil
		},
	}
	uc := NewMessageUsecase(repo)
	principal := &entity.Principal{UserId: "u1"}

	first, err := uc.MarkRead(context.Background(), principal, "m-1")
	require.NoError(t, err)
	require.Equal(t, entity.MessageStatusRead, first.Status)

	// second call is a no-op on status and must not report not-found
	second, err := uc.MarkRead(context.Background(), principal, "m-1")
	require.NoError(t, err)
	require.Equal(t, entity.MessageStatusRead, second.Status)
}

func TestCountUnreadAuthorization(t *testing.T) {
	repo := &mockMessageRepo{unreadCount: 3}
	uc := NewMessageUsecase(repo)
	ctx := context.Background()

	_, err := uc.CountUnread(ctx, &entity.Principal{UserId: "u3"}, "u1")
	require.ErrorIs(t, err, ErrForbidden)

	count, err := uc.CountUnread(ctx, &entity.Principal{UserId: "u1"}, "u1")
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	count, err = uc.CountUnread(ctx, &entity.Principal{UserId: "staff", Role: entity.RoleAdmin}, "u1")
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	_, err = uc.CountUnread(ctx, nil, "u1")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestHistoryAuthorizationAndPaging(t *testing.T) {
	repo := &mockMessageRepo{pageResult: []entity.Message{{Id: "m-1"}}}
	uc := NewMessageUsecase(repo)
	ctx := context.Background()
	conversationId := entity.ConversationID("u1", "u2")

	_, err := uc.History(ctx, &entity.Principal{UserId: "u3"}, conversationId, 1, 50)
	require.ErrorIs(t, err, ErrForbidden)

	messages, err := uc.History(ctx, &entity.Principal{UserId: "u1"}, conversationId, 0, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	// defaults applied for out-of-range paging inputs
	require.Equal(t, 1, repo.pageFilter.Page)
	require.Equal(t, 50, repo.pageFilter.Limit)

	_, err = uc.History(ctx, &entity.Principal{UserId: "staff", Role: entity.RoleAdmin}, conversationId, 2, 10)
	require.NoError(t, err)
	require.Equal(t, 2, repo.pageFilter.Page)
	require.Equal(t, 10, repo.pageFilter.Limit)
}
