package repository

import (
	"context"
	"errors"
	"time"

	"careline/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrMessageNotFound = errors.New("message not found")

type MessageRepository interface {
	Create(ctx context.Context, message entity.Message) (entity.Message, error)
	Get(ctx context.Context, messageId string) (entity.Message, error)
	GetByConversation(ctx context.Context, filter entity.MessagePageFilter) ([]entity.Message, error)
	MarkRead(ctx context.Context, messageId string) (entity.Message, error)
	CountUnread(ctx context.Context, userId string) (int64, error)
	AggregateConversations(ctx context.Context, userId string) ([]entity.Conversation, error)
	EnsureIndexes(ctx context.Context) error
}

type messageRepository struct {
	db *mongo.Database
}

func NewMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

func (r *messageRepository) collection() *mongo.Collection {
	return r.db.Collection("messages")
}

// Create persists a message with a generated id and server-side createdAt.
// The createdAt is the sole ordering key for the conversation.
func (r *messageRepository) Create(ctx context.Context, message entity.Message) (entity.Message, error) {
	message.Id = uuid.New().String()
	message.CreatedAt = time.Now().UTC()
	message.Status = entity.MessageStatusSent
	message.ReadAt = nil

	_, err := r.collection().InsertOne(ctx, message)
	if err != nil {
		return entity.Message{}, err
	}

	return message, nil
}

func (r *messageRepository) Get(ctx context.Context, messageId string) (entity.Message, error) {
	filter := bson.M{"_id": messageId}

	var message entity.Message
	err := r.collection().FindOne(ctx, filter).Decode(&message)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.Message{}, ErrMessageNotFound
		}
		return entity.Message{}, err
	}

	return message, nil
}

// GetByConversation returns one page of a conversation, newest first.
// Callers reverse for chronological display.
func (r *messageRepository) GetByConversation(ctx context.Context, filter entity.MessagePageFilter) ([]entity.Message, error) {
	bsonFilter := bson.M{"conversationId": filter.ConversationId}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((filter.Page - 1) * filter.Limit)).
		SetLimit(int64(filter.Limit))

	cursor, err := r.collection().Find(ctx, bsonFilter, opts)
	if err != nil {
		return nil, err
	}

	var messages []entity.Message
	err = cursor.All(ctx, &messages)
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// MarkRead advances the message to read and stamps readAt. Marking an
// already-read message refreshes readAt only; status never regresses.
func (r *messageRepository) MarkRead(ctx context.Context, messageId string) (entity.Message, error) {
	filter := bson.M{"_id": messageId}
	update := bson.M{
		"$set": bson.M{
			"status": entity.MessageStatusRead,
			"readAt": time.Now().UTC(),
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var message entity.Message
	err := r.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&message)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.Message{}, ErrMessageNotFound
		}
		return entity.Message{}, err
	}

	return message, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, userId string) (int64, error) {
	filter := bson.M{
		"recipientId": userId,
		"status":      bson.M{"$ne": entity.MessageStatusRead},
	}

	return r.collection().CountDocuments(ctx, filter)
}

// AggregateConversations derives the conversation list for a user straight
// from the message log: newest message per conversationId plus the viewer's
// unread count, ordered by that newest message. Read-only by construction.
func (r *messageRepository) AggregateConversations(ctx context.Context, userId string) ([]entity.Conversation, error) {
	matchStage := bson.D{{Key: "$match", Value: bson.D{
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "senderId", Value: userId}},
			bson.D{{Key: "recipientId", Value: userId}},
		}},
	}}}
	sortStage := bson.D{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}}
	groupStage := bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: "$conversationId"},
		{Key: "lastMessage", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
		{Key: "unreadCount", Value: bson.D{{Key: "$sum", Value: bson.D{
			{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "$eq", Value: bson.A{"$recipientId", userId}}},
					bson.D{{Key: "$ne", Value: bson.A{"$status", entity.MessageStatusRead}}},
				}}},
				1,
				0,
			}},
		}}}},
	}}}
	sortByLatestStage := bson.D{{Key: "$sort", Value: bson.D{{Key: "lastMessage.createdAt", Value: -1}}}}

	cursor, err := r.collection().Aggregate(ctx, mongo.Pipeline{matchStage, sortStage, groupStage, sortByLatestStage})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var conversations []entity.Conversation
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, err
	}

	return conversations, nil
}

// EnsureIndexes creates the compound indexes the read paths depend on:
// conversation history scans, sender history scans, and unread counting.
func (r *messageRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "status", Value: 1}}},
	}

	_, err := r.collection().Indexes().CreateMany(ctx, indexes)
	return err
}
