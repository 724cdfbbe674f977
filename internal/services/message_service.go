package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rodrigomacsantos/PieceSwap/internal/db"
	"github.com/rodrigomacsantos/PieceSwap/internal/models"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// MaxMessageLength is the longest accepted message content, in runes.
const MaxMessageLength = 5000

// ErrEmptyMessage is returned when the trimmed message content is empty.
var ErrEmptyMessage = errors.New("message content is empty")

// ErrMessageTooLong is returned when content exceeds MaxMessageLength runes.
var ErrMessageTooLong = fmt.Errorf("message content exceeds %d characters", MaxMessageLength)

// ErrNotParticipant is returned when a user touches a conversation they are
// not part of.
var ErrNotParticipant = errors.New("user is not a participant of this conversation")

// Notifier pushes realtime events to connected users. Implemented by the
// websocket hub; a no-op implementation is fine for workers and tests.
type Notifier interface {
	Notify(userID utils.SixID, event string, payload interface{})
}

// IMessageService defines the interface for conversations and chat messages.
type IMessageService interface {
	EnsureConversation(ctx context.Context, matchID, listingID, userA, userB utils.SixID) (*models.Conversation, error)
	GetConversation(ctx context.Context, conversationID utils.SixID) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID utils.SixID) ([]models.ConversationSummary, error)
	GetMessages(ctx context.Context, conversationID, userID utils.SixID) ([]models.Message, error)
	SendMessage(ctx context.Context, conversationID, senderID utils.SixID, content string) (*models.Message, error)
	MarkAsRead(ctx context.Context, conversationID, userID utils.SixID) (int64, error)
}

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

// messageService implements IMessageService.
type messageService struct {
	db          *mongo.Database
	userService IUserService
	notifier    Notifier
}

// NewMessageService creates a new MessageService. notifier may be nil.
func NewMessageService(db *mongo.Database, userService IUserService, notifier Notifier) IMessageService {
	return &messageService{db: db, userService: userService, notifier: notifier}
}

// EnsureConversation returns the conversation for a match, creating it on
// first call. The unique match_id index makes this idempotent under races.
func (s *messageService) EnsureConversation(ctx context.Context, matchID, listingID, userA, userB utils.SixID) (*models.Conversation, error) {
	collection := s.db.Collection(conversationsCollection)

	var existing models.Conversation
	err := collection.FindOne(ctx, bson.M{"match_id": matchID}).Decode(&existing)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("error finding conversation for match %s: %w", matchID.String(), err)
	}

	now := time.Now().UTC()
	var conversation *models.Conversation
	operation := func() error {
		conversation = &models.Conversation{
			Base:           models.NewBase(),
			ParticipantIDs: []utils.SixID{userA, userB},
			ListingID:      listingID,
			MatchID:        matchID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		_, insertErr := collection.InsertOne(ctx, conversation)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		if db.IsMongoDuplicateKeyError(err) || mongo.IsDuplicateKeyError(err) {
			// Lost the race; the other writer's conversation wins.
			if findErr := collection.FindOne(ctx, bson.M{"match_id": matchID}).Decode(&existing); findErr == nil {
				return &existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create conversation for match %s: %w", matchID.String(), err)
	}
	return conversation, nil
}

// GetConversation fetches a conversation by id.
func (s *messageService) GetConversation(ctx context.Context, conversationID utils.SixID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.db.Collection(conversationsCollection).FindOne(ctx, bson.M{"_id": conversationID}).Decode(&conversation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding conversation %s: %w", conversationID.String(), err)
	}
	return &conversation, nil
}

// ListConversations builds the inbox for a user: most recently active first,
// each with the other participant's profile, the listing, the last message
// and the unread count. Profiles are batch-fetched in one query.
func (s *messageService) ListConversations(ctx context.Context, userID utils.SixID) ([]models.ConversationSummary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := s.db.Collection(conversationsCollection).Find(ctx, bson.M{"participant_ids": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations for user %s: %w", userID.String(), err)
	}
	defer cursor.Close(ctx)

	var conversations []models.Conversation
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}

	otherIDs := make([]utils.SixID, 0, len(conversations))
	for i := range conversations {
		otherIDs = append(otherIDs, conversations[i].OtherParticipant(userID))
	}
	profiles, err := s.userService.GetProfiles(ctx, otherIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch participant profiles: %w", err)
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for i := range conversations {
		c := conversations[i]
		summary := models.ConversationSummary{
			Conversation: c,
			Other:        profiles[c.OtherParticipant(userID)],
		}

		var listing models.Listing
		if err := s.db.Collection(listingsCollection).FindOne(ctx, bson.M{"_id": c.ListingID}).Decode(&listing); err == nil {
			summary.Listing = &listing
		}

		var last models.Message
		err := s.db.Collection(messagesCollection).FindOne(ctx,
			bson.M{"conversation_id": c.ID},
			options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
		).Decode(&last)
		if err == nil {
			summary.LastMessage = &last
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to fetch last message for conversation %s: %w", c.ID.String(), err)
		}

		unread, err := s.db.Collection(messagesCollection).CountDocuments(ctx, bson.M{
			"conversation_id": c.ID,
			"sender_id":       bson.M{"$ne": userID},
			"read":            false,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count unread messages for conversation %s: %w", c.ID.String(), err)
		}
		summary.UnreadCount = int(unread)

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetMessages returns all messages of a conversation in insertion order.
// Only participants may read.
func (s *messageService) GetMessages(ctx context.Context, conversationID, userID utils.SixID) ([]models.Message, error) {
	conversation, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(messagesCollection).Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for conversation %s: %w", conversationID.String(), err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}

// SendMessage validates, stores and pushes a chat message. Content is
// trimmed; 1..MaxMessageLength runes after trimming.
func (s *messageService) SendMessage(ctx context.Context, conversationID, senderID utils.SixID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	conversation, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}

	now := time.Now().UTC()
	message := &models.Message{
		Base:           models.NewBase(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Read:           false,
		CreatedAt:      now,
	}

	operation := func() error {
		_, insertErr := s.db.Collection(messagesCollection).InsertOne(ctx, message)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert message in conversation %s: %w", conversationID.String(), err)
	}

	_, err = s.db.Collection(conversationsCollection).UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"updated_at": now}},
	)
	if err != nil {
		return nil, fmt.Errorf("message stored but failed to bump conversation %s: %w", conversationID.String(), err)
	}

	if s.notifier != nil {
		s.notifier.Notify(conversation.OtherParticipant(senderID), "message", message)
	}
	return message, nil
}

// MarkAsRead flags all messages from the other participant as read. The
// reader's own messages are untouched. Returns the number of flipped rows.
func (s *messageService) MarkAsRead(ctx context.Context, conversationID, userID utils.SixID) (int64, error) {
	conversation, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if !conversation.HasParticipant(userID) {
		return 0, ErrNotParticipant
	}

	filter := bson.M{
		"conversation_id": conversationID,
		"sender_id":       bson.M{"$ne": userID},
		"read":            false,
	}
	result, err := s.db.Collection(messagesCollection).UpdateMany(ctx, filter, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read in conversation %s: %w", conversationID.String(), err)
	}
	return result.ModifiedCount, nil
}
