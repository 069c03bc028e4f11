// internal/app/store/chats/chatstore.go
package chatstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/donorlink/internal/app/system/htmlsanitize"
	"github.com/dalemusser/donorlink/internal/app/system/live"
	"github.com/dalemusser/donorlink/internal/app/system/normalize"
	"github.com/dalemusser/donorlink/internal/app/system/txn"
	"github.com/dalemusser/donorlink/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	ErrNotFound       = errors.New("chat not found")
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrNotParticipant = errors.New("user is not a participant in this chat")
	ErrSameUser       = errors.New("cannot open a chat with yourself")
	ErrMissingUser    = errors.New("both participant ids are required")
)

// ChatID returns the identifier of the conversation between a and b. The
// two ids are ordered before joining, so ChatID(a, b) == ChatID(b, a).
func ChatID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + "_" + ids[1]
}

type Store struct {
	db       *mongo.Database
	chats    *mongo.Collection
	messages *mongo.Collection
	hub      *live.Hub
	log      *zap.Logger
}

// New returns a Store. hub may be nil.
func New(db *mongo.Database, hub *live.Hub, logger *zap.Logger) *Store {
	return &Store{
		db:       db,
		chats:    db.Collection("chats"),
		messages: db.Collection("messages"),
		hub:      hub,
		log:      logger,
	}
}

// CreateOrGetChat makes sure the chat between userA and userB exists and
// returns its id. Display names are merged into the existing record; an
// empty name leaves the stored one alone. Other fields are only written
// when the chat is first created.
func (s *Store) CreateOrGetChat(ctx context.Context, userA, userB, nameB, nameA string) (string, error) {
	userA, userB = strings.TrimSpace(userA), strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return "", ErrMissingUser
	}
	if userA == userB {
		return "", ErrSameUser
	}

	id := ChatID(userA, userB)
	participants := []string{userA, userB}
	sort.Strings(participants)
	now := time.Now().UTC()

	set := bson.M{"participants": participants}
	if n := normalize.Name(nameA); n != "" {
		set["participant_names."+userA] = n
	}
	if n := normalize.Name(nameB); n != "" {
		set["participant_names."+userB] = n
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"last_message": "",
			"created_at":   now,
			"updated_at":   now,
		},
	}

	res, err := s.chats.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil && wafflemongo.IsDup(err) {
		// Lost an insert race with the other participant; the chat exists now.
		res, err = s.chats.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	}
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}
	if res.UpsertedCount > 0 || res.ModifiedCount > 0 {
		s.notifyParticipants(participants)
	}
	return id, nil
}

// GetChat loads a chat by id.
func (s *Store) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var c models.Chat
	if err := s.chats.FindOne(ctx, bson.M{"_id": chatID}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if c.ParticipantNames == nil {
		c.ParticipantNames = map[string]string{}
	}
	return &c, nil
}

// GetChatFor loads a chat and checks that userID takes part in it.
func (s *Store) GetChatFor(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	c, err := s.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return c, nil
}

// SendMessage appends a message and updates the chat preview in one
// transaction. Blank bodies are rejected before anything is read or
// written. The body is stored as plain text.
func (s *Store) SendMessage(ctx context.Context, chatID, senderID, senderName, body string) (models.Message, error) {
	text := htmlsanitize.PlainText(body)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}

	c, err := s.GetChatFor(ctx, chatID, senderID)
	if err != nil {
		return models.Message{}, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	msg := models.Message{
		ID:         primitive.NewObjectID(),
		ChatID:     chatID,
		SenderID:   senderID,
		SenderName: normalize.Name(senderName),
		Body:       text,
		Timestamp:  now,
		Read:       false,
	}

	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if _, err := s.messages.InsertOne(ctx, msg); err != nil {
			return err
		}
		_, err := s.chats.UpdateOne(ctx, bson.M{"_id": chatID}, bson.M{"$set": bson.M{
			"last_message":      text,
			"last_message_time": now,
			"last_sender_id":    senderID,
			"updated_at":        now,
		}})
		return err
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}

	s.hub.Notify(live.Key(live.TopicMessages, chatID))
	s.notifyParticipants(c.Participants)
	return msg, nil
}

// ListMessages returns a chat's messages in send order.
func (s *Store) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.messages.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkMessagesAsRead flags every unread message in the chat that was sent
// by someone other than readerID. Failures are logged, not returned; read
// receipts are best effort.
func (s *Store) MarkMessagesAsRead(ctx context.Context, chatID, readerID string) {
	res, err := s.messages.UpdateMany(ctx,
		bson.M{"chat_id": chatID, "sender_id": bson.M{"$ne": readerID}, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		s.log.Warn("mark messages as read failed",
			zap.String("chat_id", chatID),
			zap.String("reader_id", readerID),
			zap.Error(err))
		return
	}
	if res.ModifiedCount > 0 {
		s.hub.Notify(live.Key(live.TopicMessages, chatID))
	}
}

// ListUserChats returns the chats userID takes part in, most recently
// active first.
func (s *Store) ListUserChats(ctx context.Context, userID string) ([]models.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.chats.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Chat{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubscribeMessages delivers the chat's full message list now and after
// every change to it. Subscriptions are independent; closing one does not
// affect others on the same chat.
func (s *Store) SubscribeMessages(chatID string, onUpdate func([]models.Message), onError func(error)) *live.Subscription {
	return live.Subscribe(s.hub, []string{live.Key(live.TopicMessages, chatID)},
		func(ctx context.Context) ([]models.Message, error) {
			return s.ListMessages(ctx, chatID)
		}, onUpdate, onError)
}

// SubscribeUserChats delivers userID's chat list now and after every change
// to one of their chats.
func (s *Store) SubscribeUserChats(userID string, onUpdate func([]models.Chat), onError func(error)) *live.Subscription {
	return live.Subscribe(s.hub, []string{live.Key(live.TopicChats, userID)},
		func(ctx context.Context) ([]models.Chat, error) {
			return s.ListUserChats(ctx, userID)
		}, onUpdate, onError)
}

func (s *Store) notifyParticipants(participants []string) {
	topics := make([]string, 0, len(participants))
	for _, p := range participants {
		topics = append(topics, live.Key(live.TopicChats, p))
	}
	s.hub.Notify(topics...)
}
