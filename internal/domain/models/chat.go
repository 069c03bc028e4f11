// internal/domain/models/chat.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chat is a two-party conversation. ID is derived from the participant IDs
// (see chatstore.ChatID) so a pair of users maps to exactly one Chat.
type Chat struct {
	ID               string            `bson:"_id" json:"id"`
	Participants     []string          `bson:"participants" json:"participants"`
	ParticipantNames map[string]string `bson:"participant_names" json:"participant_names"`
	LastMessage      string            `bson:"last_message" json:"last_message"`
	LastMessageTime  *time.Time        `bson:"last_message_time,omitempty" json:"last_message_time,omitempty"`
	LastSenderID     string            `bson:"last_sender_id,omitempty" json:"last_sender_id,omitempty"`
	CreatedAt        time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `bson:"updated_at" json:"updated_at"`
}

// HasParticipant reports whether userID is one of the chat's two parties.
func (c Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Message belongs to exactly one chat and is never edited except for Read.
type Message struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID     string             `bson:"chat_id" json:"chat_id"`
	SenderID   string             `bson:"sender_id" json:"sender_id"`
	SenderName string             `bson:"sender_name" json:"sender_name"`
	Body       string             `bson:"message" json:"message"`
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp"`
	Read       bool               `bson:"read" json:"read"`
}
