package models

import (
	"time"

	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// Conversation links the two matched users to a message thread. Participants
// are embedded as a two-element array rather than a join collection.
type Conversation struct {
	Base           `bson:",inline"`
	ParticipantIDs []utils.SixID `bson:"participant_ids" json:"participant_ids"`
	ListingID      utils.SixID   `bson:"listing_id" json:"listing_id"`
	MatchID        utils.SixID   `bson:"match_id" json:"match_id"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
}

// OtherParticipant returns the first participant that is not userID.
func (c *Conversation) OtherParticipant(userID utils.SixID) utils.SixID {
	for _, p := range c.ParticipantIDs {
		if p != userID {
			return p
		}
	}
	return utils.SixID{}
}

// HasParticipant reports whether userID is part of the conversation.
func (c *Conversation) HasParticipant(userID utils.SixID) bool {
	for _, p := range c.ParticipantIDs {
		if p == userID {
			return true
		}
	}
	return false
}

// Message is a single chat message inside a conversation.
type Message struct {
	Base           `bson:",inline"`
	ConversationID utils.SixID `bson:"conversation_id" json:"conversation_id"`
	SenderID       utils.SixID `bson:"sender_id" json:"sender_id"`
	Content        string      `bson:"content" json:"content"`
	Read           bool        `bson:"read" json:"read"`
	CreatedAt      time.Time   `bson:"created_at" json:"created_at"`
}

// ConversationSummary is the inbox view of a conversation: the other side's
// profile, the listing being discussed, the last message and the unread count.
type ConversationSummary struct {
	Conversation Conversation `json:"conversation"`
	Other        *Profile     `json:"other,omitempty"`
	Listing      *Listing     `json:"listing,omitempty"`
	LastMessage  *Message     `json:"last_message,omitempty"`
	UnreadCount  int          `json:"unread_count"`
}
