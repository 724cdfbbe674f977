package models

import (
	"time"

	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// SwipeActionType is the direction of a swipe.
type SwipeActionType string

const (
	SwipeLike    SwipeActionType = "like"
	SwipeDislike SwipeActionType = "dislike"
)

// SwipeAction is an append-only record of a user swiping on a listing.
// A unique (user_id, listing_id) index keeps the log one row per pair.
type SwipeAction struct {
	Base      `bson:",inline"`
	UserID    utils.SixID     `bson:"user_id" json:"user_id"`
	ListingID utils.SixID     `bson:"listing_id" json:"listing_id"`
	Action    SwipeActionType `bson:"action" json:"action"`
	CreatedAt time.Time       `bson:"created_at" json:"created_at"`
}

// Superlike is an audit row for a premium user's superlike.
type Superlike struct {
	Base      `bson:",inline"`
	UserID    utils.SixID `bson:"user_id" json:"user_id"`
	ListingID utils.SixID `bson:"listing_id" json:"listing_id"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}
