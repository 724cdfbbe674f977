package models

import (
	"bytes"
	"time"

	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// Match records a reciprocal like between two users. UserOneID/UserTwoID are
// stored in canonical (byte-wise ascending) order so the unique pair index
// holds regardless of who swiped last. Both listings of the trade are kept:
// the one whose like completed the match and the one the earlier like was on.
type Match struct {
	Base                `bson:",inline"`
	UserOneID           utils.SixID `bson:"user_one_id" json:"user_one_id"`
	UserTwoID           utils.SixID `bson:"user_two_id" json:"user_two_id"`
	ListingID           utils.SixID `bson:"listing_id" json:"listing_id"`                       // The listing whose like completed the match
	ReciprocalListingID utils.SixID `bson:"reciprocal_listing_id" json:"reciprocal_listing_id"` // The listing the earlier like was on
	CreatedAt           time.Time   `bson:"created_at" json:"created_at"`
}

// OrderUserPair returns the two user ids in canonical order.
func OrderUserPair(a, b utils.SixID) (utils.SixID, utils.SixID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}
