package models

import (
	"time"

	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// ListingCondition describes the physical state of the bricks on offer.
type ListingCondition string

const (
	ConditionNew     ListingCondition = "new"
	ConditionLikeNew ListingCondition = "like-new"
	ConditionUsed    ListingCondition = "used"
)

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusSold    ListingStatus = "sold"
	ListingStatusRemoved ListingStatus = "removed"
)

// Listing represents a set or lot offered on the marketplace.
type Listing struct {
	Base           `bson:",inline"`
	UserID         utils.SixID      `bson:"user_id" json:"user_id"`
	Title          string           `bson:"title" json:"title"`
	Description    string           `bson:"description" json:"description"`
	Category       string           `bson:"category" json:"category"`
	Condition      ListingCondition `bson:"condition" json:"condition"`
	SetNumber      string           `bson:"set_number,omitempty" json:"set_number,omitempty"`
	Quantity       int              `bson:"quantity" json:"quantity"`
	PriceEUR       *float64         `bson:"price_eur,omitempty" json:"price_eur,omitempty"`
	PriceSwapCoins *int             `bson:"price_swap_coins,omitempty" json:"price_swap_coins,omitempty"`
	AcceptsTrades  bool             `bson:"accepts_trades" json:"accepts_trades"`
	Images         []string         `bson:"images" json:"images"` // S3 keys
	Status         ListingStatus    `bson:"status" json:"status"`
	IsHighlighted  bool             `bson:"is_highlighted" json:"is_highlighted"`
	PriorityBoost  bool             `bson:"priority_boost" json:"priority_boost"`
	CreatedAt      time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `bson:"updated_at" json:"updated_at"`
	Deleted        bool             `bson:"deleted" json:"-"` // Soft delete flag
}

// ListingWithSeller pairs a listing with its seller's profile for feed and
// detail responses.
type ListingWithSeller struct {
	Listing Listing  `json:"listing"`
	Seller  *Profile `json:"seller,omitempty"`
}
