package models

import (
	"time"

	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// Profile is the public-facing side of a user: display data, wallet balance,
// reputation and last known position.
type Profile struct {
	Base         `bson:",inline"`
	UserID       utils.SixID `bson:"user_id" json:"user_id"`
	Username     string      `bson:"username" json:"username"`
	FullName     string      `bson:"full_name" json:"full_name"`
	AvatarURL    string      `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	Bio          string      `bson:"bio,omitempty" json:"bio,omitempty"`
	Location     string      `bson:"location,omitempty" json:"location,omitempty"` // Resolved city name
	GeoPoint     *GeoJSON    `bson:"geo_point,omitempty" json:"geo_point,omitempty"`
	SwapCoins    int         `bson:"swap_coins" json:"swap_coins"`
	Rating       float64     `bson:"rating" json:"rating"`
	TotalRatings int         `bson:"total_ratings" json:"total_ratings"`
	CreatedAt    time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `bson:"updated_at" json:"updated_at"`
}
