package models

import (
	"time"

	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// SubscriptionPlan is the tier a user is on.
type SubscriptionPlan string

const (
	PlanFree    SubscriptionPlan = "free"
	PlanPremium SubscriptionPlan = "premium"
)

// SubscriptionStatus is the state of the subscription row.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// Subscription holds a user's plan. At most one row per user.
type Subscription struct {
	Base      `bson:",inline"`
	UserID    utils.SixID        `bson:"user_id" json:"user_id"`
	Plan      SubscriptionPlan   `bson:"plan" json:"plan"`
	Status    SubscriptionStatus `bson:"status" json:"status"`
	PriceEUR  float64            `bson:"price_eur" json:"price_eur"`
	StartedAt time.Time          `bson:"started_at" json:"started_at"`
	ExpiresAt *time.Time         `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
}

// IsPremiumAt reports whether the subscription grants premium features at t.
// Premium requires plan=premium, status=active and an unexpired period.
func (s *Subscription) IsPremiumAt(t time.Time) bool {
	if s == nil || s.Plan != PlanPremium || s.Status != SubscriptionActive {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(t)
}

// DateKey formats t as the UTC calendar-date key used by the daily counters.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DailySwipes counts swipes per user per UTC calendar day. Maintained with
// atomic $inc upserts; unique on (user_id, swipe_date).
type DailySwipes struct {
	Base       `bson:",inline"`
	UserID     utils.SixID `bson:"user_id" json:"user_id"`
	SwipeDate  string      `bson:"swipe_date" json:"swipe_date"` // "2006-01-02"
	SwipeCount int         `bson:"swipe_count" json:"swipe_count"`
}

// DailySuperlikes counts superlikes per user per UTC calendar day.
type DailySuperlikes struct {
	Base           `bson:",inline"`
	UserID         utils.SixID `bson:"user_id" json:"user_id"`
	SuperlikeDate  string      `bson:"superlike_date" json:"superlike_date"`
	SuperlikeCount int         `bson:"superlike_count" json:"superlike_count"`
}
