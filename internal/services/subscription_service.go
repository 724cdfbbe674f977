package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rodrigomacsantos/PieceSwap/internal/config"
	"github.com/rodrigomacsantos/PieceSwap/internal/db"
	"github.com/rodrigomacsantos/PieceSwap/internal/models"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// ErrSwipeLimitReached is returned when a free-tier user has used up the
// day's swipes.
var ErrSwipeLimitReached = errors.New("daily swipe limit reached")

// ErrSuperlikeLimitReached is returned when a premium user has used up the
// day's superlikes.
var ErrSuperlikeLimitReached = errors.New("daily superlike limit reached")

// ErrPremiumRequired is returned when a free-tier user attempts a
// premium-only action.
var ErrPremiumRequired = errors.New("premium subscription required")

// LimitsStatus reports today's remaining allowances for a user.
type LimitsStatus struct {
	Plan                string `json:"plan"` // "free" or "premium"
	SwipesUsed          int    `json:"swipes_used"`
	SwipesRemaining     *int   `json:"swipes_remaining,omitempty"` // nil = unlimited
	SuperlikesUsed      int    `json:"superlikes_used"`
	SuperlikesRemaining int    `json:"superlikes_remaining"`
}

// ISubscriptionService defines the interface for plan and daily-limit operations.
type ISubscriptionService interface {
	GetSubscription(ctx context.Context, userID utils.SixID) (*models.Subscription, error)
	IsPremium(ctx context.Context, userID utils.SixID) (bool, error)
	Subscribe(ctx context.Context, userID utils.SixID) (*models.Subscription, error)
	Cancel(ctx context.Context, userID utils.SixID) error
	ConsumeSwipe(ctx context.Context, userID utils.SixID) error
	ConsumeSuperlike(ctx context.Context, userID utils.SixID) error
	RefundSwipe(ctx context.Context, userID utils.SixID) error
	RefundSuperlike(ctx context.Context, userID utils.SixID) error
	GetLimits(ctx context.Context, userID utils.SixID) (*LimitsStatus, error)
	ExpireLapsed(ctx context.Context) (int64, error)
}

const (
	subscriptionsCollection   = "subscriptions"
	dailySwipesCollection     = "daily_swipes"
	dailySuperlikesCollection = "daily_superlikes"
)

// subscriptionService implements ISubscriptionService.
type subscriptionService struct {
	db  *mongo.Database
	cfg *config.Config
	now func() time.Time // Injectable clock for tests
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(db *mongo.Database, cfg *config.Config) ISubscriptionService {
	return &subscriptionService{db: db, cfg: cfg, now: time.Now}
}

// GetSubscription fetches the user's subscription row. Users without one are
// on the implicit free plan; a synthetic active free subscription is returned.
func (s *subscriptionService) GetSubscription(ctx context.Context, userID utils.SixID) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.Collection(subscriptionsCollection).FindOne(ctx, bson.M{"user_id": userID}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &models.Subscription{
				UserID: userID,
				Plan:   models.PlanFree,
				Status: models.SubscriptionActive,
			}, nil
		}
		return nil, fmt.Errorf("error finding subscription for user %s: %w", userID.String(), err)
	}
	return &sub, nil
}

// IsPremium reports whether the user currently has premium entitlements.
// An expired period counts as free even before the expiry sweep has run.
func (s *subscriptionService) IsPremium(ctx context.Context, userID utils.SixID) (bool, error) {
	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return false, err
	}
	return sub.IsPremiumAt(s.now().UTC()), nil
}

// Subscribe upserts the user onto premium for one period. Payment is simulated.
func (s *subscriptionService) Subscribe(ctx context.Context, userID utils.SixID) (*models.Subscription, error) {
	now := s.now().UTC()
	expires := now.AddDate(0, 0, s.cfg.PremiumPeriodDays)

	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set": bson.M{
			"plan":       models.PlanPremium,
			"status":     models.SubscriptionActive,
			"price_eur":  s.cfg.PremiumPriceEUR,
			"started_at": now,
			"expires_at": expires,
		},
		"$setOnInsert": bson.M{
			"_id":     utils.NewSixID(),
			"user_id": userID,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var sub models.Subscription
	operation := func() error {
		return s.db.Collection(subscriptionsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&sub)
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to subscribe user %s: %w", userID.String(), err)
	}

	log.Printf("User %s subscribed to premium until %s", userID.String(), expires.Format(time.RFC3339))
	return &sub, nil
}

// Cancel marks the subscription cancelled. Entitlements stop immediately.
func (s *subscriptionService) Cancel(ctx context.Context, userID utils.SixID) error {
	filter := bson.M{"user_id": userID, "plan": models.PlanPremium, "status": models.SubscriptionActive}
	update := bson.M{"$set": bson.M{"status": models.SubscriptionCancelled}}

	result, err := s.db.Collection(subscriptionsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to cancel subscription for user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ConsumeSwipe spends one of today's swipes. Premium users are unlimited (the
// counter still increments for stats); free users are capped. The cap is
// enforced in the upsert filter itself so concurrent swipes cannot overshoot:
// when today's row is at the limit the filter matches nothing, the upsert
// attempts a fresh insert, and the unique (user_id, swipe_date) index rejects it.
func (s *subscriptionService) ConsumeSwipe(ctx context.Context, userID utils.SixID) error {
	premium, err := s.IsPremium(ctx, userID)
	if err != nil {
		return err
	}

	today := models.DateKey(s.now())
	filter := bson.M{"user_id": userID, "swipe_date": today}
	if !premium {
		filter["swipe_count"] = bson.M{"$lt": s.cfg.FreeSwipeLimit}
	}
	update := bson.M{
		"$inc": bson.M{"swipe_count": 1},
		"$setOnInsert": bson.M{
			"_id":        utils.NewSixID(),
			"user_id":    userID,
			"swipe_date": today,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err = s.db.Collection(dailySwipesCollection).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) || mongo.IsDuplicateKeyError(err) {
			return ErrSwipeLimitReached
		}
		return fmt.Errorf("failed to count swipe for user %s: %w", userID.String(), err)
	}
	return nil
}

// ConsumeSuperlike spends one of today's superlikes. Premium only.
func (s *subscriptionService) ConsumeSuperlike(ctx context.Context, userID utils.SixID) error {
	premium, err := s.IsPremium(ctx, userID)
	if err != nil {
		return err
	}
	if !premium {
		return ErrPremiumRequired
	}

	today := models.DateKey(s.now())
	filter := bson.M{
		"user_id":         userID,
		"superlike_date":  today,
		"superlike_count": bson.M{"$lt": s.cfg.PremiumSuperlikeLimit},
	}
	update := bson.M{
		"$inc": bson.M{"superlike_count": 1},
		"$setOnInsert": bson.M{
			"_id":            utils.NewSixID(),
			"user_id":        userID,
			"superlike_date": today,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err = s.db.Collection(dailySuperlikesCollection).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) || mongo.IsDuplicateKeyError(err) {
			return ErrSuperlikeLimitReached
		}
		return fmt.Errorf("failed to count superlike for user %s: %w", userID.String(), err)
	}
	return nil
}

// RefundSwipe returns one of today's swipes. Compensates a swipe whose write
// lost a duplicate-key race after the allowance was already spent. The $gt
// guard keeps the counter from going negative.
func (s *subscriptionService) RefundSwipe(ctx context.Context, userID utils.SixID) error {
	today := models.DateKey(s.now())
	filter := bson.M{"user_id": userID, "swipe_date": today, "swipe_count": bson.M{"$gt": 0}}
	update := bson.M{"$inc": bson.M{"swipe_count": -1}}

	if _, err := s.db.Collection(dailySwipesCollection).UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to refund swipe for user %s: %w", userID.String(), err)
	}
	return nil
}

// RefundSuperlike returns one of today's superlikes.
func (s *subscriptionService) RefundSuperlike(ctx context.Context, userID utils.SixID) error {
	today := models.DateKey(s.now())
	filter := bson.M{"user_id": userID, "superlike_date": today, "superlike_count": bson.M{"$gt": 0}}
	update := bson.M{"$inc": bson.M{"superlike_count": -1}}

	if _, err := s.db.Collection(dailySuperlikesCollection).UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to refund superlike for user %s: %w", userID.String(), err)
	}
	return nil
}

// GetLimits reports today's usage and remaining allowances.
func (s *subscriptionService) GetLimits(ctx context.Context, userID utils.SixID) (*LimitsStatus, error) {
	premium, err := s.IsPremium(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := models.DateKey(s.now())

	var swipes models.DailySwipes
	err = s.db.Collection(dailySwipesCollection).FindOne(ctx, bson.M{"user_id": userID, "swipe_date": today}).Decode(&swipes)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to read daily swipes for user %s: %w", userID.String(), err)
	}

	var superlikes models.DailySuperlikes
	err = s.db.Collection(dailySuperlikesCollection).FindOne(ctx, bson.M{"user_id": userID, "superlike_date": today}).Decode(&superlikes)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to read daily superlikes for user %s: %w", userID.String(), err)
	}

	status := &LimitsStatus{
		Plan:           string(models.PlanFree),
		SwipesUsed:     swipes.SwipeCount,
		SuperlikesUsed: superlikes.SuperlikeCount,
	}
	if premium {
		status.Plan = string(models.PlanPremium)
		remaining := s.cfg.PremiumSuperlikeLimit - superlikes.SuperlikeCount
		if remaining < 0 {
			remaining = 0
		}
		status.SuperlikesRemaining = remaining
	} else {
		remaining := s.cfg.FreeSwipeLimit - swipes.SwipeCount
		if remaining < 0 {
			remaining = 0
		}
		status.SwipesRemaining = &remaining
		status.SuperlikesRemaining = 0
	}
	return status, nil
}

// ExpireLapsed flips active premium subscriptions whose period has ended to
// expired. Run periodically from the background worker.
func (s *subscriptionService) ExpireLapsed(ctx context.Context) (int64, error) {
	filter := bson.M{
		"plan":       models.PlanPremium,
		"status":     models.SubscriptionActive,
		"expires_at": bson.M{"$lte": s.now().UTC()},
	}
	update := bson.M{"$set": bson.M{"status": models.SubscriptionExpired}}

	result, err := s.db.Collection(subscriptionsCollection).UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to expire lapsed subscriptions: %w", err)
	}
	if result.ModifiedCount > 0 {
		log.Printf("Expired %d lapsed premium subscriptions", result.ModifiedCount)
	}
	return result.ModifiedCount, nil
}
