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

// ErrAlreadySwiped is returned when the user has already swiped on the listing.
var ErrAlreadySwiped = errors.New("already swiped on this listing")

// ErrOwnListing is returned when a user swipes on their own listing.
var ErrOwnListing = errors.New("cannot swipe on own listing")

// MatchResult is what a swipe returns: whether a reciprocal like completed a
// match and, if so, the material for the match screen.
type MatchResult struct {
	Matched        bool                `json:"matched"`
	Match          *models.Match       `json:"match,omitempty"`
	Listing        *models.Listing     `json:"listing,omitempty"` // The listing that was liked
	Owner          *models.Profile     `json:"owner,omitempty"`   // Its owner
	ConversationID *utils.SixID        `json:"conversation_id,omitempty"`
}

// ISwapService defines the interface for the swipe feed and match engine.
type ISwapService interface {
	GetSwipeFeed(ctx context.Context, userID utils.SixID, limit int) ([]models.ListingWithSeller, error)
	RecordSwipe(ctx context.Context, userID, listingID utils.SixID, action models.SwipeActionType) (*MatchResult, error)
	UseSuperlike(ctx context.Context, userID, listingID utils.SixID) (*MatchResult, error)
}

const (
	swipeActionsCollection = "swipe_actions"
	superlikesCollection   = "superlikes"
	matchesCollection      = "matches"
)

// swapService implements ISwapService.
type swapService struct {
	db              *mongo.Database
	cfg             *config.Config
	userService     IUserService
	subscriptionSvc ISubscriptionService
	messageSvc      IMessageService
}

// NewSwapService creates a new SwapService.
func NewSwapService(db *mongo.Database, cfg *config.Config, userService IUserService, subscriptionSvc ISubscriptionService, messageSvc IMessageService) ISwapService {
	return &swapService{
		db:              db,
		cfg:             cfg,
		userService:     userService,
		subscriptionSvc: subscriptionSvc,
		messageSvc:      messageSvc,
	}
}

// GetSwipeFeed returns tradeable listings the user has not swiped on yet,
// excluding their own, newest first with sellers attached.
func (s *swapService) GetSwipeFeed(ctx context.Context, userID utils.SixID, limit int) ([]models.ListingWithSeller, error) {
	swipedIDs, err := s.swipedListingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	filter := bson.M{
		"status":         models.ListingStatusActive,
		"accepts_trades": true,
		"deleted":        false,
		"user_id":        bson.M{"$ne": userID},
	}
	if len(swipedIDs) > 0 {
		filter["_id"] = bson.M{"$nin": swipedIDs}
	}

	if limit <= 0 || limit > 50 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "is_highlighted", Value: -1}, {Key: "priority_boost", Value: -1}, {Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(listingsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query swipe feed for user %s: %w", userID.String(), err)
	}
	defer cursor.Close(ctx)

	var listings []models.Listing
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode swipe feed: %w", err)
	}

	// Batch seller fetch, one round trip for the whole feed.
	sellerIDs := make([]utils.SixID, 0, len(listings))
	seen := make(map[utils.SixID]bool, len(listings))
	for _, l := range listings {
		if !seen[l.UserID] {
			seen[l.UserID] = true
			sellerIDs = append(sellerIDs, l.UserID)
		}
	}
	profiles, err := s.userService.GetProfiles(ctx, sellerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed seller profiles: %w", err)
	}

	feed := make([]models.ListingWithSeller, len(listings))
	for i, l := range listings {
		feed[i] = models.ListingWithSeller{Listing: l, Seller: profiles[l.UserID]}
	}
	return feed, nil
}

// swipedListingIDs returns the ids of all listings the user has swiped on.
func (s *swapService) swipedListingIDs(ctx context.Context, userID utils.SixID) ([]utils.SixID, error) {
	opts := options.Find().SetProjection(bson.M{"listing_id": 1})
	cursor, err := s.db.Collection(swipeActionsCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query swipes for user %s: %w", userID.String(), err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ListingID utils.SixID `bson:"listing_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode swiped listing ids: %w", err)
	}

	ids := make([]utils.SixID, len(rows))
	for i, r := range rows {
		ids[i] = r.ListingID
	}
	return ids, nil
}

// RecordSwipe applies a like/dislike. The target is validated and the daily
// allowance spent before anything is written; a rejected swipe inserts no row.
// A like then runs the reciprocal match check.
func (s *swapService) RecordSwipe(ctx context.Context, userID, listingID utils.SixID, action models.SwipeActionType) (*MatchResult, error) {
	switch action {
	case models.SwipeLike, models.SwipeDislike:
	default:
		return nil, fmt.Errorf("invalid swipe action %q", action)
	}

	listing, err := s.validateSwipeTarget(ctx, userID, listingID)
	if err != nil {
		return nil, err
	}
	return s.applySwipe(ctx, userID, listing, action)
}

// UseSuperlike validates the target, spends the premium superlike allowance,
// records the audit row and applies the swipe as a like. Validation runs
// first so a rejected superlike costs nothing.
func (s *swapService) UseSuperlike(ctx context.Context, userID, listingID utils.SixID) (*MatchResult, error) {
	listing, err := s.validateSwipeTarget(ctx, userID, listingID)
	if err != nil {
		return nil, err
	}

	if err := s.subscriptionSvc.ConsumeSuperlike(ctx, userID); err != nil {
		return nil, err
	}

	superlike := &models.Superlike{
		Base:      models.NewBase(),
		UserID:    userID,
		ListingID: listingID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.Collection(superlikesCollection).InsertOne(ctx, superlike); err != nil {
		if db.IsMongoDuplicateKeyError(err) || mongo.IsDuplicateKeyError(err) {
			// Lost a race on the unique (user_id, listing_id) index; give
			// the allowance back.
			if refundErr := s.subscriptionSvc.RefundSuperlike(ctx, userID); refundErr != nil {
				log.Printf("Failed to refund superlike for user %s: %v", userID.String(), refundErr)
			}
			return nil, ErrAlreadySwiped
		}
		return nil, fmt.Errorf("failed to insert superlike for user %s on listing %s: %w", userID.String(), listingID.String(), err)
	}

	return s.applySwipe(ctx, userID, listing, models.SwipeLike)
}

// validateSwipeTarget loads the listing and rejects unknown, own and
// already-swiped targets. Runs before any allowance is spent so rejected
// swipes and superlikes leave no trace.
func (s *swapService) validateSwipeTarget(ctx context.Context, userID, listingID utils.SixID) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.Collection(listingsCollection).FindOne(ctx, bson.M{
		"_id":     listingID,
		"status":  models.ListingStatusActive,
		"deleted": false,
	}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding listing %s for swipe: %w", listingID.String(), err)
	}
	if listing.UserID == userID {
		return nil, ErrOwnListing
	}

	// Cheap pre-check; the unique index is the authority under races.
	count, err := s.db.Collection(swipeActionsCollection).CountDocuments(ctx, bson.M{"user_id": userID, "listing_id": listingID})
	if err != nil {
		return nil, fmt.Errorf("error checking prior swipe: %w", err)
	}
	if count > 0 {
		return nil, ErrAlreadySwiped
	}
	return &listing, nil
}

// applySwipe spends the daily allowance and writes the swipe row. If the
// insert loses a duplicate-key race the allowance is refunded so the failed
// swipe costs nothing.
func (s *swapService) applySwipe(ctx context.Context, userID utils.SixID, listing *models.Listing, action models.SwipeActionType) (*MatchResult, error) {
	if err := s.subscriptionSvc.ConsumeSwipe(ctx, userID); err != nil {
		return nil, err
	}

	swipe := &models.SwipeAction{
		Base:      models.NewBase(),
		UserID:    userID,
		ListingID: listing.ID,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.Collection(swipeActionsCollection).InsertOne(ctx, swipe); err != nil {
		if db.IsMongoDuplicateKeyError(err) || mongo.IsDuplicateKeyError(err) {
			if refundErr := s.subscriptionSvc.RefundSwipe(ctx, userID); refundErr != nil {
				log.Printf("Failed to refund swipe for user %s: %v", userID.String(), refundErr)
			}
			return nil, ErrAlreadySwiped
		}
		return nil, fmt.Errorf("failed to insert swipe for user %s on listing %s: %w", userID.String(), listing.ID.String(), err)
	}

	if action != models.SwipeLike {
		return &MatchResult{Matched: false}, nil
	}
	return s.checkForMatch(ctx, userID, listing)
}

// checkForMatch looks for a reciprocal like: the owner of the liked listing
// having previously liked any of the swiper's active tradeable listings. The
// oldest such like wins, which keeps the outcome deterministic when the owner
// liked several.
func (s *swapService) checkForMatch(ctx context.Context, swiperID utils.SixID, liked *models.Listing) (*MatchResult, error) {
	ownerID := liked.UserID
	if ownerID == swiperID {
		return &MatchResult{Matched: false}, nil // Guarded upstream; kept as invariant
	}

	// The swiper's listings the owner could have liked.
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := s.db.Collection(listingsCollection).Find(ctx, bson.M{
		"user_id":        swiperID,
		"status":         models.ListingStatusActive,
		"accepts_trades": true,
		"deleted":        false,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query swiper listings for match check: %w", err)
	}
	var mine []struct {
		ID utils.SixID `bson:"_id"`
	}
	if err := cursor.All(ctx, &mine); err != nil {
		return nil, fmt.Errorf("failed to decode swiper listings: %w", err)
	}
	if len(mine) == 0 {
		return &MatchResult{Matched: false}, nil
	}
	myIDs := make([]utils.SixID, len(mine))
	for i, m := range mine {
		myIDs[i] = m.ID
	}

	// The owner's earliest like on any of them.
	var reciprocal models.SwipeAction
	err = s.db.Collection(swipeActionsCollection).FindOne(ctx, bson.M{
		"user_id":    ownerID,
		"listing_id": bson.M{"$in": myIDs},
		"action":     models.SwipeLike,
	}, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})).Decode(&reciprocal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &MatchResult{Matched: false}, nil
		}
		return nil, fmt.Errorf("failed to query reciprocal like: %w", err)
	}

	userOne, userTwo := models.OrderUserPair(swiperID, ownerID)
	match := &models.Match{
		Base:                models.NewBase(),
		UserOneID:           userOne,
		UserTwoID:           userTwo,
		ListingID:           liked.ID,
		ReciprocalListingID: reciprocal.ListingID,
		CreatedAt:           time.Now().UTC(),
	}
	_, err = s.db.Collection(matchesCollection).InsertOne(ctx, match)
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) || mongo.IsDuplicateKeyError(err) {
			// Pair already matched; reuse the existing match and conversation.
			var existing models.Match
			findErr := s.db.Collection(matchesCollection).FindOne(ctx, bson.M{
				"user_one_id": userOne,
				"user_two_id": userTwo,
			}).Decode(&existing)
			if findErr != nil {
				return nil, fmt.Errorf("failed to load existing match for pair: %w", findErr)
			}
			match = &existing
		} else {
			return nil, fmt.Errorf("failed to insert match: %w", err)
		}
	}

	conversation, err := s.messageSvc.EnsureConversation(ctx, match.ID, liked.ID, swiperID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("match %s created but conversation setup failed: %w", match.ID.String(), err)
	}

	owner, err := s.userService.GetProfile(ctx, ownerID)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	log.Printf("Match %s between %s and %s on listing %s", match.ID.String(), swiperID.String(), ownerID.String(), liked.ID.String())
	return &MatchResult{
		Matched:        true,
		Match:          match,
		Listing:        liked,
		Owner:          owner,
		ConversationID: &conversation.ID,
	}, nil
}
