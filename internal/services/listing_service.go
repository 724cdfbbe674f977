package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rodrigomacsantos/PieceSwap/internal/config"
	"github.com/rodrigomacsantos/PieceSwap/internal/db"
	"github.com/rodrigomacsantos/PieceSwap/internal/models"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// ErrNotListingOwner is returned when a mutation targets a listing the user
// does not own.
var ErrNotListingOwner = errors.New("listing not found or not owned by user")

// NewListingInput carries the fields of a listing being created.
type NewListingInput struct {
	Title          string                  `json:"title"`
	Description    string                  `json:"description"`
	Category       string                  `json:"category"`
	Condition      models.ListingCondition `json:"condition"`
	SetNumber      string                  `json:"set_number"`
	Quantity       int                     `json:"quantity"`
	PriceEUR       *float64                `json:"price_eur"`
	PriceSwapCoins *int                    `json:"price_swap_coins"`
	AcceptsTrades  bool                    `json:"accepts_trades"`
}

// ListingSearch narrows a marketplace search. Nil/empty fields match everything.
type ListingSearch struct {
	Query    string
	Category string
	Limit    int
}

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, userID utils.SixID, input NewListingInput) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	GetListingWithSeller(ctx context.Context, listingID utils.SixID) (*models.ListingWithSeller, error)
	SearchListings(ctx context.Context, search ListingSearch) ([]models.ListingWithSeller, error)
	FindListingsByUserID(ctx context.Context, userID utils.SixID) ([]models.Listing, error)
	SetListingStatus(ctx context.Context, listingID, userID utils.SixID, status models.ListingStatus) error
	MarkListingSold(ctx context.Context, listingID, sellerID, buyerID utils.SixID) error
	AddImageToListing(ctx context.Context, listingID utils.SixID, imageKey string) error
}

const listingsCollection = "listings"

// listingService implements IListingService.
type listingService struct {
	db             *mongo.Database
	cfg            *config.Config
	userService    IUserService
	partnershipSvc IPartnershipService
}

// NewListingService creates a new ListingService.
func NewListingService(db *mongo.Database, cfg *config.Config, userService IUserService, partnershipSvc IPartnershipService) IListingService {
	return &listingService{db: db, cfg: cfg, userService: userService, partnershipSvc: partnershipSvc}
}

// CreateListing inserts a new active listing.
func (s *listingService) CreateListing(ctx context.Context, userID utils.SixID, input NewListingInput) (*models.Listing, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("listing title is required")
	}
	if input.Quantity <= 0 {
		input.Quantity = 1
	}
	switch input.Condition {
	case models.ConditionNew, models.ConditionLikeNew, models.ConditionUsed:
	default:
		return nil, fmt.Errorf("invalid listing condition %q", input.Condition)
	}

	collection := s.db.Collection(listingsCollection)
	now := time.Now().UTC()

	var newListing *models.Listing
	operation := func() error {
		newListing = &models.Listing{
			Base:           models.NewBase(), // ID regenerated on each attempt
			UserID:         userID,
			Title:          input.Title,
			Description:    input.Description,
			Category:       input.Category,
			Condition:      input.Condition,
			SetNumber:      input.SetNumber,
			Quantity:       input.Quantity,
			PriceEUR:       input.PriceEUR,
			PriceSwapCoins: input.PriceSwapCoins,
			AcceptsTrades:  input.AcceptsTrades,
			Images:         []string{},
			Status:         models.ListingStatusActive,
			Deleted:        false,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		_, insertErr := collection.InsertOne(ctx, newListing)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		listingIDStr := "<unknown>"
		if newListing != nil {
			listingIDStr = newListing.ID.String()
		}
		return nil, fmt.Errorf("failed to insert new listing for user %s (last attempted listing ID: %s) after multiple retries: %w",
			userID.String(), listingIDStr, err)
	}

	return newListing, nil
}

// FindListingByID finds a non-deleted listing by its ID. It does NOT check ownership.
func (s *listingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	var listing models.Listing
	filter := bson.M{"_id": listingID, "deleted": false}

	err := s.db.Collection(listingsCollection).FindOne(ctx, filter).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding listing by ID %s: %w", listingID.String(), err)
	}
	return &listing, nil
}

// GetListingWithSeller fetches a listing plus its seller's profile.
func (s *listingService) GetListingWithSeller(ctx context.Context, listingID utils.SixID) (*models.ListingWithSeller, error) {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	seller, err := s.userService.GetProfile(ctx, listing.UserID)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	return &models.ListingWithSeller{Listing: *listing, Seller: seller}, nil
}

// SearchListings returns active listings newest-first, filtered server-side by
// free-text query and category, with sellers attached in one batch fetch.
func (s *listingService) SearchListings(ctx context.Context, search ListingSearch) ([]models.ListingWithSeller, error) {
	filter := bson.M{
		"status":  models.ListingStatusActive,
		"deleted": false,
	}
	if search.Category != "" {
		filter["category"] = search.Category
	}
	if search.Query != "" {
		filter["$or"] = bson.A{
			bson.M{"title": bson.M{"$regex": search.Query, "$options": "i"}},
			bson.M{"description": bson.M{"$regex": search.Query, "$options": "i"}},
			bson.M{"set_number": bson.M{"$regex": search.Query, "$options": "i"}},
		}
	}

	limit := search.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "is_highlighted", Value: -1}, {Key: "priority_boost", Value: -1}, {Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(listingsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}
	defer cursor.Close(ctx)

	var listings []models.Listing
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}

	return s.attachSellers(ctx, listings)
}

// attachSellers pairs listings with their sellers using a single $in profile
// fetch across the whole result set.
func (s *listingService) attachSellers(ctx context.Context, listings []models.Listing) ([]models.ListingWithSeller, error) {
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
		return nil, fmt.Errorf("failed to fetch seller profiles: %w", err)
	}

	result := make([]models.ListingWithSeller, len(listings))
	for i, l := range listings {
		result[i] = models.ListingWithSeller{Listing: l, Seller: profiles[l.UserID]}
	}
	return result, nil
}

// FindListingsByUserID returns all non-deleted listings of a user, newest first.
func (s *listingService) FindListingsByUserID(ctx context.Context, userID utils.SixID) ([]models.Listing, error) {
	filter := bson.M{"user_id": userID, "deleted": false}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.db.Collection(listingsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings for user %s: %w", userID.String(), err)
	}
	defer cursor.Close(ctx)

	var listings []models.Listing
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings for user %s: %w", userID.String(), err)
	}
	return listings, nil
}

// SetListingStatus moves a listing the user owns to the given status.
func (s *listingService) SetListingStatus(ctx context.Context, listingID, userID utils.SixID, status models.ListingStatus) error {
	switch status {
	case models.ListingStatusActive, models.ListingStatusSold, models.ListingStatusRemoved:
	default:
		return fmt.Errorf("invalid listing status %q", status)
	}

	filter := bson.M{"_id": listingID, "user_id": userID, "deleted": false}
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}}

	result, err := s.db.Collection(listingsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error updating listing %s: %w", listingID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotListingOwner
	}
	return nil
}

// MarkListingSold closes a cash sale: the listing goes to sold and, when it
// carries a EUR price, a sales commission is recorded for the platform.
func (s *listingService) MarkListingSold(ctx context.Context, listingID, sellerID, buyerID utils.SixID) error {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.UserID != sellerID {
		return ErrNotListingOwner
	}

	if err := s.SetListingStatus(ctx, listingID, sellerID, models.ListingStatusSold); err != nil {
		return err
	}

	if listing.PriceEUR != nil && *listing.PriceEUR > 0 && s.partnershipSvc != nil {
		if _, err := s.partnershipSvc.RecordCommission(ctx, listingID, sellerID, buyerID, *listing.PriceEUR); err != nil {
			return fmt.Errorf("listing %s sold but commission recording failed: %w", listingID.String(), err)
		}
	}
	return nil
}

// AddImageToListing appends a processed image key to the listing's images array.
func (s *listingService) AddImageToListing(ctx context.Context, listingID utils.SixID, imageKey string) error {
	filter := bson.M{"_id": listingID, "deleted": false}
	update := bson.M{
		"$push": bson.M{"images": imageKey},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := s.db.Collection(listingsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to add image to listing %s: %w", listingID.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
