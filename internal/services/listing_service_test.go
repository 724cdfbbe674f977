package services

import (
	"context"
	"testing"

	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rodrigomacsantos/PieceSwap/internal/config"
	"github.com/rodrigomacsantos/PieceSwap/internal/db"
	"github.com/rodrigomacsantos/PieceSwap/internal/models"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

func setupListingTestDB(t *testing.T, dbName string) *mongo.Database {
	database := setupTestDB(t, dbName)
	_ = database.Collection("listings").Drop(context.Background())
	_ = database.Collection("sales_commissions").Drop(context.Background())
	_ = database.Collection("partnerships").Drop(context.Background())
	require.NoError(t, db.EnsureIndexes(database), "Failed to ensure indexes")
	return database
}

func newListingTestServices(db *mongo.Database) (IListingService, IUserService) {
	cfg := &config.Config{CommissionRate: 0.05}
	userSvc := NewUserService(db)
	partnershipSvc := NewPartnershipService(db, cfg, nil)
	return NewListingService(db, cfg, userSvc, partnershipSvc), userSvc
}

func TestListingService_CreateAndFetch(t *testing.T) {
	db := setupListingTestDB(t, "testdb_listing_service_create")
	listingSvc, userSvc := newListingTestServices(db)
	ctx := context.Background()

	seller, _, err := userSvc.SignUp(ctx, "seller@example.com", "secret-password", "brick_seller", "")
	require.NoError(t, err)

	price := 85.0
	listing, err := listingSvc.CreateListing(ctx, seller.ID, NewListingInput{
		Title:         "LEGO Ideas 21318 Tree House",
		Description:   "Complete, with instructions",
		Category:      "sets",
		Condition:     models.ConditionUsed,
		SetNumber:     "21318",
		PriceEUR:      &price,
		AcceptsTrades: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusActive, listing.Status)
	assert.Equal(t, 1, listing.Quantity, "quantity defaults to 1")

	withSeller, err := listingSvc.GetListingWithSeller(ctx, listing.ID)
	require.NoError(t, err)
	require.NotNil(t, withSeller.Seller)
	assert.Equal(t, "brick_seller", withSeller.Seller.Username)
}

func TestListingService_CreateListing_InvalidCondition(t *testing.T) {
	db := setupListingTestDB(t, "testdb_listing_service_condition")
	listingSvc, userSvc := newListingTestServices(db)
	ctx := context.Background()

	seller, _, err := userSvc.SignUp(ctx, "seller2@example.com", "secret-password", "seller_two", "")
	require.NoError(t, err)

	_, err = listingSvc.CreateListing(ctx, seller.ID, NewListingInput{
		Title:     "Mystery bricks",
		Condition: "mint",
	})
	assert.Error(t, err)
}

func TestListingService_Search(t *testing.T) {
	db := setupListingTestDB(t, "testdb_listing_service_search")
	listingSvc, userSvc := newListingTestServices(db)
	ctx := context.Background()

	seller, _, err := userSvc.SignUp(ctx, "search@example.com", "secret-password", "search_seller", "")
	require.NoError(t, err)

	for _, title := range []string{"Star Wars X-Wing 75301", "Technic Crane 42108", "Star Wars AT-AT 75288"} {
		_, err := listingSvc.CreateListing(ctx, seller.ID, NewListingInput{
			Title:     title,
			Category:  "sets",
			Condition: models.ConditionNew,
		})
		require.NoError(t, err)
	}

	results, err := listingSvc.SearchListings(ctx, ListingSearch{Query: "star wars"})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// Removed listings fall out of search
	require.NoError(t, listingSvc.SetListingStatus(ctx, results[0].Listing.ID, seller.ID, models.ListingStatusRemoved))
	results, err = listingSvc.SearchListings(ctx, ListingSearch{Query: "star wars"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestListingService_StatusOwnership(t *testing.T) {
	db := setupListingTestDB(t, "testdb_listing_service_ownership")
	listingSvc, userSvc := newListingTestServices(db)
	ctx := context.Background()

	seller, _, err := userSvc.SignUp(ctx, "owner@example.com", "secret-password", "the_owner", "")
	require.NoError(t, err)

	listing, err := listingSvc.CreateListing(ctx, seller.ID, NewListingInput{
		Title:     "Castle 10305",
		Condition: models.ConditionNew,
	})
	require.NoError(t, err)

	stranger := utils.NewSixID()
	err = listingSvc.SetListingStatus(ctx, listing.ID, stranger, models.ListingStatusRemoved)
	assert.True(t, errors.Is(err, ErrNotListingOwner))

	require.NoError(t, listingSvc.SetListingStatus(ctx, listing.ID, seller.ID, models.ListingStatusRemoved))
	fetched, err := listingSvc.FindListingByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusRemoved, fetched.Status)
}

func TestListingService_MarkSold_RecordsCommission(t *testing.T) {
	db := setupListingTestDB(t, "testdb_listing_service_sold")
	cfg := &config.Config{CommissionRate: 0.05}
	userSvc := NewUserService(db)
	partnershipSvc := NewPartnershipService(db, cfg, nil)
	listingSvc := NewListingService(db, cfg, userSvc, partnershipSvc)
	ctx := context.Background()

	seller, _, err := userSvc.SignUp(ctx, "sold@example.com", "secret-password", "sold_seller", "")
	require.NoError(t, err)
	buyer := utils.NewSixID()

	price := 200.0
	listing, err := listingSvc.CreateListing(ctx, seller.ID, NewListingInput{
		Title:     "UCS Millennium Falcon 75192",
		Condition: models.ConditionLikeNew,
		PriceEUR:  &price,
	})
	require.NoError(t, err)

	require.NoError(t, listingSvc.MarkListingSold(ctx, listing.ID, seller.ID, buyer))

	fetched, err := listingSvc.FindListingByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusSold, fetched.Status)

	commissions, err := partnershipSvc.ListCommissionsBySeller(ctx, seller.ID)
	require.NoError(t, err)
	require.Len(t, commissions, 1)
	assert.Equal(t, 200.0, commissions[0].SalePriceEUR)
	assert.InDelta(t, 10.0, commissions[0].AmountEUR, 0.001)
}

func TestListingService_AddImage(t *testing.T) {
	db := setupListingTestDB(t, "testdb_listing_service_image")
	listingSvc, userSvc := newListingTestServices(db)
	ctx := context.Background()

	seller, _, err := userSvc.SignUp(ctx, "image@example.com", "secret-password", "image_seller", "")
	require.NoError(t, err)

	listing, err := listingSvc.CreateListing(ctx, seller.ID, NewListingInput{
		Title:     "Bulk bricks 2kg",
		Condition: models.ConditionUsed,
	})
	require.NoError(t, err)

	require.NoError(t, listingSvc.AddImageToListing(ctx, listing.ID, "uploads/a/b/key_1.jpg"))
	fetched, err := listingSvc.FindListingByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/a/b/key_1.jpg"}, fetched.Images)

	err = listingSvc.AddImageToListing(ctx, utils.NewSixID(), "uploads/x.jpg")
	assert.True(t, errors.Is(err, mongo.ErrNoDocuments))
}
