package handlers_test

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"github.com/rodrigomacsantos/PieceSwap/internal/api/middleware"
	"github.com/rodrigomacsantos/PieceSwap/internal/models"
	"github.com/rodrigomacsantos/PieceSwap/internal/services"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// newAuthedRouter returns a test engine whose requests carry userID in the
// context, as the auth middleware would after validating a JWT.
func newAuthedRouter(userID utils.SixID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, userID.String())
		c.Next()
	})
	return r
}

// --- MockUserService implements services.IUserService ---

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) SignUp(ctx context.Context, email, password, username, fullName string) (*models.User, *models.Profile, error) {
	args := m.Called(ctx, email, password, username, fullName)
	var user *models.User
	var profile *models.Profile
	if args.Get(0) != nil {
		user = args.Get(0).(*models.User)
	}
	if args.Get(1) != nil {
		profile = args.Get(1).(*models.Profile)
	}
	return user, profile, args.Error(2)
}

func (m *MockUserService) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	args := m.Called(ctx, identifier, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetProfile(ctx context.Context, userID utils.SixID) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockUserService) GetProfiles(ctx context.Context, userIDs []utils.SixID) (map[utils.SixID]*models.Profile, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[utils.SixID]*models.Profile), args.Error(1)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID utils.SixID, upd services.ProfileUpdate) (*models.Profile, error) {
	args := m.Called(ctx, userID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockUserService) PurchaseCoins(ctx context.Context, userID utils.SixID, packageID string) (int, error) {
	args := m.Called(ctx, userID, packageID)
	return args.Int(0), args.Error(1)
}

func (m *MockUserService) SpendCoins(ctx context.Context, userID utils.SixID, amount int) error {
	args := m.Called(ctx, userID, amount)
	return args.Error(0)
}

// --- MockListingService implements services.IListingService ---

type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, userID utils.SixID, input services.NewListingInput) (*models.Listing, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) GetListingWithSeller(ctx context.Context, listingID utils.SixID) (*models.ListingWithSeller, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ListingWithSeller), args.Error(1)
}

func (m *MockListingService) SearchListings(ctx context.Context, search services.ListingSearch) ([]models.ListingWithSeller, error) {
	args := m.Called(ctx, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ListingWithSeller), args.Error(1)
}

func (m *MockListingService) FindListingsByUserID(ctx context.Context, userID utils.SixID) ([]models.Listing, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingService) SetListingStatus(ctx context.Context, listingID, userID utils.SixID, status models.ListingStatus) error {
	args := m.Called(ctx, listingID, userID, status)
	return args.Error(0)
}

func (m *MockListingService) MarkListingSold(ctx context.Context, listingID, sellerID, buyerID utils.SixID) error {
	args := m.Called(ctx, listingID, sellerID, buyerID)
	return args.Error(0)
}

func (m *MockListingService) AddImageToListing(ctx context.Context, listingID utils.SixID, imageKey string) error {
	args := m.Called(ctx, listingID, imageKey)
	return args.Error(0)
}

// --- MockSwapService implements services.ISwapService ---

type MockSwapService struct {
	mock.Mock
}

func (m *MockSwapService) GetSwipeFeed(ctx context.Context, userID utils.SixID, limit int) ([]models.ListingWithSeller, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ListingWithSeller), args.Error(1)
}

func (m *MockSwapService) RecordSwipe(ctx context.Context, userID, listingID utils.SixID, action models.SwipeActionType) (*services.MatchResult, error) {
	args := m.Called(ctx, userID, listingID, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.MatchResult), args.Error(1)
}

func (m *MockSwapService) UseSuperlike(ctx context.Context, userID, listingID utils.SixID) (*services.MatchResult, error) {
	args := m.Called(ctx, userID, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.MatchResult), args.Error(1)
}

// --- MockSubscriptionService implements services.ISubscriptionService ---

type MockSubscriptionService struct {
	mock.Mock
}

func (m *MockSubscriptionService) GetSubscription(ctx context.Context, userID utils.SixID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) IsPremium(ctx context.Context, userID utils.SixID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionService) Subscribe(ctx context.Context, userID utils.SixID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) Cancel(ctx context.Context, userID utils.SixID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSubscriptionService) ConsumeSwipe(ctx context.Context, userID utils.SixID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSubscriptionService) ConsumeSuperlike(ctx context.Context, userID utils.SixID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSubscriptionService) RefundSwipe(ctx context.Context, userID utils.SixID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSubscriptionService) RefundSuperlike(ctx context.Context, userID utils.SixID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSubscriptionService) GetLimits(ctx context.Context, userID utils.SixID) (*services.LimitsStatus, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LimitsStatus), args.Error(1)
}

func (m *MockSubscriptionService) ExpireLapsed(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// --- MockMessageService implements services.IMessageService ---

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) EnsureConversation(ctx context.Context, matchID, listingID, userA, userB utils.SixID) (*models.Conversation, error) {
	args := m.Called(ctx, matchID, listingID, userA, userB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockMessageService) GetConversation(ctx context.Context, conversationID utils.SixID) (*models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockMessageService) ListConversations(ctx context.Context, userID utils.SixID) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationSummary), args.Error(1)
}

func (m *MockMessageService) GetMessages(ctx context.Context, conversationID, userID utils.SixID) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageService) SendMessage(ctx context.Context, conversationID, senderID utils.SixID, content string) (*models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) MarkAsRead(ctx context.Context, conversationID, userID utils.SixID) (int64, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Get(0).(int64), args.Error(1)
}

// --- MockLocationService implements services.ILocationService ---

type MockLocationService struct {
	mock.Mock
}

func (m *MockLocationService) SaveLocation(ctx context.Context, userID utils.SixID, lat, lon float64) (*models.Profile, error) {
	args := m.Called(ctx, userID, lat, lon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockLocationService) NearbyUsers(ctx context.Context, userID utils.SixID, lat, lon float64, radiusKM int) ([]models.NearbyUser, error) {
	args := m.Called(ctx, userID, lat, lon, radiusKM)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.NearbyUser), args.Error(1)
}

func (m *MockLocationService) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	args := m.Called(ctx, lat, lon)
	return args.String(0), args.Error(1)
}

// --- MockPartnershipService implements services.IPartnershipService ---

type MockPartnershipService struct {
	mock.Mock
}

func (m *MockPartnershipService) Apply(ctx context.Context, name, partnerType, contactEmail, description string) (*models.Partnership, error) {
	args := m.Called(ctx, name, partnerType, contactEmail, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Partnership), args.Error(1)
}

func (m *MockPartnershipService) RecordCommission(ctx context.Context, listingID, sellerID, buyerID utils.SixID, salePriceEUR float64) (*models.SalesCommission, error) {
	args := m.Called(ctx, listingID, sellerID, buyerID, salePriceEUR)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SalesCommission), args.Error(1)
}

func (m *MockPartnershipService) ListCommissionsBySeller(ctx context.Context, sellerID utils.SixID) ([]models.SalesCommission, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SalesCommission), args.Error(1)
}

// --- MockConfigService implements services.IConfigService ---

type MockConfigService struct {
	mock.Mock
}

func (m *MockConfigService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *MockConfigService) Get(ctx context.Context, key string) (interface{}, error) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Error(1)
}

func (m *MockConfigService) GetInt(ctx context.Context, key string, defaultValue int) int {
	args := m.Called(ctx, key, defaultValue)
	return args.Int(0)
}

func (m *MockConfigService) GetString(ctx context.Context, key string, defaultValue string) string {
	args := m.Called(ctx, key, defaultValue)
	return args.String(0)
}

func (m *MockConfigService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	args := m.Called(ctx, key, defaultValue)
	return args.Bool(0)
}

func (m *MockConfigService) GetFloat64(ctx context.Context, key string, defaultValue float64) float64 {
	args := m.Called(ctx, key, defaultValue)
	if fVal, ok := args.Get(0).(float64); ok {
		return fVal
	}
	return float64(args.Int(0))
}

func (m *MockConfigService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	args := m.Called(ctx, key, defaultValue)
	return args.Get(0).(time.Duration)
}

func (m *MockConfigService) Load(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockConfigService) SubscribeToChanges(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockConfigService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	args := m.Called(ctx, key, value, isPublic)
	return args.Error(0)
}

// --- MockS3Storage implements storage.IS3Storage ---

type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GenerateListingUploadURL(ctx context.Context, userID, listingID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, userID, listingID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockS3Storage) GenerateAvatarUploadURL(ctx context.Context, userID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, userID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

// --- MockEmailEnqueuer implements services.IEmailEnqueuer ---

type MockEmailEnqueuer struct {
	mock.Mock
}

func (m *MockEmailEnqueuer) EnqueueEmail(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// --- MockImageEnqueuer implements services.IImageEnqueuer ---

type MockImageEnqueuer struct {
	mock.Mock
}

func (m *MockImageEnqueuer) EnqueueImageProcess(ctx context.Context, s3Key, target, targetID string) error {
	args := m.Called(ctx, s3Key, target, targetID)
	return args.Error(0)
}
