package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rodrigomacsantos/PieceSwap/internal/auth"
	"github.com/rodrigomacsantos/PieceSwap/internal/db"
	"github.com/rodrigomacsantos/PieceSwap/internal/models"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// ErrEmailExists is returned when an attempt is made to use an email that already exists.
var ErrEmailExists = errors.New("email already in use by another account")

// ErrUsernameExists is returned when the chosen username is taken.
var ErrUsernameExists = errors.New("username already taken")

// ErrInvalidCredentials is returned on a failed sign-in attempt. Deliberately
// identical for unknown identifier and wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUnknownCoinPackage is returned when a wallet top-up names a package that
// does not exist.
var ErrUnknownCoinPackage = errors.New("unknown swap coin package")

// ProfileUpdate carries the fields a user may change on their own profile.
// Nil pointers mean "leave unchanged".
type ProfileUpdate struct {
	FullName  *string `json:"full_name,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	Location  *string `json:"location,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// CoinPackage is a purchasable bundle of swap coins. Checkout is simulated:
// buying a package credits the coins immediately.
type CoinPackage struct {
	ID       string  `json:"id"`
	PriceEUR float64 `json:"price_eur"`
	Coins    int     `json:"coins"`
}

// CoinPackages returns the purchasable bundles, cheapest first.
func CoinPackages() []CoinPackage {
	return []CoinPackage{
		{ID: "starter", PriceEUR: 4.99, Coins: 50},
		{ID: "builder", PriceEUR: 9.99, Coins: 120},
		{ID: "collector", PriceEUR: 19.99, Coins: 300},
		{ID: "master", PriceEUR: 49.99, Coins: 800},
	}
}

// IUserService defines the interface for account and profile operations.
// This allows for easier mocking in tests.
type IUserService interface {
	SignUp(ctx context.Context, email, password, username, fullName string) (*models.User, *models.Profile, error)
	Authenticate(ctx context.Context, identifier, password string) (*models.User, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	GetProfile(ctx context.Context, userID utils.SixID) (*models.Profile, error)
	GetProfiles(ctx context.Context, userIDs []utils.SixID) (map[utils.SixID]*models.Profile, error)
	UpdateProfile(ctx context.Context, userID utils.SixID, upd ProfileUpdate) (*models.Profile, error)
	PurchaseCoins(ctx context.Context, userID utils.SixID, packageID string) (int, error)
	SpendCoins(ctx context.Context, userID utils.SixID, amount int) error
}

const (
	usersCollection    = "users"
	profilesCollection = "profiles"
)

// ErrInsufficientCoins is returned when a coin spend exceeds the balance.
var ErrInsufficientCoins = errors.New("insufficient swap coin balance")

// userService implements IUserService.
type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database) IUserService {
	return &userService{db: db}
}

// SignUp creates a user plus its profile. Email and username collisions are
// detected via the unique indexes; the id-collision retry helper wraps the
// inserts.
func (s *userService) SignUp(ctx context.Context, email, password, username, fullName string) (*models.User, *models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// Pre-check the username so we fail before writing the user row. The
	// unique index remains the authority under races.
	count, err := s.db.Collection(profilesCollection).CountDocuments(ctx, bson.M{"username": username})
	if err != nil {
		return nil, nil, fmt.Errorf("error checking username uniqueness for %s: %w", username, err)
	}
	if count > 0 {
		return nil, nil, ErrUsernameExists
	}

	now := time.Now().UTC()
	var newUser *models.User

	operation := func() error {
		newUser = &models.User{
			Base:         models.NewBase(), // ID regenerated on each attempt
			Email:        email,
			PasswordHash: hashedPassword,
			Activated:    true,
			Suspended:    false,
			Deleted:      false,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		_, insertErr := s.db.Collection(usersCollection).InsertOne(ctx, newUser)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		if db.IsMongoDuplicateKeyError(err) && strings.Contains(err.Error(), "email_1") {
			return nil, nil, ErrEmailExists
		}
		return nil, nil, fmt.Errorf("error inserting new user for %s: %w", email, err)
	}

	var newProfile *models.Profile
	operation = func() error {
		newProfile = &models.Profile{
			Base:      models.NewBase(),
			UserID:    newUser.ID,
			Username:  username,
			FullName:  fullName,
			SwapCoins: 0,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, insertErr := s.db.Collection(profilesCollection).InsertOne(ctx, newProfile)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		// Roll the user back so the email is not burned by a half-made account.
		if _, delErr := s.db.Collection(usersCollection).DeleteOne(ctx, bson.M{"_id": newUser.ID}); delErr != nil {
			log.Printf("Failed to roll back user %s after profile insert failure: %v", newUser.ID.String(), delErr)
		}
		if db.IsMongoDuplicateKeyError(err) && strings.Contains(err.Error(), "username_1") {
			return nil, nil, ErrUsernameExists
		}
		return nil, nil, fmt.Errorf("error inserting profile for user %s: %w", newUser.ID.String(), err)
	}

	return newUser, newProfile, nil
}

// Authenticate verifies credentials for an email or username identifier.
// Usernames are resolved to their account server-side, so the client never
// learns whether the identifier exists.
func (s *userService) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)

	var user *models.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = s.FindByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = s.findByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.Suspended || !user.Activated {
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// findByUsername resolves a username to its account via the profile.
func (s *userService) findByUsername(ctx context.Context, username string) (*models.User, error) {
	var profile models.Profile
	err := s.db.Collection(profilesCollection).FindOne(ctx, bson.M{"username": username}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding profile by username %s: %w", username, err)
	}
	return s.FindByID(ctx, profile.UserID)
}

// FindByEmail finds a non-deleted user by their email address.
// Returns nil and mongo.ErrNoDocuments if not found.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	filter := bson.M{"email": email, "deleted": false}
	err := s.db.Collection(usersCollection).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// FindByID finds a non-deleted user by their ID.
func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	filter := bson.M{"_id": userID, "deleted": false}
	err := s.db.Collection(usersCollection).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID.String(), err)
	}
	return &user, nil
}

// GetProfile fetches the profile for a user.
func (s *userService) GetProfile(ctx context.Context, userID utils.SixID) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.Collection(profilesCollection).FindOne(ctx, bson.M{"user_id": userID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding profile for user %s: %w", userID.String(), err)
	}
	return &profile, nil
}

// GetProfiles batch-fetches profiles for a set of user ids in one query,
// keyed by user id. Missing profiles are simply absent from the map.
func (s *userService) GetProfiles(ctx context.Context, userIDs []utils.SixID) (map[utils.SixID]*models.Profile, error) {
	result := make(map[utils.SixID]*models.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	cursor, err := s.db.Collection(profilesCollection).Find(ctx, bson.M{"user_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, fmt.Errorf("error batch fetching profiles: %w", err)
	}
	defer cursor.Close(ctx)

	var profiles []models.Profile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("error decoding profiles: %w", err)
	}
	for i := range profiles {
		result[profiles[i].UserID] = &profiles[i]
	}
	return result, nil
}

// UpdateProfile applies the allowed field changes and returns the updated profile.
func (s *userService) UpdateProfile(ctx context.Context, userID utils.SixID, upd ProfileUpdate) (*models.Profile, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.FullName != nil {
		set["full_name"] = *upd.FullName
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.Location != nil {
		set["location"] = *upd.Location
	}
	if upd.AvatarURL != nil {
		set["avatar_url"] = *upd.AvatarURL
	}

	result, err := s.db.Collection(profilesCollection).UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("error updating profile for user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}
	return s.GetProfile(ctx, userID)
}

// PurchaseCoins credits the coins of the named package to the user's wallet
// and returns the new balance. Payment is simulated.
func (s *userService) PurchaseCoins(ctx context.Context, userID utils.SixID, packageID string) (int, error) {
	var pkg *CoinPackage
	for _, p := range CoinPackages() {
		if p.ID == packageID {
			pkg = &p
			break
		}
	}
	if pkg == nil {
		return 0, ErrUnknownCoinPackage
	}

	update := bson.M{
		"$inc": bson.M{"swap_coins": pkg.Coins},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := s.db.Collection(profilesCollection).UpdateOne(ctx, bson.M{"user_id": userID}, update)
	if err != nil {
		return 0, fmt.Errorf("error crediting coins for user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return 0, mongo.ErrNoDocuments
	}

	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	log.Printf("User %s purchased coin package %s (+%d coins)", userID.String(), pkg.ID, pkg.Coins)
	return profile.SwapCoins, nil
}

// SpendCoins atomically debits the wallet; the balance guard is part of the
// filter so a concurrent spend cannot take it negative.
func (s *userService) SpendCoins(ctx context.Context, userID utils.SixID, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("invalid spend amount %d", amount)
	}
	filter := bson.M{"user_id": userID, "swap_coins": bson.M{"$gte": amount}}
	update := bson.M{
		"$inc": bson.M{"swap_coins": -amount},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := s.db.Collection(profilesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("error debiting coins for user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrInsufficientCoins
	}
	return nil
}
