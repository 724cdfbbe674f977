package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/mail"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rodrigomacsantos/PieceSwap/internal/config"
	"github.com/rodrigomacsantos/PieceSwap/internal/db"
	"github.com/rodrigomacsantos/PieceSwap/internal/models"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// IEmailEnqueuer schedules an email for background delivery. Implemented by
// the tasks package; kept as an interface here so services stay decoupled
// from the queue.
type IEmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, to, subject, body string) error
}

// IImageEnqueuer schedules an uploaded image for background validation and
// resizing. Also implemented by the tasks package.
type IImageEnqueuer interface {
	EnqueueImageProcess(ctx context.Context, s3Key, target, targetID string) error
}

// IPartnershipService defines the interface for partnership applications and
// sales commissions.
type IPartnershipService interface {
	Apply(ctx context.Context, name, partnerType, contactEmail, description string) (*models.Partnership, error)
	RecordCommission(ctx context.Context, listingID, sellerID, buyerID utils.SixID, salePriceEUR float64) (*models.SalesCommission, error)
	ListCommissionsBySeller(ctx context.Context, sellerID utils.SixID) ([]models.SalesCommission, error)
}

const (
	partnershipsCollection     = "partnerships"
	salesCommissionsCollection = "sales_commissions"
)

// partnershipService implements IPartnershipService.
type partnershipService struct {
	db       *mongo.Database
	cfg      *config.Config
	enqueuer IEmailEnqueuer // May be nil; applications then skip the confirmation email
}

// NewPartnershipService creates a new PartnershipService.
func NewPartnershipService(db *mongo.Database, cfg *config.Config, enqueuer IEmailEnqueuer) IPartnershipService {
	return &partnershipService{db: db, cfg: cfg, enqueuer: enqueuer}
}

// ErrInvalidPartnerEmail is returned when an application's contact email does
// not parse.
var ErrInvalidPartnerEmail = errors.New("invalid contact email")

// Apply files a partnership application and schedules a confirmation email.
func (s *partnershipService) Apply(ctx context.Context, name, partnerType, contactEmail, description string) (*models.Partnership, error) {
	if name == "" {
		return nil, fmt.Errorf("partnership name is required")
	}
	if _, err := mail.ParseAddress(contactEmail); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPartnerEmail, err)
	}

	var application *models.Partnership
	operation := func() error {
		application = &models.Partnership{
			Base:         models.NewBase(),
			Name:         name,
			Type:         partnerType,
			ContactEmail: contactEmail,
			Description:  description,
			Status:       models.PartnershipPending,
			CreatedAt:    time.Now().UTC(),
		}
		_, insertErr := s.db.Collection(partnershipsCollection).InsertOne(ctx, application)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert partnership application from %s: %w", contactEmail, err)
	}

	if s.enqueuer != nil {
		subject := fmt.Sprintf("%s partnership application received", s.cfg.AppName)
		body := fmt.Sprintf("Hi %s,\r\n\r\nWe received your partnership application and will review it shortly.\r\n\r\nThe %s team", name, s.cfg.AppName)
		if err := s.enqueuer.EnqueueEmail(ctx, contactEmail, subject, body); err != nil {
			// The application is stored; the email is best-effort.
			log.Printf("Failed to enqueue partnership confirmation email to %s: %v", contactEmail, err)
		}
	}

	return application, nil
}

// RecordCommission books the platform's cut of a cash sale, rounded to cents.
func (s *partnershipService) RecordCommission(ctx context.Context, listingID, sellerID, buyerID utils.SixID, salePriceEUR float64) (*models.SalesCommission, error) {
	if salePriceEUR <= 0 {
		return nil, fmt.Errorf("invalid sale price %.2f", salePriceEUR)
	}

	rate := s.cfg.CommissionRate
	amount := math.Round(salePriceEUR*rate*100) / 100

	var commission *models.SalesCommission
	operation := func() error {
		commission = &models.SalesCommission{
			Base:         models.NewBase(),
			ListingID:    listingID,
			SellerID:     sellerID,
			BuyerID:      buyerID,
			SalePriceEUR: salePriceEUR,
			Rate:         rate,
			AmountEUR:    amount,
			Status:       models.CommissionPending,
			CreatedAt:    time.Now().UTC(),
		}
		_, insertErr := s.db.Collection(salesCommissionsCollection).InsertOne(ctx, commission)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to record commission for listing %s: %w", listingID.String(), err)
	}

	log.Printf("Commission %s recorded: %.2f EUR (%.0f%% of %.2f) for listing %s",
		commission.ID.String(), amount, rate*100, salePriceEUR, listingID.String())
	return commission, nil
}

// ListCommissionsBySeller returns a seller's commissions, newest first.
func (s *partnershipService) ListCommissionsBySeller(ctx context.Context, sellerID utils.SixID) ([]models.SalesCommission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(salesCommissionsCollection).Find(ctx, bson.M{"seller_id": sellerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query commissions for seller %s: %w", sellerID.String(), err)
	}
	defer cursor.Close(ctx)

	var commissions []models.SalesCommission
	if err := cursor.All(ctx, &commissions); err != nil {
		return nil, fmt.Errorf("failed to decode commissions: %w", err)
	}
	return commissions, nil
}
