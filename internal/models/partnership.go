package models

import (
	"time"

	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// PartnershipStatus is the review state of a partnership application.
type PartnershipStatus string

const (
	PartnershipPending  PartnershipStatus = "pending"
	PartnershipApproved PartnershipStatus = "approved"
	PartnershipRejected PartnershipStatus = "rejected"
)

// Partnership is an application from a shop or creator wanting to sell
// through the platform.
type Partnership struct {
	Base         `bson:",inline"`
	Name         string            `bson:"name" json:"name"`
	Type         string            `bson:"type" json:"type"` // e.g. "store", "creator", "event"
	ContactEmail string            `bson:"contact_email" json:"contact_email"`
	Description  string            `bson:"description" json:"description"`
	Status       PartnershipStatus `bson:"status" json:"status"`
	CreatedAt    time.Time         `bson:"created_at" json:"created_at"`
}

// CommissionStatus is the settlement state of a commission.
type CommissionStatus string

const (
	CommissionPending CommissionStatus = "pending"
	CommissionPaid    CommissionStatus = "paid"
)

// SalesCommission records the platform's cut of a cash sale.
type SalesCommission struct {
	Base         `bson:",inline"`
	ListingID    utils.SixID      `bson:"listing_id" json:"listing_id"`
	SellerID     utils.SixID      `bson:"seller_id" json:"seller_id"`
	BuyerID      utils.SixID      `bson:"buyer_id" json:"buyer_id"`
	SalePriceEUR float64          `bson:"sale_price_eur" json:"sale_price_eur"`
	Rate         float64          `bson:"rate" json:"rate"`
	AmountEUR    float64          `bson:"amount_eur" json:"amount_eur"`
	Status       CommissionStatus `bson:"status" json:"status"`
	CreatedAt    time.Time        `bson:"created_at" json:"created_at"`
}
