package models

import (
	"time"
)

// User represents an account in the system. Public-facing attributes live on
// the Profile; User carries credentials and account state only.
type User struct {
	Base         `bson:",inline"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password" json:"-"` // Store hash, not plaintext
	Activated    bool      `bson:"activated" json:"activated"`
	Suspended    bool      `bson:"suspended" json:"suspended"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
	Deleted      bool      `bson:"deleted" json:"-"` // Soft delete flag
}
