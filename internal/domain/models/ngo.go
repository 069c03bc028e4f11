// internal/domain/models/ngo.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NGO is an organization profile owned by exactly one user account.
//
// IsVerified predates VerificationStatus and is still present on older
// records; authorization honours either field.
type NGO struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`

	Name               string `bson:"name" json:"name"`
	NameCI             string `bson:"name_ci" json:"-"`
	RegistrationNumber string `bson:"registration_number" json:"registration_number"`
	RegistrationType   string `bson:"registration_type,omitempty" json:"registration_type,omitempty"`
	EstablishedYear    int    `bson:"established_year,omitempty" json:"established_year,omitempty"`
	Description        string `bson:"description,omitempty" json:"description,omitempty"`

	Address string `bson:"address,omitempty" json:"address,omitempty"`
	City    string `bson:"city,omitempty" json:"city,omitempty"`
	State   string `bson:"state,omitempty" json:"state,omitempty"`
	Pincode string `bson:"pincode,omitempty" json:"pincode,omitempty"`
	Phone   string `bson:"phone,omitempty" json:"phone,omitempty"`
	Email   string `bson:"email,omitempty" json:"email,omitempty"`
	Website string `bson:"website,omitempty" json:"website,omitempty"`

	PreviousCamps      int      `bson:"previous_camps" json:"previous_camps"`
	ContactPerson      string   `bson:"contact_person,omitempty" json:"contact_person,omitempty"`
	ContactDesignation string   `bson:"contact_designation,omitempty" json:"contact_designation,omitempty"`
	ContactPhone       string   `bson:"contact_phone,omitempty" json:"contact_phone,omitempty"`
	ContactEmail       string   `bson:"contact_email,omitempty" json:"contact_email,omitempty"`
	FocusAreas         []string `bson:"focus_areas,omitempty" json:"focus_areas,omitempty"`

	VerificationStatus string     `bson:"verification_status" json:"verification_status"` // pending | verified | rejected
	IsVerified         *bool      `bson:"is_verified,omitempty" json:"is_verified,omitempty"`
	IsActive           bool       `bson:"is_active" json:"is_active"`
	AdminNotes         string     `bson:"admin_notes,omitempty" json:"admin_notes,omitempty"`
	VerifiedAt         *time.Time `bson:"verified_at,omitempty" json:"verified_at,omitempty"`
	NewsCount          int        `bson:"news_count" json:"news_count"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
