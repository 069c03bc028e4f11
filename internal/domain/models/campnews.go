// internal/domain/models/campnews.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CampNews is a blood-donation camp announcement authored by a verified NGO.
type CampNews struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	NGOID                 primitive.ObjectID `bson:"ngo_id" json:"ngo_id"`
	NGOName               string             `bson:"ngo_name" json:"ngo_name"`
	NGORegistrationNumber string             `bson:"ngo_registration_number,omitempty" json:"ngo_registration_number,omitempty"`
	UserID                primitive.ObjectID `bson:"user_id" json:"user_id"`

	Title          string    `bson:"title" json:"title"`
	Description    string    `bson:"description,omitempty" json:"description,omitempty"`
	Venue          string    `bson:"venue,omitempty" json:"venue,omitempty"`
	Address        string    `bson:"address,omitempty" json:"address,omitempty"`
	CampDate       time.Time `bson:"camp_date" json:"camp_date"`
	CampTime       string    `bson:"camp_time,omitempty" json:"camp_time,omitempty"`
	ExpectedDonors int       `bson:"expected_donors" json:"expected_donors"`
	ContactPerson  string    `bson:"contact_person,omitempty" json:"contact_person,omitempty"`
	ContactPhone   string    `bson:"contact_phone,omitempty" json:"contact_phone,omitempty"`
	ContactEmail   string    `bson:"contact_email,omitempty" json:"contact_email,omitempty"`
	Requirements   string    `bson:"requirements,omitempty" json:"requirements,omitempty"`
	Facilities     string    `bson:"facilities,omitempty" json:"facilities,omitempty"`
	Location       *GeoPoint `bson:"location,omitempty" json:"location,omitempty"`

	Status     string     `bson:"status" json:"status"` // pending | approved | rejected
	AdminNotes string     `bson:"admin_notes,omitempty" json:"admin_notes,omitempty"`
	ReviewedAt *time.Time `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`

	Views           int64 `bson:"views" json:"views"`
	InterestedCount int64 `bson:"interested_count" json:"interested_count"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NearbyNews is a feed entry. DistanceKm is set only when the viewer
// supplied a location and the camp carries one.
type NearbyNews struct {
	CampNews
	DistanceKm *float64 `json:"distance,omitempty"`
}

// CampInterest records that a user is interested in a camp. At most one
// record exists per (NewsID, UserID).
type CampInterest struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	NewsID    primitive.ObjectID `bson:"news_id" json:"news_id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
