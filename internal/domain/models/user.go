// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BloodGroups lists the accepted ABO/Rh groups.
var BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// IsValidBloodGroup reports whether g is one of BloodGroups.
func IsValidBloodGroup(g string) bool {
	for _, bg := range BloodGroups {
		if bg == g {
			return true
		}
	}
	return false
}

// User is a donor/recipient account. Users are never hard-deleted.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	EmailCI      string             `bson:"email_ci" json:"-"`
	PasswordHash string             `bson:"password_hash" json:"-"`

	Name       string `bson:"name" json:"name"`
	NameCI     string `bson:"name_ci" json:"-"`
	Age        int    `bson:"age,omitempty" json:"age,omitempty"`
	BloodGroup string `bson:"blood_group" json:"blood_group"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
	City       string `bson:"city,omitempty" json:"city,omitempty"`
	CityCI     string `bson:"city_ci,omitempty" json:"-"`
	State      string `bson:"state,omitempty" json:"state,omitempty"`
	Country    string `bson:"country,omitempty" json:"country,omitempty"`

	IsAvailable bool      `bson:"is_available" json:"is_available"`
	Location    *GeoPoint `bson:"location" json:"location"` // nil until the user picks a point

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Donor is a User as shown in search results, with an optional distance
// from the searcher in kilometres.
type Donor struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	BloodGroup string    `json:"blood_group"`
	City       string    `json:"city,omitempty"`
	State      string    `json:"state,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Location   *GeoPoint `json:"location,omitempty"`
	DistanceKm *float64  `json:"distance_km,omitempty"`
}
