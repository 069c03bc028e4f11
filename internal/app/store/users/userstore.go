// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/donorlink/internal/app/system/geo"
	"github.com/dalemusser/donorlink/internal/app/system/normalize"
	"github.com/dalemusser/donorlink/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultSearchRadiusKm applies when a donor search gives an origin
	// but no radius.
	DefaultSearchRadiusKm = 50.0
	// MaxSearchResults caps a donor search.
	MaxSearchResults = 200
)

var (
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail    = errors.New("a user with this email already exists")
	ErrNameRequired      = errors.New("name is required")
	ErrEmailRequired     = errors.New("email is required")
	ErrInvalidBloodGroup = errors.New("blood group must be one of A+ A- B+ B- AB+ AB- O+ O-")
	ErrInvalidLocation   = errors.New("location is out of range")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// Create inserts a new user after normalizing & validating fields.
// PasswordHash must already be set by the caller.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Email = normalize.Email(u.Email)
	u.EmailCI = text.Fold(u.Email)
	u.Name = normalize.Name(u.Name)
	u.NameCI = text.Fold(u.Name)
	u.BloodGroup = normalize.BloodGroup(u.BloodGroup)
	u.City = normalize.Name(u.City)
	u.CityCI = text.Fold(u.City)

	if u.Email == "" {
		return models.User{}, ErrEmailRequired
	}
	if u.Name == "" {
		return models.User{}, ErrNameRequired
	}
	if !models.IsValidBloodGroup(u.BloodGroup) {
		return models.User{}, ErrInvalidBloodGroup
	}
	if u.Location != nil && !u.Location.Valid() {
		return models.User{}, ErrInvalidLocation
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email_ci": text.Fold(normalize.Email(email))}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ProfileUpdate holds the editable profile fields. All of them are
// written; callers send the full profile.
type ProfileUpdate struct {
	Name       string
	Age        int
	BloodGroup string
	Phone      string
	City       string
	State      string
	Country    string
}

// UpdateProfile replaces the editable profile fields of user id.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.User, error) {
	name := normalize.Name(upd.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	bg := normalize.BloodGroup(upd.BloodGroup)
	if !models.IsValidBloodGroup(bg) {
		return nil, ErrInvalidBloodGroup
	}
	city := normalize.Name(upd.City)

	set := bson.M{
		"name":        name,
		"name_ci":     text.Fold(name),
		"age":         upd.Age,
		"blood_group": bg,
		"phone":       strings.TrimSpace(upd.Phone),
		"city":        city,
		"city_ci":     text.Fold(city),
		"state":       normalize.Name(upd.State),
		"country":     normalize.Name(upd.Country),
		"updated_at":  time.Now().UTC(),
	}
	return s.update(ctx, id, set)
}

// SetLocation stores the user's map point. A nil point clears it.
func (s *Store) SetLocation(ctx context.Context, id primitive.ObjectID, loc *models.GeoPoint) (*models.User, error) {
	if loc != nil && !loc.Valid() {
		return nil, ErrInvalidLocation
	}
	return s.update(ctx, id, bson.M{"location": loc, "updated_at": time.Now().UTC()})
}

// SetAvailability toggles whether the user shows up in donor searches.
func (s *Store) SetAvailability(ctx context.Context, id primitive.ObjectID, available bool) (*models.User, error) {
	return s.update(ctx, id, bson.M{"is_available": available, "updated_at": time.Now().UTC()})
}

func (s *Store) update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// DonorQuery filters a donor search. Only available users are returned.
type DonorQuery struct {
	BloodGroup string           // empty means any
	Origin     *models.GeoPoint // when set, donors without a location are dropped
	RadiusKm   float64          // <= 0 means DefaultSearchRadiusKm
	ExcludeID  primitive.ObjectID
	Limit      int
}

// SearchDonors returns available donors matching q. With an origin the
// result is limited to the radius and ordered nearest first; without one it
// is ordered by name.
func (s *Store) SearchDonors(ctx context.Context, q DonorQuery) ([]models.Donor, error) {
	filter := bson.M{"is_available": true}
	if bg := normalize.BloodGroup(q.BloodGroup); bg != "" {
		if !models.IsValidBloodGroup(bg) {
			return nil, ErrInvalidBloodGroup
		}
		filter["blood_group"] = bg
	}
	if !q.ExcludeID.IsZero() {
		filter["_id"] = bson.M{"$ne": q.ExcludeID}
	}
	if q.Origin != nil {
		if !q.Origin.Valid() {
			return nil, ErrInvalidLocation
		}
		filter["location"] = bson.M{"$type": "object"}
	}

	limit := q.Limit
	if limit <= 0 || limit > MaxSearchResults {
		limit = MaxSearchResults
	}

	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	if q.Origin == nil {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("search donors: %w", err)
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("search donors: %w", err)
	}

	if q.Origin == nil {
		out := make([]models.Donor, 0, len(users))
		for _, u := range users {
			out = append(out, ToDonor(u, nil))
		}
		return out, nil
	}

	radius := q.RadiusKm
	if radius <= 0 {
		radius = DefaultSearchRadiusKm
	}
	out := make([]models.Donor, 0, len(users))
	for _, u := range users {
		if u.Location == nil {
			continue
		}
		d := geo.DistanceKm(*q.Origin, *u.Location)
		if d > radius {
			continue
		}
		rounded := geo.Round1(d)
		out = append(out, ToDonor(u, &rounded))
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].DistanceKm < *out[j].DistanceKm })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ToDonor projects u into a search result.
func ToDonor(u models.User, distanceKm *float64) models.Donor {
	return models.Donor{
		ID:         u.ID.Hex(),
		Name:       u.Name,
		BloodGroup: u.BloodGroup,
		City:       u.City,
		State:      u.State,
		Phone:      u.Phone,
		Location:   u.Location,
		DistanceKm: distanceKm,
	}
}
