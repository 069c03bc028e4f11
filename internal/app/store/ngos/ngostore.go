// internal/app/store/ngos/ngostore.go
package ngostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/donorlink/internal/app/system/htmlsanitize"
	"github.com/dalemusser/donorlink/internal/app/system/live"
	"github.com/dalemusser/donorlink/internal/app/system/moderation"
	"github.com/dalemusser/donorlink/internal/app/system/normalize"
	"github.com/dalemusser/donorlink/internal/app/system/status"
	"github.com/dalemusser/donorlink/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("ngo not found")
	// ErrAlreadyRegistered is returned when the owning account already has an NGO.
	ErrAlreadyRegistered = errors.New("this account already has a registered NGO")
	// ErrDuplicateRegistration is returned when the registration number is taken.
	ErrDuplicateRegistration = errors.New("an NGO with this registration number already exists")
	ErrNameRequired          = errors.New("ngo name is required")
	ErrRegistrationRequired  = errors.New("registration number is required")
)

type Store struct {
	c   *mongo.Collection
	hub *live.Hub
}

// New returns a Store. hub may be nil.
func New(db *mongo.Database, hub *live.Hub) *Store {
	return &Store{c: db.Collection("ngos"), hub: hub}
}

// Register inserts a new NGO for review. Status, activity and counters are
// always reset, whatever the caller passed.
func (s *Store) Register(ctx context.Context, n models.NGO) (models.NGO, error) {
	n.ID = primitive.NewObjectID()
	n.Name = normalize.Name(n.Name)
	n.NameCI = text.Fold(n.Name)
	n.RegistrationNumber = strings.TrimSpace(n.RegistrationNumber)
	n.Email = normalize.Email(n.Email)
	n.ContactEmail = normalize.Email(n.ContactEmail)
	n.Description = htmlsanitize.Sanitize(n.Description)

	if n.Name == "" {
		return models.NGO{}, ErrNameRequired
	}
	if n.RegistrationNumber == "" {
		return models.NGO{}, ErrRegistrationRequired
	}

	now := time.Now().UTC()
	n.VerificationStatus = status.Pending
	n.IsVerified = nil
	n.IsActive = true
	n.AdminNotes = ""
	n.VerifiedAt = nil
	n.NewsCount = 0
	n.CreatedAt = now
	n.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, n); err != nil {
		if wafflemongo.IsDup(err) {
			if strings.Contains(err.Error(), "registration_number") {
				return models.NGO{}, ErrDuplicateRegistration
			}
			return models.NGO{}, ErrAlreadyRegistered
		}
		return models.NGO{}, err
	}
	s.hub.Notify(live.TopicNGOs)
	return n, nil
}

// GetByID loads an NGO by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.NGO, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByUserID loads the active NGO owned by userID.
func (s *Store) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.NGO, error) {
	return s.findOne(ctx, bson.M{"user_id": userID, "is_active": true})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.NGO, error) {
	var n models.NGO
	if err := s.c.FindOne(ctx, filter).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// CanAuthorNews returns the caller's NGO and whether it may publish camp
// announcements. A user without an NGO gets (nil, false, nil).
func (s *Store) CanAuthorNews(ctx context.Context, userID primitive.ObjectID) (*models.NGO, bool, error) {
	n, err := s.GetByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return n, moderation.IsVerifiedNGO(n), nil
}

// ProfileUpdate holds the NGO fields an owner may edit after registering.
type ProfileUpdate struct {
	Description        string
	Address            string
	City               string
	State              string
	Pincode            string
	Phone              string
	Email              string
	Website            string
	ContactPerson      string
	ContactDesignation string
	ContactPhone       string
	ContactEmail       string
	FocusAreas         []string
}

// UpdateProfile rewrites the editable fields. Name, registration number and
// verification state are not editable here.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.NGO, error) {
	set := bson.M{
		"description":         htmlsanitize.Sanitize(upd.Description),
		"address":             strings.TrimSpace(upd.Address),
		"city":                normalize.Name(upd.City),
		"state":               normalize.Name(upd.State),
		"pincode":             strings.TrimSpace(upd.Pincode),
		"phone":               strings.TrimSpace(upd.Phone),
		"email":               normalize.Email(upd.Email),
		"website":             strings.TrimSpace(upd.Website),
		"contact_person":      normalize.Name(upd.ContactPerson),
		"contact_designation": normalize.Name(upd.ContactDesignation),
		"contact_phone":       strings.TrimSpace(upd.ContactPhone),
		"contact_email":       normalize.Email(upd.ContactEmail),
		"focus_areas":         upd.FocusAreas,
		"updated_at":          time.Now().UTC(),
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var n models.NGO
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.hub.Notify(live.TopicNGOs)
	return &n, nil
}

// SetVerification reviews a pending NGO into verified or rejected. The
// update only matches pending records, so two concurrent reviews cannot
// both win. changed is false when the NGO already had target.
func (s *Store) SetVerification(ctx context.Context, id primitive.ObjectID, target, notes string) (changed bool, err error) {
	if err := moderation.NGO.Validate(target); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	verified := target == status.Verified
	set := bson.M{
		"verification_status": target,
		"is_verified":         verified,
		"admin_notes":         htmlsanitize.PlainText(notes),
		"updated_at":          now,
	}
	if verified {
		set["verified_at"] = now
	} else {
		set["verified_at"] = nil
	}

	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "verification_status": bson.M{"$in": bson.A{status.Pending, "", nil}}},
		bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		s.hub.Notify(live.TopicNGOs)
		return true, nil
	}

	// Nothing pending matched: the NGO is missing or already reviewed.
	cur, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if _, err := moderation.NGO.Next(cur.VerificationStatus, target); err != nil {
		return false, err
	}
	return false, nil
}

// ListByStatus returns NGOs in the given verification state, newest first.
func (s *Store) ListByStatus(ctx context.Context, verification string) ([]models.NGO, error) {
	return s.Find(ctx, bson.M{"verification_status": verification},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// ListPending returns NGOs awaiting review, newest first.
func (s *Store) ListPending(ctx context.Context) ([]models.NGO, error) {
	return s.ListByStatus(ctx, status.Pending)
}

// ListVerified returns active verified NGOs ordered by name. Legacy records
// flagged only with is_verified are included.
func (s *Store) ListVerified(ctx context.Context) ([]models.NGO, error) {
	return s.Find(ctx, verifiedFilter(), options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}))
}

// CountVerified counts the NGOs ListVerified would return.
func (s *Store) CountVerified(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, verifiedFilter())
}

func verifiedFilter() bson.M {
	return bson.M{
		"is_active": true,
		"$or": bson.A{
			bson.M{"verification_status": status.Verified},
			bson.M{"is_verified": true},
		},
	}
}

// CountByStatus counts NGOs in the given verification state.
func (s *Store) CountByStatus(ctx context.Context, verification string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"verification_status": verification})
}

// IncNewsCount bumps the NGO's announcement counter.
func (s *Store) IncNewsCount(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"news_count": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("inc news_count: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Find returns NGOs matching filter with optional find options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.NGO, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.NGO{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubscribePending delivers the pending review queue now and after every
// NGO change.
func (s *Store) SubscribePending(onUpdate func([]models.NGO), onError func(error)) *live.Subscription {
	return live.Subscribe(s.hub, []string{live.TopicNGOs}, s.ListPending, onUpdate, onError)
}
