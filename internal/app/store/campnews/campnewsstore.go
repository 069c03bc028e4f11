// internal/app/store/campnews/campnewsstore.go
package campnewsstore

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
	"github.com/dalemusser/donorlink/internal/app/system/txn"
	"github.com/dalemusser/donorlink/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	ErrNotFound         = errors.New("camp announcement not found")
	ErrTitleRequired    = errors.New("title is required")
	ErrCampDateRequired = errors.New("camp date is required")
	ErrInvalidLocation  = errors.New("location is out of range")
	ErrBadExpected      = errors.New("expected donors cannot be negative")

	errAlreadyInterested = errors.New("already interested")
)

type Store struct {
	db        *mongo.Database
	c         *mongo.Collection
	interests *mongo.Collection
	hub       *live.Hub
	log       *zap.Logger
}

// New returns a Store. hub may be nil.
func New(db *mongo.Database, hub *live.Hub, logger *zap.Logger) *Store {
	return &Store{
		db:        db,
		c:         db.Collection("camp_news"),
		interests: db.Collection("camp_interest"),
		hub:       hub,
		log:       logger,
	}
}

// Create inserts an announcement authored by ngo. It always starts pending
// with zero counters.
func (s *Store) Create(ctx context.Context, ngo *models.NGO, n models.CampNews) (models.CampNews, error) {
	n.ID = primitive.NewObjectID()
	n.NGOID = ngo.ID
	n.NGOName = ngo.Name
	n.NGORegistrationNumber = ngo.RegistrationNumber
	n.UserID = ngo.UserID

	n.Title = htmlsanitize.PlainText(n.Title)
	n.Description = htmlsanitize.Sanitize(n.Description)
	n.Requirements = htmlsanitize.Sanitize(n.Requirements)
	n.Facilities = htmlsanitize.Sanitize(n.Facilities)
	n.Venue = htmlsanitize.PlainText(n.Venue)
	n.Address = strings.TrimSpace(n.Address)
	n.CampTime = strings.TrimSpace(n.CampTime)
	n.ContactPerson = normalize.Name(n.ContactPerson)
	n.ContactPhone = strings.TrimSpace(n.ContactPhone)
	n.ContactEmail = normalize.Email(n.ContactEmail)

	if n.Title == "" {
		return models.CampNews{}, ErrTitleRequired
	}
	if n.CampDate.IsZero() {
		return models.CampNews{}, ErrCampDateRequired
	}
	if n.Location != nil && !n.Location.Valid() {
		return models.CampNews{}, ErrInvalidLocation
	}
	if n.ExpectedDonors < 0 {
		return models.CampNews{}, ErrBadExpected
	}

	now := time.Now().UTC()
	n.CampDate = n.CampDate.UTC()
	n.Status = status.Pending
	n.AdminNotes = ""
	n.ReviewedAt = nil
	n.Views = 0
	n.InterestedCount = 0
	n.CreatedAt = now
	n.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, n); err != nil {
		return models.CampNews{}, err
	}
	s.hub.Notify(live.TopicNews)
	return n, nil
}

// GetByID loads an announcement by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.CampNews, error) {
	var n models.CampNews
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// Latest returns the limit newest announcements in any state, newest
// first. The proximity feed filters them.
func (s *Store) Latest(ctx context.Context, limit int) ([]models.CampNews, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	return s.Find(ctx, bson.M{}, opts)
}

// ListByNGO returns an NGO's announcements, newest first.
func (s *Store) ListByNGO(ctx context.Context, ngoID primitive.ObjectID) ([]models.CampNews, error) {
	return s.Find(ctx, bson.M{"ngo_id": ngoID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// ListAll returns every announcement, newest first.
func (s *Store) ListAll(ctx context.Context) ([]models.CampNews, error) {
	return s.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// ListPending returns announcements awaiting review, newest first.
func (s *Store) ListPending(ctx context.Context) ([]models.CampNews, error) {
	return s.Find(ctx, bson.M{"status": status.Pending},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// CountByStatus counts announcements in the given state.
func (s *Store) CountByStatus(ctx context.Context, st string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"status": st})
}

// Find returns announcements matching filter with optional find options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.CampNews, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.CampNews{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetStatus reviews a pending announcement into approved or rejected. Only
// pending records are updated, so a terminal announcement cannot be
// flipped by a concurrent review. changed is false when it already had
// target.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, target, notes string) (changed bool, err error) {
	if err := moderation.News.Validate(target); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": bson.A{status.Pending, "", nil}}},
		bson.M{"$set": bson.M{
			"status":      target,
			"admin_notes": htmlsanitize.PlainText(notes),
			"reviewed_at": now,
			"updated_at":  now,
		}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		s.hub.Notify(live.TopicNews)
		return true, nil
	}

	cur, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if _, err := moderation.News.Next(cur.Status, target); err != nil {
		return false, err
	}
	return false, nil
}

// IncrementViewCount atomically adds one view.
func (s *Store) IncrementViewCount(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": 1}})
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	s.hub.Notify(live.TopicNews)
	return nil
}

// MarkInterested records userID's interest in newsID and bumps the
// counter, both in one transaction. A repeat by the same user changes
// nothing and returns added=false.
func (s *Store) MarkInterested(ctx context.Context, newsID, userID primitive.ObjectID) (added bool, err error) {
	if _, err := s.GetByID(ctx, newsID); err != nil {
		return false, err
	}

	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		_, err := s.interests.InsertOne(ctx, models.CampInterest{
			ID:        primitive.NewObjectID(),
			NewsID:    newsID,
			UserID:    userID,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			if wafflemongo.IsDup(err) {
				return errAlreadyInterested
			}
			return err
		}
		_, err = s.c.UpdateOne(ctx, bson.M{"_id": newsID}, bson.M{"$inc": bson.M{"interested_count": 1}})
		return err
	})
	if errors.Is(err, errAlreadyInterested) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark interested: %w", err)
	}
	s.hub.Notify(live.TopicNews)
	return true, nil
}

// IsInterested reports whether userID already marked newsID.
func (s *Store) IsInterested(ctx context.Context, newsID, userID primitive.ObjectID) (bool, error) {
	n, err := s.interests.CountDocuments(ctx, bson.M{"news_id": newsID, "user_id": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SubscribePending delivers the pending review queue now and after every
// announcement change.
func (s *Store) SubscribePending(onUpdate func([]models.CampNews), onError func(error)) *live.Subscription {
	return live.Subscribe(s.hub, []string{live.TopicNews}, s.ListPending, onUpdate, onError)
}
