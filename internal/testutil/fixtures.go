package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/donorlink/internal/app/system/status"
	"github.com/dalemusser/donorlink/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates an available donor with the given name, email and
// blood group. loc may be nil.
func (f *Fixtures) CreateUser(ctx context.Context, name, email, bloodGroup string, loc *models.GeoPoint) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:          primitive.NewObjectID(),
		Email:       email,
		EmailCI:     text.Fold(email),
		Name:        name,
		NameCI:      text.Fold(name),
		BloodGroup:  bloodGroup,
		City:        "Pune",
		CityCI:      text.Fold("Pune"),
		IsAvailable: true,
		Location:    loc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateAdmin creates a user and grants it admin rights.
func (f *Fixtures) CreateAdmin(ctx context.Context, name, email string) models.User {
	f.t.Helper()

	u := f.CreateUser(ctx, name, email, "O+", nil)
	now := time.Now().UTC()
	a := models.Admin{
		ID:        primitive.NewObjectID(),
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      "admin",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("admins").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("failed to create test admin: %v", err)
	}
	return u
}

// CreateNGO creates an active NGO owned by userID in the given
// verification state.
func (f *Fixtures) CreateNGO(ctx context.Context, userID primitive.ObjectID, name, verification string) models.NGO {
	f.t.Helper()

	now := time.Now().UTC()
	n := models.NGO{
		ID:                 primitive.NewObjectID(),
		UserID:             userID,
		Name:               name,
		NameCI:             text.Fold(name),
		RegistrationNumber: "REG-" + primitive.NewObjectID().Hex(),
		City:               "Pune",
		VerificationStatus: verification,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := f.db.Collection("ngos").InsertOne(ctx, n); err != nil {
		f.t.Fatalf("failed to create test ngo: %v", err)
	}
	return n
}

// CreateVerifiedNGO creates a verified NGO owned by userID.
func (f *Fixtures) CreateVerifiedNGO(ctx context.Context, userID primitive.ObjectID, name string) models.NGO {
	f.t.Helper()
	return f.CreateNGO(ctx, userID, name, status.Verified)
}

// CreateCampNews creates an announcement by ngo with the given status,
// camp date and location (loc may be nil).
func (f *Fixtures) CreateCampNews(ctx context.Context, ngo models.NGO, title, newsStatus string, campDate time.Time, loc *models.GeoPoint) models.CampNews {
	f.t.Helper()

	now := time.Now().UTC()
	n := models.CampNews{
		ID:        primitive.NewObjectID(),
		NGOID:     ngo.ID,
		NGOName:   ngo.Name,
		UserID:    ngo.UserID,
		Title:     title,
		Venue:     "Community Hall",
		CampDate:  campDate.UTC(),
		Location:  loc,
		Status:    newsStatus,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("camp_news").InsertOne(ctx, n); err != nil {
		f.t.Fatalf("failed to create test camp news: %v", err)
	}
	return n
}
