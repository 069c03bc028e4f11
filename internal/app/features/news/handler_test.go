package news_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/donorlink/internal/app/features/news"
	campnewsstore "github.com/dalemusser/donorlink/internal/app/store/campnews"
	ngostore "github.com/dalemusser/donorlink/internal/app/store/ngos"
	"github.com/dalemusser/donorlink/internal/app/system/auth"
	"github.com/dalemusser/donorlink/internal/app/system/live"
	"github.com/dalemusser/donorlink/internal/app/system/nearby"
	"github.com/dalemusser/donorlink/internal/app/system/status"
	"github.com/dalemusser/donorlink/internal/domain/models"
	"github.com/dalemusser/donorlink/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	pune   = &models.GeoPoint{Lat: 18.5204, Lng: 73.8567}
	mumbai = &models.GeoPoint{Lat: 19.0760, Lng: 72.8777}
	nagpur = &models.GeoPoint{Lat: 21.1458, Lng: 79.0882}
)

type newsEnv struct {
	db   *mongo.Database
	hub  *live.Hub
	fx   *testutil.Fixtures
	news *campnewsstore.Store
	ngos *ngostore.Store
	h    *news.Handler
}

func newNewsEnv(t *testing.T) *newsEnv {
	t.Helper()
	db := testutil.SetupTestDBWithIndexes(t)
	hub := live.NewHub(zap.NewNop())
	ns := campnewsstore.New(db, hub, zap.NewNop())
	gs := ngostore.New(db, hub)
	return &newsEnv{
		db:   db,
		hub:  hub,
		fx:   testutil.NewFixtures(t, db),
		news: ns,
		ngos: gs,
		h:    news.NewHandler(ns, gs, nearby.NewFeed(ns, hub, 0, 0), zap.NewNop()),
	}
}

func (e *newsEnv) owner(t *testing.T, verification string) (testutil.TestUser, models.NGO) {
	t.Helper()
	ctx := testutil.Ctx(t)
	u := e.fx.CreateUser(ctx, "Owner", primitive.NewObjectID().Hex()+"@example.com", "A+", nil)
	n := e.fx.CreateNGO(ctx, u.ID, "Red Drop "+u.ID.Hex(), verification)
	return testutil.AsTestUser(u.ID, u.Name, u.Email, auth.RoleUser), n
}

func createBody(title string) map[string]any {
	return map[string]any{
		"title":           title,
		"description":     "<p>Bring ID</p><script>x()</script>",
		"venue":           "Town Hall",
		"camp_date":       time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"expected_donors": 120,
		"location":        pune,
	}
}

func TestHandleCreate(t *testing.T) {
	e := newNewsEnv(t)
	verified, ngo := e.owner(t, status.Verified)

	rec := testutil.NewRecorder()
	e.h.HandleCreate(rec, testutil.WithUser(testutil.NewJSONRequest(t, "POST", "/api/news", createBody("Mega camp")), verified))
	rec.AssertStatus(t, http.StatusCreated)

	var n models.CampNews
	rec.DecodeJSON(t, &n)
	if n.Status != status.Pending {
		t.Errorf("status = %q, want pending", n.Status)
	}
	if n.NGOID != ngo.ID || n.NGOName != ngo.Name {
		t.Errorf("ngo fields not copied: %+v", n)
	}

	stored, err := e.ngos.GetByID(testutil.Ctx(t), ngo.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.NewsCount != 1 {
		t.Errorf("news_count = %d, want 1", stored.NewsCount)
	}
}

func TestHandleCreate_Permissions(t *testing.T) {
	e := newNewsEnv(t)
	pending, _ := e.owner(t, status.Pending)
	rejected, _ := e.owner(t, status.Rejected)

	// Legacy record: only is_verified set.
	legacy, legacyNGO := e.owner(t, "")
	if _, err := e.db.Collection("ngos").UpdateByID(testutil.Ctx(t), legacyNGO.ID,
		map[string]any{"$set": map[string]any{"is_verified": true}}); err != nil {
		t.Fatalf("set legacy flag: %v", err)
	}

	tests := []struct {
		name string
		user testutil.TestUser
		want int
	}{
		{"no ngo", testutil.DonorUser(), http.StatusForbidden},
		{"pending ngo", pending, http.StatusForbidden},
		{"rejected ngo", rejected, http.StatusForbidden},
		{"legacy verified flag", legacy, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			e.h.HandleCreate(rec, testutil.WithUser(testutil.NewJSONRequest(t, "POST", "/api/news", createBody("Camp")), tt.user))
			rec.AssertStatus(t, tt.want)
		})
	}
}

func TestHandleCreate_Validation(t *testing.T) {
	e := newNewsEnv(t)
	verified, _ := e.owner(t, status.Verified)

	noTitle := createBody("")
	noDate := createBody("Camp")
	delete(noDate, "camp_date")
	badLoc := createBody("Camp")
	badLoc["location"] = map[string]float64{"lat": 100, "lng": 0}

	for name, body := range map[string]map[string]any{"no title": noTitle, "no date": noDate, "bad location": badLoc} {
		t.Run(name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			e.h.HandleCreate(rec, testutil.WithUser(testutil.NewJSONRequest(t, "POST", "/api/news", body), verified))
			rec.AssertStatus(t, http.StatusBadRequest)
		})
	}
}

func TestServeNearby(t *testing.T) {
	e := newNewsEnv(t)
	ctx := testutil.Ctx(t)
	_, ngo := e.owner(t, status.Verified)

	soon := time.Now().Add(24 * time.Hour)
	later := time.Now().Add(96 * time.Hour)
	e.fx.CreateCampNews(ctx, ngo, "Pune later", status.Approved, later, pune)
	e.fx.CreateCampNews(ctx, ngo, "Mumbai soon", status.Approved, soon, mumbai)
	e.fx.CreateCampNews(ctx, ngo, "Nagpur", status.Approved, soon, nagpur)
	e.fx.CreateCampNews(ctx, ngo, "Anywhere", status.Approved, later.Add(time.Hour), nil)
	e.fx.CreateCampNews(ctx, ngo, "Pending", status.Pending, soon, pune)
	e.fx.CreateCampNews(ctx, ngo, "Past", status.Approved, time.Now().Add(-24*time.Hour), pune)

	user := testutil.DonorUser()

	rec := testutil.NewRecorder()
	e.h.ServeNearby(rec, testutil.NewAuthenticatedRequest("GET", "/api/news/nearby?lat=18.5204&lng=73.8567", user))
	rec.AssertStatus(t, http.StatusOK)

	var items []models.NearbyNews
	rec.DecodeJSON(t, &items)
	titles := make([]string, len(items))
	for i, n := range items {
		titles[i] = n.Title
	}
	// Mumbai is ~120 km from Pune, Nagpur ~600 km.
	want := []string{"Pune later", "Anywhere"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("titles = %v, want %v", titles, want)
		}
	}
	if items[0].DistanceKm == nil || *items[0].DistanceKm != 0 {
		t.Errorf("distance = %v, want 0", items[0].DistanceKm)
	}
	if items[1].DistanceKm != nil {
		t.Error("camp without a location must not carry a distance")
	}

	rec = testutil.NewRecorder()
	e.h.ServeNearby(rec, testutil.NewAuthenticatedRequest("GET", "/api/news/nearby", user))
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &items)
	if len(items) != 4 {
		t.Errorf("without a viewer got %d items, want 4", len(items))
	}
	if items[0].Title != "Mumbai soon" && items[0].Title != "Nagpur" {
		t.Errorf("first item %q should be one of the soonest camps", items[0].Title)
	}

	rec = testutil.NewRecorder()
	e.h.ServeNearby(rec, testutil.NewAuthenticatedRequest("GET", "/api/news/nearby?lat=abc&lng=1", user))
	rec.AssertStatus(t, http.StatusBadRequest)
}

type failingSource struct{}

func (failingSource) Latest(context.Context, int) ([]models.CampNews, error) {
	return nil, errors.New("connection refused")
}

func TestServeNearby_Unavailable(t *testing.T) {
	h := news.NewHandler(nil, nil, nearby.NewFeed(failingSource{}, nil, 0, 0), zap.NewNop())

	rec := testutil.NewRecorder()
	h.ServeNearby(rec, testutil.NewAuthenticatedRequest("GET", "/api/news/nearby", testutil.DonorUser()))
	rec.AssertStatus(t, http.StatusServiceUnavailable)
	rec.AssertContains(t, "feed_unavailable")
}

func TestServeNews_Visibility(t *testing.T) {
	e := newNewsEnv(t)
	ctx := testutil.Ctx(t)
	owner, ngo := e.owner(t, status.Verified)

	approved := e.fx.CreateCampNews(ctx, ngo, "Open camp", status.Approved, time.Now().Add(time.Hour), nil)
	pending := e.fx.CreateCampNews(ctx, ngo, "Draft camp", status.Pending, time.Now().Add(time.Hour), nil)

	tests := []struct {
		name string
		user testutil.TestUser
		id   string
		want int
	}{
		{"approved to anyone", testutil.DonorUser(), approved.ID.Hex(), http.StatusOK},
		{"pending hidden from others", testutil.DonorUser(), pending.ID.Hex(), http.StatusNotFound},
		{"pending to owner", owner, pending.ID.Hex(), http.StatusOK},
		{"pending to admin", testutil.AdminUser(), pending.ID.Hex(), http.StatusOK},
		{"missing", testutil.DonorUser(), primitive.NewObjectID().Hex(), http.StatusNotFound},
		{"malformed", testutil.DonorUser(), "xyz", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			e.h.ServeNews(rec, testutil.WithChiURLParam(
				testutil.NewAuthenticatedRequest("GET", "/api/news/"+tt.id, tt.user), "id", tt.id))
			rec.AssertStatus(t, tt.want)
		})
	}
}

func TestViewAndInterest(t *testing.T) {
	e := newNewsEnv(t)
	ctx := testutil.Ctx(t)
	_, ngo := e.owner(t, status.Verified)
	n := e.fx.CreateCampNews(ctx, ngo, "Open camp", status.Approved, time.Now().Add(time.Hour), nil)
	id := n.ID.Hex()
	donor := testutil.DonorUser()

	for i := 0; i < 3; i++ {
		rec := testutil.NewRecorder()
		e.h.HandleView(rec, testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("POST", "/api/news/"+id+"/view", donor), "id", id))
		rec.AssertStatus(t, http.StatusNoContent)
	}

	interest := func() bool {
		rec := testutil.NewRecorder()
		e.h.HandleInterest(rec, testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("POST", "/api/news/"+id+"/interest", donor), "id", id))
		rec.AssertStatus(t, http.StatusOK)
		var body struct {
			Added bool `json:"added"`
		}
		rec.DecodeJSON(t, &body)
		return body.Added
	}
	if !interest() {
		t.Error("first interest should be added")
	}
	if interest() {
		t.Error("repeat interest should not be added")
	}

	got, err := e.news.GetByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Views != 3 || got.InterestedCount != 1 {
		t.Errorf("views=%d interested=%d, want 3 and 1", got.Views, got.InterestedCount)
	}

	rec := testutil.NewRecorder()
	e.h.ServeNews(rec, testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("GET", "/api/news/"+id, donor), "id", id))
	rec.AssertContains(t, `"interested":true`)

	missing := primitive.NewObjectID().Hex()
	rec = testutil.NewRecorder()
	e.h.HandleView(rec, testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("POST", "/api/news/"+missing+"/view", donor), "id", missing))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestViewAndInterest_HiddenNews(t *testing.T) {
	e := newNewsEnv(t)
	ctx := testutil.Ctx(t)
	owner, ngo := e.owner(t, status.Verified)
	n := e.fx.CreateCampNews(ctx, ngo, "Draft camp", status.Pending, time.Now().Add(time.Hour), nil)
	id := n.ID.Hex()
	donor := testutil.DonorUser()

	rec := testutil.NewRecorder()
	e.h.HandleView(rec, testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("POST", "/api/news/"+id+"/view", donor), "id", id))
	rec.AssertStatus(t, http.StatusNotFound)

	rec = testutil.NewRecorder()
	e.h.HandleInterest(rec, testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("POST", "/api/news/"+id+"/interest", donor), "id", id))
	rec.AssertStatus(t, http.StatusNotFound)

	got, err := e.news.GetByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Views != 0 || got.InterestedCount != 0 {
		t.Errorf("views=%d interested=%d, want 0 and 0", got.Views, got.InterestedCount)
	}

	rec = testutil.NewRecorder()
	e.h.HandleView(rec, testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("POST", "/api/news/"+id+"/view", owner), "id", id))
	rec.AssertStatus(t, http.StatusNoContent)
}
