package nearby

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/donorlink/internal/app/system/geo"
	"github.com/dalemusser/donorlink/internal/app/system/live"
	"github.com/dalemusser/donorlink/internal/app/system/status"
	"github.com/dalemusser/donorlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	now    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mumbai = models.GeoPoint{Lat: 19.0760, Lng: 72.8777}
	delhi  = models.GeoPoint{Lat: 28.6139, Lng: 77.2090}
)

// north returns the point km kilometres due north of p.
func north(p models.GeoPoint, km float64) models.GeoPoint {
	return models.GeoPoint{Lat: p.Lat + km/geo.EarthRadiusKm*180/math.Pi, Lng: p.Lng}
}

func news(title, st string, campDate time.Time, loc *models.GeoPoint) models.CampNews {
	return models.CampNews{
		ID:       primitive.NewObjectID(),
		Title:    title,
		Status:   st,
		CampDate: campDate,
		Location: loc,
	}
}

func titles(items []models.NearbyNews) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilter_StatusAndDate(t *testing.T) {
	day := 24 * time.Hour
	items := []models.CampNews{
		news("approved-future", status.Approved, now.Add(day), nil),
		news("approved-now", status.Approved, now, nil),
		news("approved-past", status.Approved, now.Add(-time.Minute), nil),
		news("pending-future", status.Pending, now.Add(day), nil),
		news("rejected-future", status.Rejected, now.Add(day), nil),
		news("no-date", status.Approved, time.Time{}, nil),
	}

	got := titles(Filter(items, nil, now, DefaultRadiusKm))
	want := []string{"approved-now", "approved-future"}
	if !equal(got, want) {
		t.Errorf("Filter() = %v, want %v", got, want)
	}
}

func TestFilter_SortsByCampDate(t *testing.T) {
	day := 24 * time.Hour
	items := []models.CampNews{
		news("day1", status.Approved, now.Add(1*day), nil),
		news("day3", status.Approved, now.Add(3*day), nil),
		news("day2", status.Approved, now.Add(2*day), nil),
	}

	got := titles(Filter(items, nil, now, DefaultRadiusKm))
	want := []string{"day1", "day2", "day3"}
	if !equal(got, want) {
		t.Errorf("Filter() = %v, want %v", got, want)
	}
}

func TestFilter_Radius(t *testing.T) {
	in := north(mumbai, 99.9)
	out := north(mumbai, 100.1)
	far := delhi
	future := now.Add(time.Hour)

	items := []models.CampNews{
		news("in", status.Approved, future, &in),
		news("out", status.Approved, future, &out),
		news("far", status.Approved, future, &far),
		news("no-location", status.Approved, future, nil),
	}

	got := Filter(items, &mumbai, now, DefaultRadiusKm)
	if !equal(titles(got), []string{"in", "no-location"}) {
		t.Fatalf("Filter() = %v, want [in no-location]", titles(got))
	}
	if got[0].DistanceKm == nil || *got[0].DistanceKm != 99.9 {
		t.Errorf("distance = %v, want 99.9", got[0].DistanceKm)
	}
	if got[1].DistanceKm != nil {
		t.Errorf("item without location should have no distance, got %v", *got[1].DistanceKm)
	}
}

func TestFilter_RadiusIsInclusive(t *testing.T) {
	p := north(mumbai, 100)
	d := geo.DistanceKm(mumbai, p)

	items := []models.CampNews{news("edge", status.Approved, now.Add(time.Hour), &p)}
	if got := Filter(items, &mumbai, now, d); len(got) != 1 {
		t.Errorf("item exactly at the radius must be kept")
	}
}

func TestFilter_NoViewerNoDistance(t *testing.T) {
	items := []models.CampNews{news("delhi", status.Approved, now.Add(time.Hour), &delhi)}
	got := Filter(items, nil, now, DefaultRadiusKm)
	if len(got) != 1 {
		t.Fatalf("expected item kept without viewer, got %d", len(got))
	}
	if got[0].DistanceKm != nil {
		t.Error("expected no distance without viewer")
	}
}

type fakeSource struct {
	mu    sync.Mutex
	items []models.CampNews
	err   error
	limit int
}

func (f *fakeSource) Latest(ctx context.Context, limit int) ([]models.CampNews, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	return append([]models.CampNews(nil), f.items...), f.err
}

func (f *fakeSource) set(items []models.CampNews) {
	f.mu.Lock()
	f.items = items
	f.mu.Unlock()
}

func TestFeed_SnapshotWrapsError(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	feed := NewFeed(src, nil, 0, 0)

	_, err := feed.Snapshot(context.Background(), nil)
	if !errors.Is(err, ErrFeedUnavailable) {
		t.Fatalf("err = %v, want ErrFeedUnavailable", err)
	}
	if src.limit != DefaultLimit {
		t.Errorf("limit = %d, want %d", src.limit, DefaultLimit)
	}
}

func TestFeed_SubscribeDeliversOnChange(t *testing.T) {
	hub := live.NewHub(nil)
	src := &fakeSource{}
	feed := NewFeed(src, hub, 10, 0)
	feed.now = func() time.Time { return now }

	got := make(chan []models.NearbyNews, 4)
	sub := feed.Subscribe(&mumbai, func(items []models.NearbyNews) { got <- items }, nil)
	defer sub.Close()

	first := <-got
	if len(first) != 0 {
		t.Fatalf("expected empty initial feed, got %d", len(first))
	}

	near := north(mumbai, 5)
	src.set([]models.CampNews{news("near", status.Approved, now.Add(time.Hour), &near)})
	hub.Notify(live.TopicNews)

	select {
	case items := <-got:
		if !equal(titles(items), []string{"near"}) {
			t.Errorf("update = %v, want [near]", titles(items))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update after notify")
	}
}

func TestFeed_SubscribeReportsError(t *testing.T) {
	src := &fakeSource{err: errors.New("down")}
	feed := NewFeed(src, live.NewHub(nil), 0, 0)

	errs := make(chan error, 1)
	sub := feed.Subscribe(nil, func([]models.NearbyNews) { t.Error("unexpected update") }, func(err error) { errs <- err })
	defer sub.Close()

	select {
	case err := <-errs:
		if !errors.Is(err, ErrFeedUnavailable) {
			t.Errorf("err = %v, want ErrFeedUnavailable", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error delivered")
	}
}
