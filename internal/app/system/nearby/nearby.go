// Package nearby builds the camp-news feed shown to end users: approved
// camps that have not happened yet, optionally limited to those near the
// viewer, soonest first.
package nearby

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dalemusser/donorlink/internal/app/system/geo"
	"github.com/dalemusser/donorlink/internal/app/system/live"
	"github.com/dalemusser/donorlink/internal/app/system/status"
	"github.com/dalemusser/donorlink/internal/domain/models"
)

const (
	// DefaultLimit bounds how many of the newest announcements are read per
	// snapshot. Older approved camps beyond this window do not appear.
	DefaultLimit = 50
	// DefaultRadiusKm is the proximity cut-off when the viewer has a location.
	DefaultRadiusKm = 100.0
)

// ErrFeedUnavailable wraps any failure to load the feed, so callers can
// tell "could not load" apart from "nothing nearby".
var ErrFeedUnavailable = errors.New("camp news feed unavailable")

// Filter returns the items visible to a viewer at time now. An item is
// kept when it is approved and its camp date is not in the past. When
// viewer is non-nil, items with a location farther than radiusKm are
// dropped and kept items carry their distance rounded to one decimal;
// items without a location are kept without a distance. The result is
// sorted by camp date, earliest first, preserving input order on ties.
func Filter(items []models.CampNews, viewer *models.GeoPoint, now time.Time, radiusKm float64) []models.NearbyNews {
	out := make([]models.NearbyNews, 0, len(items))
	for _, n := range items {
		if n.Status != status.Approved || n.CampDate.Before(now) {
			continue
		}
		entry := models.NearbyNews{CampNews: n}
		if viewer != nil && n.Location != nil {
			d := geo.DistanceKm(*viewer, *n.Location)
			if d > radiusKm {
				continue
			}
			r := geo.Round1(d)
			entry.DistanceKm = &r
		}
		out = append(out, entry)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CampDate.Before(out[j].CampDate)
	})
	return out
}

// Source loads the newest announcements, newest first.
type Source interface {
	Latest(ctx context.Context, limit int) ([]models.CampNews, error)
}

// Feed serves the filtered feed once or live.
type Feed struct {
	src      Source
	hub      *live.Hub
	limit    int
	radiusKm float64
	now      func() time.Time
}

// NewFeed returns a Feed reading from src. Non-positive limit or radius
// fall back to the defaults.
func NewFeed(src Source, hub *live.Hub, limit int, radiusKm float64) *Feed {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	return &Feed{src: src, hub: hub, limit: limit, radiusKm: radiusKm, now: time.Now}
}

// Snapshot loads and filters the feed once.
func (f *Feed) Snapshot(ctx context.Context, viewer *models.GeoPoint) ([]models.NearbyNews, error) {
	items, err := f.src.Latest(ctx, f.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	return Filter(items, viewer, f.now(), f.radiusKm), nil
}

// Subscribe delivers the filtered feed now and after every change to camp
// news. "Now" is re-evaluated on each delivery, so camps drop out once
// their date passes and the next change arrives. Load failures reach
// onError as ErrFeedUnavailable.
func (f *Feed) Subscribe(viewer *models.GeoPoint, onUpdate func([]models.NearbyNews), onError func(error)) *live.Subscription {
	var v *models.GeoPoint
	if viewer != nil {
		cp := *viewer
		v = &cp
	}
	return live.Subscribe(f.hub, []string{live.TopicNews}, func(ctx context.Context) ([]models.NearbyNews, error) {
		return f.Snapshot(ctx, v)
	}, onUpdate, onError)
}
