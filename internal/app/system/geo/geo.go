// Package geo adapts waffle's pantry/geo to the GeoPoint model: distances
// between coordinates and parsing of query-string points.
package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/dalemusser/donorlink/internal/domain/models"
	wafflegeo "github.com/dalemusser/waffle/pantry/geo"
)

// ErrBadPoint is returned by ParsePoint for unparsable or out-of-range
// coordinates, or when only one of the pair is given.
var ErrBadPoint = errors.New("lat and lng must both be valid coordinates")

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = wafflegeo.EarthRadiusKm

func coord(p models.GeoPoint) wafflegeo.Coord {
	return wafflegeo.NewCoord(p.Lat, p.Lng)
}

// DistanceKm returns the Haversine distance between a and b in kilometres.
func DistanceKm(a, b models.GeoPoint) float64 {
	return wafflegeo.Haversine(coord(a), coord(b))
}

// Round1 rounds km to one decimal place for display.
func Round1(km float64) float64 {
	return math.Round(km*10) / 10
}

// ParsePoint reads a coordinate pair from separate lat and lng query
// values. Both empty means no point (nil, nil).
func ParsePoint(lat, lng string) (*models.GeoPoint, error) {
	lat, lng = strings.TrimSpace(lat), strings.TrimSpace(lng)
	if lat == "" && lng == "" {
		return nil, nil
	}
	la, err1 := strconv.ParseFloat(lat, 64)
	ln, err2 := strconv.ParseFloat(lng, 64)
	if err1 != nil || err2 != nil {
		return nil, ErrBadPoint
	}
	if !wafflegeo.NewCoord(la, ln).Valid() {
		return nil, ErrBadPoint
	}
	return &models.GeoPoint{Lat: la, Lng: ln}, nil
}
