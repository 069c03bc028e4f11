// internal/app/features/donors/handler.go
package donors

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	userstore "github.com/dalemusser/donorlink/internal/app/store/users"
	"github.com/dalemusser/donorlink/internal/app/system/authz"
	"github.com/dalemusser/donorlink/internal/app/system/geo"
	"github.com/dalemusser/donorlink/internal/app/system/httpjson"
	"github.com/dalemusser/donorlink/internal/app/system/timeouts"
	"github.com/dalemusser/donorlink/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

type Handler struct {
	Users *userstore.Store
	Log   *zap.Logger
}

func NewHandler(users *userstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Log: logger}
}

type searchResponse struct {
	Donors []models.Donor `json:"donors"`
	Count  int            `json:"count"`
}

// ServeSearch lists available donors, optionally by blood group and near a
// point. The caller is never included in their own results.
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}

	origin, err := geo.ParsePoint(query.Get(r, "lat"), query.Get(r, "lng"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	var radius float64
	if s := query.Get(r, "radius_km"); s != "" {
		radius, err = strconv.ParseFloat(s, 64)
		if err != nil || radius <= 0 {
			httpjson.Error(w, http.StatusBadRequest, "radius_km must be a positive number")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	found, err := h.Users.SearchDonors(ctx, userstore.DonorQuery{
		BloodGroup: query.Get(r, "blood_group"),
		Origin:     origin,
		RadiusKm:   radius,
		ExcludeID:  userID,
	})
	switch {
	case errors.Is(err, userstore.ErrInvalidBloodGroup), errors.Is(err, userstore.ErrInvalidLocation):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.Log.Error("donor search failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "search failed")
		return
	}
	httpjson.OK(w, searchResponse{Donors: found, Count: len(found)})
}
