// internal/app/features/news/handler.go
package news

import (
	"context"
	"errors"
	"net/http"
	"time"

	campnewsstore "github.com/dalemusser/donorlink/internal/app/store/campnews"
	ngostore "github.com/dalemusser/donorlink/internal/app/store/ngos"
	"github.com/dalemusser/donorlink/internal/app/system/authz"
	"github.com/dalemusser/donorlink/internal/app/system/geo"
	"github.com/dalemusser/donorlink/internal/app/system/httpjson"
	"github.com/dalemusser/donorlink/internal/app/system/nearby"
	"github.com/dalemusser/donorlink/internal/app/system/status"
	"github.com/dalemusser/donorlink/internal/app/system/timeouts"
	"github.com/dalemusser/donorlink/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves camp announcements: authoring by verified NGOs, the
// nearby feed, and per-camp views and interest.
type Handler struct {
	News *campnewsstore.Store
	NGOs *ngostore.Store
	Feed *nearby.Feed
	Log  *zap.Logger
}

func NewHandler(news *campnewsstore.Store, ngos *ngostore.Store, feed *nearby.Feed, logger *zap.Logger) *Handler {
	return &Handler{News: news, NGOs: ngos, Feed: feed, Log: logger}
}

type createRequest struct {
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Venue          string           `json:"venue"`
	Address        string           `json:"address"`
	CampDate       time.Time        `json:"camp_date"`
	CampTime       string           `json:"camp_time"`
	ExpectedDonors int              `json:"expected_donors"`
	ContactPerson  string           `json:"contact_person"`
	ContactPhone   string           `json:"contact_phone"`
	ContactEmail   string           `json:"contact_email"`
	Requirements   string           `json:"requirements"`
	Facilities     string           `json:"facilities"`
	Location       *models.GeoPoint `json:"location"`
}

type newsResponse struct {
	*models.CampNews
	Interested bool `json:"interested"`
}

type interestResponse struct {
	Added bool `json:"added"`
}

// HandleCreate posts a camp announcement for the caller's NGO. Only
// verified NGOs may post; the announcement then waits for admin review.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	var req createRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ngo, allowed, err := h.NGOs.CanAuthorNews(ctx, userID)
	if err != nil {
		h.Log.Error("author check failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if ngo == nil {
		httpjson.Error(w, http.StatusForbidden, "register an NGO before posting camp news")
		return
	}
	if !allowed {
		httpjson.Error(w, http.StatusForbidden, "your NGO must be verified before posting camp news")
		return
	}

	n, err := h.News.Create(ctx, ngo, models.CampNews{
		Title:          req.Title,
		Description:    req.Description,
		Venue:          req.Venue,
		Address:        req.Address,
		CampDate:       req.CampDate,
		CampTime:       req.CampTime,
		ExpectedDonors: req.ExpectedDonors,
		ContactPerson:  req.ContactPerson,
		ContactPhone:   req.ContactPhone,
		ContactEmail:   req.ContactEmail,
		Requirements:   req.Requirements,
		Facilities:     req.Facilities,
		Location:       req.Location,
	})
	if err != nil {
		h.writeNewsError(w, err, "create camp news failed")
		return
	}
	if err := h.NGOs.IncNewsCount(ctx, ngo.ID); err != nil {
		h.Log.Warn("news count not updated", zap.String("ngo_id", ngo.ID.Hex()), zap.Error(err))
	}
	httpjson.Write(w, http.StatusCreated, n)
}

// ServeNearby returns the feed once. lat/lng are optional.
func (h *Handler) ServeNearby(w http.ResponseWriter, r *http.Request) {
	viewer, err := geo.ParsePoint(query.Get(r, "lat"), query.Get(r, "lng"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	items, err := h.Feed.Snapshot(ctx, viewer)
	if errors.Is(err, nearby.ErrFeedUnavailable) {
		h.Log.Warn("nearby feed unavailable", zap.Error(err))
		httpjson.ErrorCode(w, http.StatusServiceUnavailable, "feed_unavailable", "camp news is temporarily unavailable")
		return
	}
	if err != nil {
		h.Log.Error("nearby feed failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpjson.OK(w, items)
}

// ServeNews returns one announcement. Unpublished ones are visible only
// to admins and the authoring account.
func (h *Handler) ServeNews(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	id, ok := newsID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, ok := h.loadVisible(ctx, w, r, id, userID)
	if !ok {
		return
	}
	interested, err := h.News.IsInterested(ctx, id, userID)
	if err != nil {
		h.Log.Warn("interest lookup failed", zap.Error(err))
	}
	httpjson.OK(w, newsResponse{CampNews: n, Interested: interested})
}

// HandleView counts a view of the announcement. Announcements the caller
// cannot see are reported as missing and left uncounted.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	id, ok := newsID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, ok := h.loadVisible(ctx, w, r, id, userID); !ok {
		return
	}
	if err := h.News.IncrementViewCount(ctx, id); err != nil {
		h.writeNewsError(w, err, "increment view count failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleInterest records that the caller plans to attend. Repeating it is
// harmless and reports added=false.
func (h *Handler) HandleInterest(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	id, ok := newsID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, ok := h.loadVisible(ctx, w, r, id, userID); !ok {
		return
	}
	added, err := h.News.MarkInterested(ctx, id, userID)
	if err != nil {
		h.writeNewsError(w, err, "mark interested failed")
		return
	}
	httpjson.OK(w, interestResponse{Added: added})
}

// loadVisible fetches the announcement and writes 404 when it is not
// approved and the caller is neither its author nor an admin.
func (h *Handler) loadVisible(ctx context.Context, w http.ResponseWriter, r *http.Request, id, userID primitive.ObjectID) (*models.CampNews, bool) {
	n, err := h.News.GetByID(ctx, id)
	if err != nil {
		h.writeNewsError(w, err, "load camp news failed")
		return nil, false
	}
	if n.Status != status.Approved && n.UserID != userID && !authz.IsAdmin(r) {
		httpjson.Error(w, http.StatusNotFound, "camp news not found")
		return nil, false
	}
	return n, true
}

func newsID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid camp news id")
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *Handler) writeNewsError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, campnewsstore.ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "camp news not found")
	case errors.Is(err, campnewsstore.ErrTitleRequired),
		errors.Is(err, campnewsstore.ErrCampDateRequired),
		errors.Is(err, campnewsstore.ErrInvalidLocation),
		errors.Is(err, campnewsstore.ErrBadExpected):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.Log.Error(logMsg, zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
	}
}
