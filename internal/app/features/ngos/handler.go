// internal/app/features/ngos/handler.go
package ngos

import (
	"context"
	"errors"
	"net/http"

	campnewsstore "github.com/dalemusser/donorlink/internal/app/store/campnews"
	ngostore "github.com/dalemusser/donorlink/internal/app/store/ngos"
	"github.com/dalemusser/donorlink/internal/app/system/authz"
	"github.com/dalemusser/donorlink/internal/app/system/httpjson"
	"github.com/dalemusser/donorlink/internal/app/system/moderation"
	"github.com/dalemusser/donorlink/internal/app/system/timeouts"
	"github.com/dalemusser/donorlink/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves NGO registration and the owner's NGO profile.
type Handler struct {
	NGOs *ngostore.Store
	News *campnewsstore.Store
	Log  *zap.Logger
}

func NewHandler(ngos *ngostore.Store, news *campnewsstore.Store, logger *zap.Logger) *Handler {
	return &Handler{NGOs: ngos, News: news, Log: logger}
}

type registerRequest struct {
	Name               string   `json:"name"`
	RegistrationNumber string   `json:"registration_number"`
	RegistrationType   string   `json:"registration_type"`
	EstablishedYear    int      `json:"established_year"`
	Description        string   `json:"description"`
	Address            string   `json:"address"`
	City               string   `json:"city"`
	State              string   `json:"state"`
	Pincode            string   `json:"pincode"`
	Phone              string   `json:"phone"`
	Email              string   `json:"email"`
	Website            string   `json:"website"`
	PreviousCamps      int      `json:"previous_camps"`
	ContactPerson      string   `json:"contact_person"`
	ContactDesignation string   `json:"contact_designation"`
	ContactPhone       string   `json:"contact_phone"`
	ContactEmail       string   `json:"contact_email"`
	FocusAreas         []string `json:"focus_areas"`
}

type profileRequest struct {
	Description        string   `json:"description"`
	Address            string   `json:"address"`
	City               string   `json:"city"`
	State              string   `json:"state"`
	Pincode            string   `json:"pincode"`
	Phone              string   `json:"phone"`
	Email              string   `json:"email"`
	Website            string   `json:"website"`
	ContactPerson      string   `json:"contact_person"`
	ContactDesignation string   `json:"contact_designation"`
	ContactPhone       string   `json:"contact_phone"`
	ContactEmail       string   `json:"contact_email"`
	FocusAreas         []string `json:"focus_areas"`
}

// mineResponse is the owner's dashboard: the NGO, whether it may post camp
// news yet, and everything it has posted.
type mineResponse struct {
	NGO           *models.NGO       `json:"ngo"`
	CanAuthorNews bool              `json:"can_author_news"`
	News          []models.CampNews `json:"news"`
}

// HandleRegister submits the caller's NGO for verification.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	var req registerRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.NGOs.Register(ctx, models.NGO{
		UserID:             userID,
		Name:               req.Name,
		RegistrationNumber: req.RegistrationNumber,
		RegistrationType:   req.RegistrationType,
		EstablishedYear:    req.EstablishedYear,
		Description:        req.Description,
		Address:            req.Address,
		City:               req.City,
		State:              req.State,
		Pincode:            req.Pincode,
		Phone:              req.Phone,
		Email:              req.Email,
		Website:            req.Website,
		PreviousCamps:      req.PreviousCamps,
		ContactPerson:      req.ContactPerson,
		ContactDesignation: req.ContactDesignation,
		ContactPhone:       req.ContactPhone,
		ContactEmail:       req.ContactEmail,
		FocusAreas:         req.FocusAreas,
	})
	if err != nil {
		h.writeNGOError(w, err, "register ngo failed")
		return
	}
	httpjson.Write(w, http.StatusCreated, n)
}

// ServeMine returns the caller's NGO with its posted camp news.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	n, err := h.NGOs.GetByUserID(ctx, userID)
	if err != nil {
		h.writeNGOError(w, err, "load ngo failed")
		return
	}
	news, err := h.News.ListByNGO(ctx, n.ID)
	if err != nil {
		h.Log.Error("list ngo news failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpjson.OK(w, mineResponse{NGO: n, CanAuthorNews: moderation.IsVerifiedNGO(n), News: news})
}

// HandleUpdateMine edits the caller's NGO contact and profile fields.
func (h *Handler) HandleUpdateMine(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	var req profileRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.NGOs.GetByUserID(ctx, userID)
	if err != nil {
		h.writeNGOError(w, err, "load ngo failed")
		return
	}
	updated, err := h.NGOs.UpdateProfile(ctx, n.ID, ngostore.ProfileUpdate{
		Description:        req.Description,
		Address:            req.Address,
		City:               req.City,
		State:              req.State,
		Pincode:            req.Pincode,
		Phone:              req.Phone,
		Email:              req.Email,
		Website:            req.Website,
		ContactPerson:      req.ContactPerson,
		ContactDesignation: req.ContactDesignation,
		ContactPhone:       req.ContactPhone,
		ContactEmail:       req.ContactEmail,
		FocusAreas:         req.FocusAreas,
	})
	if err != nil {
		h.writeNGOError(w, err, "update ngo failed")
		return
	}
	httpjson.OK(w, updated)
}

// ServeVerified lists NGOs that passed verification.
func (h *Handler) ServeVerified(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.NGOs.ListVerified(ctx)
	if err != nil {
		h.writeNGOError(w, err, "list verified ngos failed")
		return
	}
	httpjson.OK(w, list)
}

func (h *Handler) writeNGOError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, ngostore.ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "no NGO registered for this account")
	case errors.Is(err, ngostore.ErrAlreadyRegistered), errors.Is(err, ngostore.ErrDuplicateRegistration):
		httpjson.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ngostore.ErrNameRequired), errors.Is(err, ngostore.ErrRegistrationRequired):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.Log.Error(logMsg, zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
	}
}
