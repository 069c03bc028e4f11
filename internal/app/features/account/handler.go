// internal/app/features/account/handler.go
package account

import (
	"context"
	"errors"
	"net/http"
	"time"

	adminstore "github.com/dalemusser/donorlink/internal/app/store/admins"
	userstore "github.com/dalemusser/donorlink/internal/app/store/users"
	"github.com/dalemusser/donorlink/internal/app/system/auditlog"
	"github.com/dalemusser/donorlink/internal/app/system/auth"
	"github.com/dalemusser/donorlink/internal/app/system/authz"
	"github.com/dalemusser/donorlink/internal/app/system/httpjson"
	"github.com/dalemusser/donorlink/internal/app/system/normalize"
	"github.com/dalemusser/donorlink/internal/app/system/ratelimit"
	"github.com/dalemusser/donorlink/internal/app/system/timeouts"
	"github.com/dalemusser/donorlink/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves sign-up, sign-in and the signed-in user's own profile.
type Handler struct {
	Users      *userstore.Store
	Admins     *adminstore.Store
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter // nil disables login throttling
	AuditLog   *auditlog.Logger
	Log        *zap.Logger
}

func NewHandler(users *userstore.Store, admins *adminstore.Store, sm *auth.SessionManager, limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		Admins:     admins,
		SessionMgr: sm,
		Limiter:    limiter,
		AuditLog:   audit,
		Log:        logger,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request / response bodies                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

type signupRequest struct {
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	Password   string           `json:"password"`
	BloodGroup string           `json:"blood_group"`
	Age        int              `json:"age"`
	Phone      string           `json:"phone"`
	City       string           `json:"city"`
	State      string           `json:"state"`
	Country    string           `json:"country"`
	Location   *models.GeoPoint `json:"location"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Name       string `json:"name"`
	Age        int    `json:"age"`
	BloodGroup string `json:"blood_group"`
	Phone      string `json:"phone"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
}

type locationRequest struct {
	Location *models.GeoPoint `json:"location"`
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

// sessionResponse is returned by sign-up and sign-in. Token is present
// only when bearer tokens are enabled.
type sessionResponse struct {
	User      *models.User `json:"user"`
	IsAdmin   bool         `json:"is_admin"`
	Token     string       `json:"token,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
}

type meResponse struct {
	User    *models.User `json:"user"`
	IsAdmin bool         `json:"is_admin"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| Sign-up / sign-in                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleSignup creates an account and signs it in.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		httpjson.Error(w, http.StatusBadRequest, auth.ErrPasswordTooShort.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.Log.Error("hash password failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not create account")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Age:          req.Age,
		BloodGroup:   req.BloodGroup,
		Phone:        req.Phone,
		City:         req.City,
		State:        req.State,
		Country:      req.Country,
		Location:     req.Location,
		IsAvailable:  true,
	})
	if err != nil {
		h.writeUserError(w, err, "signup failed")
		return
	}

	h.AuditLog.Signup(ctx, r, u.ID, u.Email)
	h.startSession(w, r, &u, false, http.StatusCreated)
}

// HandleLogin checks email and password and starts a session.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	email := normalize.Email(req.Email)
	if email == "" || req.Password == "" {
		httpjson.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if h.Limiter != nil {
		if ok, limitType := h.Limiter.Check(r, email); !ok {
			h.AuditLog.LoginFailedRateLimit(ctx, r, email, limitType)
			httpjson.Error(w, http.StatusTooManyRequests, "too many login attempts; try again later")
			return
		}
	}

	u, err := h.Users.GetByEmail(ctx, email)
	if errors.Is(err, userstore.ErrNotFound) {
		h.AuditLog.LoginFailedUserNotFound(ctx, r, email)
		httpjson.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		h.Log.Error("login lookup failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "login failed")
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		h.AuditLog.LoginFailedWrongPassword(ctx, r, u.ID)
		httpjson.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if h.Limiter != nil {
		h.Limiter.ResetEmail(email)
	}

	isAdmin := false
	if h.Admins != nil {
		isAdmin, err = h.Admins.IsAdmin(ctx, u.ID)
		if err != nil {
			// Role is re-resolved on every request; a plain session is safe.
			h.Log.Warn("admin lookup failed during login", zap.Error(err))
		}
	}

	h.AuditLog.LoginSuccess(ctx, r, u.ID, "password")
	h.startSession(w, r, u, isAdmin, http.StatusOK)
}

// HandleLogout ends the session.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.AuditLog.Logout(r.Context(), r, u.ID)
	}
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Warn("sign out failed", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, u *models.User, isAdmin bool, status int) {
	role := auth.RoleUser
	if isAdmin {
		role = auth.RoleAdmin
	}
	su := &auth.SessionUser{ID: u.ID.Hex(), Name: u.Name, Email: u.Email, Role: role}

	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		h.Log.Error("sign in failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not start session")
		return
	}

	resp := sessionResponse{User: u, IsAdmin: isAdmin}
	token, exp, err := h.SessionMgr.IssueToken(su)
	switch {
	case err == nil:
		resp.Token = token
		resp.ExpiresAt = &exp
	case errors.Is(err, auth.ErrTokensDisabled):
	default:
		h.Log.Error("issue token failed", zap.Error(err))
	}
	httpjson.Write(w, status, resp)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Own profile                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeMe returns the signed-in user's profile.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		h.writeUserError(w, err, "load profile failed")
		return
	}
	httpjson.OK(w, meResponse{User: u, IsAdmin: authz.IsAdmin(r)})
}

// HandleUpdateMe replaces the editable profile fields.
func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
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

	u, err := h.Users.UpdateProfile(ctx, userID, userstore.ProfileUpdate{
		Name:       req.Name,
		Age:        req.Age,
		BloodGroup: req.BloodGroup,
		Phone:      req.Phone,
		City:       req.City,
		State:      req.State,
		Country:    req.Country,
	})
	if err != nil {
		h.writeUserError(w, err, "update profile failed")
		return
	}
	httpjson.OK(w, meResponse{User: u, IsAdmin: authz.IsAdmin(r)})
}

// HandleSetLocation sets or, with a null location, clears the user's point.
func (h *Handler) HandleSetLocation(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	var req locationRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.SetLocation(ctx, userID, req.Location)
	if err != nil {
		h.writeUserError(w, err, "set location failed")
		return
	}
	httpjson.OK(w, meResponse{User: u, IsAdmin: authz.IsAdmin(r)})
}

// HandleSetAvailability toggles whether the user appears in donor search.
func (h *Handler) HandleSetAvailability(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	var req availabilityRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Available == nil {
		httpjson.Error(w, http.StatusBadRequest, "available is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.SetAvailability(ctx, userID, *req.Available)
	if err != nil {
		h.writeUserError(w, err, "set availability failed")
		return
	}
	httpjson.OK(w, meResponse{User: u, IsAdmin: authz.IsAdmin(r)})
}

// writeUserError maps user store errors to responses.
func (h *Handler) writeUserError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "user not found")
	case errors.Is(err, userstore.ErrDuplicateEmail):
		httpjson.Error(w, http.StatusConflict, "an account with that email already exists")
	case errors.Is(err, userstore.ErrNameRequired),
		errors.Is(err, userstore.ErrEmailRequired),
		errors.Is(err, userstore.ErrInvalidBloodGroup),
		errors.Is(err, userstore.ErrInvalidLocation):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.Log.Error(logMsg, zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
	}
}
