// internal/app/features/admin/handler.go
package admin

import (
	"context"
	"errors"
	"net/http"

	adminstore "github.com/dalemusser/donorlink/internal/app/store/admins"
	campnewsstore "github.com/dalemusser/donorlink/internal/app/store/campnews"
	ngostore "github.com/dalemusser/donorlink/internal/app/store/ngos"
	"github.com/dalemusser/donorlink/internal/app/system/auditlog"
	"github.com/dalemusser/donorlink/internal/app/system/authz"
	"github.com/dalemusser/donorlink/internal/app/system/httpjson"
	"github.com/dalemusser/donorlink/internal/app/system/moderation"
	"github.com/dalemusser/donorlink/internal/app/system/normalize"
	"github.com/dalemusser/donorlink/internal/app/system/status"
	"github.com/dalemusser/donorlink/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the admin dashboard and moderation actions. Every route
// sits behind RequireAdmin.
type Handler struct {
	Dashboard *Dashboard
	NGOs      *ngostore.Store
	News      *campnewsstore.Store
	Admins    *adminstore.Store
	AuditLog  *auditlog.Logger
	Log       *zap.Logger
}

func NewHandler(ngos *ngostore.Store, news *campnewsstore.Store, admins *adminstore.Store, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Dashboard: &Dashboard{NGOs: ngos, News: news},
		NGOs:      ngos,
		News:      news,
		Admins:    admins,
		AuditLog:  audit,
		Log:       logger,
	}
}

type reviewRequest struct {
	Notes string `json:"notes"`
}

type reviewResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Changed bool   `json:"changed"`
}

// ServeStats returns the dashboard counters.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	st, err := h.Dashboard.Stats(ctx)
	if err != nil {
		h.Log.Error("admin stats failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpjson.OK(w, st)
}

// ServePending returns both review queues.
func (h *Handler) ServePending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, err := h.Dashboard.Pending(ctx)
	if err != nil {
		h.Log.Error("admin pending failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpjson.OK(w, p)
}

// ServeNGOs lists NGOs, optionally filtered by ?status=.
func (h *Handler) ServeNGOs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	st := normalize.Status(query.Get(r, "status"))
	var err error
	var out any
	switch st {
	case "":
		out, err = h.NGOs.Find(ctx, bson.M{})
	case status.Pending, status.Verified, status.Rejected:
		out, err = h.NGOs.ListByStatus(ctx, st)
	default:
		httpjson.Error(w, http.StatusBadRequest, "unknown status")
		return
	}
	if err != nil {
		h.Log.Error("admin list ngos failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpjson.OK(w, out)
}

// ServeAllNews lists every announcement regardless of status.
func (h *Handler) ServeAllNews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.News.ListAll(ctx)
	if err != nil {
		h.Log.Error("admin list news failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpjson.OK(w, list)
}

// HandleReviewNGO approves (verifies) or rejects an NGO.
func (h *Handler) HandleReviewNGO(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, moderation.NGO.Kind, func(ctx context.Context, id primitive.ObjectID, target, notes string) (bool, error) {
		return h.NGOs.SetVerification(ctx, id, target, notes)
	})
}

// HandleReviewNews approves or rejects a camp announcement.
func (h *Handler) HandleReviewNews(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, moderation.News.Kind, func(ctx context.Context, id primitive.ObjectID, target, notes string) (bool, error) {
		return h.News.SetStatus(ctx, id, target, notes)
	})
}

type reviewFunc func(ctx context.Context, id primitive.ObjectID, target, notes string) (changed bool, err error)

func (h *Handler) review(w http.ResponseWriter, r *http.Request, kind string, apply reviewFunc) {
	actorID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	target := normalize.ReviewAction(kind, chi.URLParam(r, "action"))
	if target == "" {
		httpjson.Error(w, http.StatusNotFound, "unknown review action")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req reviewRequest
	if r.ContentLength != 0 {
		if err := httpjson.Decode(w, r, &req); err != nil {
			httpjson.Error(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	changed, err := apply(ctx, id, target, req.Notes)
	switch {
	case err == nil:
	case errors.Is(err, ngostore.ErrNotFound), errors.Is(err, campnewsstore.ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, kind+" not found")
		return
	case errors.Is(err, moderation.ErrInvalidTransition):
		h.AuditLog.ReviewFailed(ctx, r, actorID, kind, id, target, err)
		httpjson.Error(w, http.StatusConflict, err.Error())
		return
	default:
		h.Log.Error("review failed", zap.String("kind", kind), zap.String("id", id.Hex()), zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.AuditLog.Reviewed(ctx, r, actorID, kind, id, target, req.Notes, changed)
	h.Log.Info("item reviewed",
		zap.String("kind", kind),
		zap.String("id", id.Hex()),
		zap.String("status", target),
		zap.Bool("changed", changed),
		zap.String("actor_id", actorID.Hex()))
	httpjson.OK(w, reviewResponse{ID: id.Hex(), Status: target, Changed: changed})
}

// ServeAdmins lists admin grants.
func (h *Handler) ServeAdmins(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Admins.List(ctx)
	if err != nil {
		h.Log.Error("list admins failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpjson.OK(w, list)
}

// HandleRevokeAdmin removes another user's admin rights. Admins cannot
// revoke themselves, so at least one always remains.
func (h *Handler) HandleRevokeAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if userID == actorID {
		httpjson.Error(w, http.StatusBadRequest, "you cannot revoke your own admin rights")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	revoked, err := h.Admins.Revoke(ctx, userID)
	if err != nil {
		h.Log.Error("revoke admin failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !revoked {
		httpjson.Error(w, http.StatusNotFound, "admin not found")
		return
	}
	h.Log.Info("admin revoked", zap.String("user_id", userID.Hex()), zap.String("actor_id", actorID.Hex()))
	w.WriteHeader(http.StatusNoContent)
}
