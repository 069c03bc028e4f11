// internal/app/features/admin/routes.go
package admin

import (
	"github.com/dalemusser/donorlink/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/admin.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireAdmin)

	r.Get("/stats", h.ServeStats)
	r.Get("/pending", h.ServePending)
	r.Get("/stream", h.ServeStream)

	r.Get("/ngos", h.ServeNGOs)
	r.Post("/ngos/{id}/{action}", h.HandleReviewNGO)
	r.Get("/news", h.ServeAllNews)
	r.Post("/news/{id}/{action}", h.HandleReviewNews)

	r.Get("/admins", h.ServeAdmins)
	r.Delete("/admins/{userID}", h.HandleRevokeAdmin)
	return r
}
