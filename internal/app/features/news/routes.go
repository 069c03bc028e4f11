// internal/app/features/news/routes.go
package news

import (
	"github.com/dalemusser/donorlink/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/news.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Post("/", h.HandleCreate)
	r.Get("/nearby", h.ServeNearby)
	r.Get("/stream", h.ServeStream)
	r.Get("/{id}", h.ServeNews)
	r.Post("/{id}/view", h.HandleView)
	r.Post("/{id}/interest", h.HandleInterest)
	return r
}
