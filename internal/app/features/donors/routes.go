// internal/app/features/donors/routes.go
package donors

import (
	"github.com/dalemusser/donorlink/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/donors.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeSearch)
	return r
}
