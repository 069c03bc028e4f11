// internal/app/features/ngos/routes.go
package ngos

import (
	"github.com/dalemusser/donorlink/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/ngos.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeVerified)
	r.Post("/", h.HandleRegister)
	r.Get("/mine", h.ServeMine)
	r.Put("/mine", h.HandleUpdateMine)
	return r
}
