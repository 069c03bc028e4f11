// internal/app/features/account/routes.go
package account

import (
	"github.com/dalemusser/donorlink/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/account.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Post("/signup", h.HandleSignup)
	r.Post("/login", h.HandleLogin)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/logout", h.HandleLogout)
		pr.Get("/me", h.ServeMe)
		pr.Put("/me", h.HandleUpdateMe)
		pr.Put("/me/location", h.HandleSetLocation)
		pr.Put("/me/availability", h.HandleSetAvailability)
	})
	return r
}
