// internal/app/features/chats/routes.go
package chats

import (
	"net/http"

	"github.com/dalemusser/donorlink/internal/app/system/auth"
	"github.com/dalemusser/donorlink/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/chats.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Get("/stream", h.ServeStream)
	r.Get("/{id}", h.ServeChat)
	r.Get("/{id}/messages", h.ServeMessages)
	r.Post("/{id}/read", h.HandleMarkRead)

	if h.SendLimit != nil {
		r.With(ratelimit.Middleware(h.SendLimit, senderKey)).Post("/{id}/messages", h.HandleSend)
	} else {
		r.Post("/{id}/messages", h.HandleSend)
	}
	return r
}

func senderKey(r *http.Request) string {
	if u, ok := auth.CurrentUser(r); ok {
		return u.ID
	}
	return ""
}
