package accounts

import "github.com/go-chi/chi/v5"

// MountRoutes registers chart of accounts routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{code}", h.get)
	r.Put("/{code}", h.rename)
	r.Put("/{code}/type", h.changeType)
	r.Post("/{code}/deactivate", h.deactivate)
	r.Post("/{code}/activate", h.activate)
}
