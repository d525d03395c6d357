package periods

import "github.com/go-chi/chi/v5"

// MountRoutes registers period lifecycle routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{code}", h.get)
	r.Post("/{code}/close", h.close)
	r.Post("/{code}/lock", h.lock)
	r.Post("/{code}/reopen", h.reopen)
}
