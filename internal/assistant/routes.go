package assistant

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/proposals", h.propose)
	r.Get("/proposals", h.list)
	r.Get("/proposals/{id}", h.get)
	r.Post("/proposals/{id}/approve", h.approve)
	r.Post("/proposals/{id}/reject", h.reject)
}
