package compliance

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/scan", h.scan)
	r.Get("/issues", h.listIssues)
	r.Post("/issues/{id}/resolve", h.resolve)
}
