package ap

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/bills", func(r chi.Router) {
		r.Get("/", h.listBills)
		r.Post("/", h.createBill)
		r.Get("/{id}", h.getBill)
		r.Post("/{id}/post", h.postBill)
		r.Post("/{id}/void", h.voidBill)
	})
	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.listPayments)
		r.Post("/", h.registerPayment)
		r.Get("/{id}", h.getPayment)
		r.Post("/{id}/void", h.voidPayment)
	})
	r.Get("/aging", h.aging)
}
