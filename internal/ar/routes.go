package ar

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Post("/", h.createInvoice)
		r.Get("/{id}", h.getInvoice)
		r.Post("/{id}/post", h.postInvoice)
		r.Post("/{id}/void", h.voidInvoice)
	})
	r.Route("/receipts", func(r chi.Router) {
		r.Get("/", h.listReceipts)
		r.Post("/", h.registerReceipt)
		r.Get("/{id}", h.getReceipt)
		r.Post("/{id}/void", h.voidReceipt)
	})
	r.Get("/aging", h.aging)
}
