package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/saldo-id/saldo/internal/ap"
	"github.com/saldo-id/saldo/internal/ar"
	"github.com/saldo-id/saldo/internal/assistant"
	"github.com/saldo-id/saldo/internal/audit"
	"github.com/saldo-id/saldo/internal/auth"
	"github.com/saldo-id/saldo/internal/compliance"
	"github.com/saldo-id/saldo/internal/ledger/accounts"
	"github.com/saldo-id/saldo/internal/ledger/journals"
	"github.com/saldo-id/saldo/internal/ledger/periods"
	"github.com/saldo-id/saldo/internal/masterdata/banks"
	"github.com/saldo-id/saldo/internal/masterdata/customers"
	"github.com/saldo-id/saldo/internal/masterdata/vendors"
	"github.com/saldo-id/saldo/internal/reports"
	"github.com/saldo-id/saldo/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Sessions *shared.SessionStore

	AuthHandler       *auth.Handler
	AccountsHandler   *accounts.Handler
	JournalsHandler   *journals.Handler
	PeriodsHandler    *periods.Handler
	VendorsHandler    *vendors.Handler
	CustomersHandler  *customers.Handler
	BanksHandler      *banks.Handler
	APHandler         *ap.Handler
	ARHandler         *ar.Handler
	ComplianceHandler *compliance.Handler
	AssistantHandler  *assistant.Handler
	AuditHandler      *audit.Handler
	ReportsHandler    *reports.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/accounts", params.AccountsHandler.MountRoutes)
	r.Route("/journals", params.JournalsHandler.MountRoutes)
	r.Route("/periods", params.PeriodsHandler.MountRoutes)
	r.Route("/vendors", params.VendorsHandler.MountRoutes)
	r.Route("/customers", params.CustomersHandler.MountRoutes)
	r.Route("/banks", params.BanksHandler.MountRoutes)
	r.Route("/ap", params.APHandler.MountRoutes)
	r.Route("/ar", params.ARHandler.MountRoutes)
	r.Route("/compliance", params.ComplianceHandler.MountRoutes)
	r.Route("/assistant", params.AssistantHandler.MountRoutes)
	r.Route("/audit", params.AuditHandler.MountRoutes)
	r.Route("/reports", params.ReportsHandler.MountRoutes)

	return r
}
