package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-pos/meridian-pos/internal/credit"
	"github.com/meridian-pos/meridian-pos/internal/observability"
	"github.com/meridian-pos/meridian-pos/internal/purchases"
	"github.com/meridian-pos/meridian-pos/internal/returns"
	"github.com/meridian-pos/meridian-pos/internal/sales"
	"github.com/meridian-pos/meridian-pos/internal/stock"
	"github.com/meridian-pos/meridian-pos/jobs"
)

// Handlers bundles the HTTP handlers mounted on the API router.
type Handlers struct {
	Sales     *sales.Handler
	Purchases *purchases.Handler
	Returns   *returns.Handler
	Stock     *stock.Handler
	Credit    *credit.Handler
	Jobs      *jobs.Handler
}

// NewRouter assembles the middleware stack and the API routes.
func NewRouter(cfg MiddlewareConfig, metrics *observability.Metrics, h Handlers) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(cfg) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Route("/pos", func(pos chi.Router) {
			h.Sales.Routes(pos)
		})
		h.Purchases.Routes(api)
		h.Returns.Routes(api)
		h.Stock.Routes(api)
		h.Credit.Routes(api)
		if h.Jobs != nil {
			api.Route("/jobs", h.Jobs.MountRoutes)
		}
	})

	return r
}
