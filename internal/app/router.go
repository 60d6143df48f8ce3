package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bagline-erp/bagline/internal/batch"
	"github.com/bagline-erp/bagline/internal/bol"
	"github.com/bagline-erp/bagline/internal/masterdata"
	"github.com/bagline-erp/bagline/internal/masterdata/carriers"
	"github.com/bagline-erp/bagline/internal/masterdata/customers"
	"github.com/bagline-erp/bagline/internal/masterdata/items"
	"github.com/bagline-erp/bagline/internal/masterdata/locations"
	"github.com/bagline-erp/bagline/internal/masterdata/sizes"
	"github.com/bagline-erp/bagline/internal/masterdata/suppliers"
	"github.com/bagline-erp/bagline/internal/masterdata/trucks"
	"github.com/bagline-erp/bagline/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config
	Pool   *pgxpool.Pool

	ItemsHandler     *items.Handler
	SizesHandler     *sizes.Handler
	SuppliersHandler *suppliers.Handler
	CustomersHandler *customers.Handler
	LocationsHandler *locations.Handler
	CarriersHandler  *carriers.Handler
	TrucksHandler    *trucks.Handler
	Registry         *masterdata.Registry
	RegistryHandler  *masterdata.Handler

	BatchHandler *batch.Handler
	BOLHandler   *bol.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Bagline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/masterdata", func(r chi.Router) {
		if params.Registry != nil {
			r.Use(masterdata.InvalidateOnWrite(params.Registry))
		}
		r.Route("/items", params.ItemsHandler.MountRoutes)
		r.Route("/sizes", params.SizesHandler.MountRoutes)
		r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
		r.Route("/customers", params.CustomersHandler.MountRoutes)
		r.Route("/locations", params.LocationsHandler.MountRoutes)
		r.Route("/carriers", params.CarriersHandler.MountRoutes)
		r.Route("/trucks", params.TrucksHandler.MountRoutes)
		params.RegistryHandler.MountRoutes(r)
	})

	r.Route("/batches", params.BatchHandler.MountRoutes)
	r.Route("/bols", params.BOLHandler.MountRoutes)

	return r
}
