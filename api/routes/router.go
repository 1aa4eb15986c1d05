package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/shopkeeper/api/controllers"
	"github.com/angelmondragon/shopkeeper/api/middleware"
	"github.com/angelmondragon/shopkeeper/internal/catalog"
	"github.com/angelmondragon/shopkeeper/internal/ledger"
	"github.com/angelmondragon/shopkeeper/internal/receipts"
	"github.com/angelmondragon/shopkeeper/internal/reports"
	"github.com/angelmondragon/shopkeeper/pkg/config"
	"github.com/angelmondragon/shopkeeper/pkg/db"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
	"github.com/angelmondragon/shopkeeper/pkg/metrics"
	"github.com/angelmondragon/shopkeeper/pkg/redis"
)

// Deps are the services behind the read-only HTTP surface.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Catalog  catalog.Service
	Ledger   ledger.Service
	Reports  *reports.Service
	Receipts *receipts.Renderer
	// Gatherer backs /metrics; HTTP metrics are registered on Registerer.
	Gatherer   prometheus.Gatherer
	Registerer prometheus.Registerer
	Location   *time.Location
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, metrics.NewHTTPMetrics(deps.Registerer)),
		middleware.CORS(cfg.API.AllowedOrigins),
	)

	ready := map[string]controllers.Pinger{"db": deps.DB, "redis": nil}
	// a nil *redis.Client would otherwise be a non-nil interface.
	if deps.Redis != nil {
		ready["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	policy := middleware.NewRateLimitPolicy("api", cfg.API.RateWindow, cfg.API.RateLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.API.Keys, logg))
		if deps.Redis != nil {
			r.Use(middleware.RateLimit(policy, deps.Redis, logg))
		}

		r.Route("/sales/{saleID}", func(r chi.Router) {
			r.Get("/", controllers.SaleDetail(deps.Ledger, logg))
			r.Get("/receipt", controllers.SaleReceipt(deps.Receipts, "", logg))
			r.Get("/receipt.png", controllers.SaleReceipt(deps.Receipts, receipts.FormatPNG, logg))
			r.Get("/receipt.txt", controllers.SaleReceipt(deps.Receipts, receipts.FormatPlain, logg))
		})
		r.Get("/reports/{period}", controllers.SalesReport(deps.Reports, deps.Location, logg))
		r.Get("/debts", controllers.Debtors(deps.Ledger, logg))
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.SearchProducts(deps.Catalog, logg))
			r.Get("/low-stock", controllers.LowStock(deps.Catalog, cfg.Cron.LowStockThreshold, logg))
		})
	})

	return r
}
