package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/possync/api/controllers"
	"github.com/angelmondragon/possync/api/middleware"
	"github.com/angelmondragon/possync/internal/remote"
	"github.com/angelmondragon/possync/pkg/config"
	"github.com/angelmondragon/possync/pkg/logger"
	"github.com/angelmondragon/possync/pkg/redis"
)

// AgentDeps groups what the terminal agent router serves.
type AgentDeps struct {
	Service controllers.AgentService
	// Network and Checker are nil unless the manual signal is configured.
	Network     controllers.NetworkSwitch
	Checker     controllers.ReachabilityChecker
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer
	Ready       map[string]controllers.Pinger
}

// RemoteDeps groups what the remote API router serves.
type RemoteDeps struct {
	Backend     remote.Backend
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer
	Ready       map[string]controllers.Pinger
}

// NewAgentRouter serves the local till UI.
func NewAgentRouter(cfg *config.Config, logg *logger.Logger, deps AgentDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	mountHealth(r, cfg, logg, deps.Ready)
	mountMetrics(r, cfg, deps.Gatherer)

	// Idempotency is attached inline so it sees the fully matched route pattern.
	idempotent := middleware.Idempotency(deps.Idempotency, cfg.Sync.IdempotencyTTL, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", controllers.AgentStatus(deps.Service, logg))
		r.With(idempotent).Post("/mutations", controllers.AgentMutate(deps.Service, logg))
		r.Post("/sync", controllers.AgentSync(deps.Service, logg))
		r.Get("/products", controllers.AgentProducts(deps.Service, logg))
		r.Get("/products/barcode/{code}", controllers.AgentProductByBarcode(deps.Service, logg))
		r.Get("/sales", controllers.AgentSales(deps.Service, logg))
		r.Post("/network", controllers.AgentNetwork(deps.Network, deps.Checker, logg))
	})

	return r
}

// NewRemoteRouter serves the record API terminals sync against.
func NewRemoteRouter(cfg *config.Config, logg *logger.Logger, deps RemoteDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	mountHealth(r, cfg, logg, deps.Ready)
	mountMetrics(r, cfg, deps.Gatherer)

	idempotent := middleware.Idempotency(deps.Idempotency, cfg.Sync.IdempotencyTTL, logg)

	r.Route("/api/v1/tables", func(r chi.Router) {
		if cfg.Remote.JWTSecret != "" {
			r.Use(middleware.TerminalAuth(cfg.Remote, logg))
		}

		r.Get("/{table}", controllers.TableSelect(deps.Backend, logg))
		r.With(idempotent).Post("/{table}", controllers.TableInsert(deps.Backend, logg))
		r.Patch("/{table}/{id}", controllers.TableUpdate(deps.Backend, logg))
		r.Delete("/{table}/{id}", controllers.TableDelete(deps.Backend, logg))
	})

	return r
}

func mountHealth(r chi.Router, cfg *config.Config, logg *logger.Logger, ready map[string]controllers.Pinger) {
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})
	r.Get("/healthz", controllers.Healthz(cfg))
	r.Head("/healthz", controllers.Healthz(cfg))
}

func mountMetrics(r chi.Router, cfg *config.Config, gatherer prometheus.Gatherer) {
	if !cfg.Metrics.Enabled || gatherer == nil {
		return
	}
	path := cfg.Metrics.Path
	if path == "" {
		path = "/metrics"
	}
	r.Method(http.MethodGet, path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
