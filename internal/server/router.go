// =============================================================================
// sepacetamol - HTTP Adapter
// =============================================================================
//
// This module exposes the converters over HTTP. Handlers only decode the
// request and encode the response; every check on the submitted data happens
// in the sepa, personio and datev packages.
//
// ROUTES:
//   GET  /ping             heartbeat
//   GET  /healthz          liveness
//   GET  /metrics          Prometheus metrics
//   POST /sepa/preview     payment workbook -> JSON preview
//   POST /sepa/generate    confirmed form fields -> pain.001 XML download
//   POST /datev/personio   Personio export -> EXTF CSV download
//
// =============================================================================

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ginjaninja78/sepacetamol/internal/config"
	"github.com/ginjaninja78/sepacetamol/internal/observability"
	"github.com/ginjaninja78/sepacetamol/internal/sepa"
)

// api carries the dependencies shared by the handlers.
type api struct {
	cfg     *config.MainConfig
	metrics *observability.Metrics
	logger  *zap.Logger
	sepaOps []sepa.Option
}

// NewRouter creates the HTTP router with all routes and middleware.
// sepaOpts are passed to every SEPA builder; tests use them to fix the clock
// and the message identifiers.
func NewRouter(cfg *config.MainConfig, metrics *observability.Metrics, logger *zap.Logger, sepaOpts ...sepa.Option) http.Handler {
	if cfg == nil {
		cfg = config.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &api{cfg: cfg, metrics: metrics, logger: logger, sepaOps: sepaOpts}

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- Conversions ---
	r.Route("/sepa", func(r chi.Router) {
		r.Post("/preview", a.sepaPreview)
		r.Post("/generate", a.sepaGenerate)
	})
	r.Post("/datev/personio", a.datevPersonio)

	return r
}

// NewServer wraps handler in an http.Server with the configured timeouts.
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
