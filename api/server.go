/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack, and route definitions.
  This is the wiring layer connecting URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for log correlation
  2. RealIP:     Honor X-Forwarded-For behind the edge proxy
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. zap logger: Structured request logging
  5. metrics:    Latency histogram per route
  6. CORS:       The web frontend runs on a different origin in dev

ROUTE GROUPS:
  /api/users/{id}/*   Per-user ledger operations
  /api/transfers      Cross-user gift flow
  /healthz            Liveness probe
  /metrics            Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware here: the service sits behind the main
  application backend, which owns identity and sessions (the ledger does
  not validate identity by design scope).

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/verseloft/ink-engine/metrics"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.Log))
	r.Use(requestMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/balance", h.GetBalance)
			r.Get("/allowance", h.GetAllowance)
			r.Post("/spend", h.SpendOne)
			r.Post("/credits", h.Credit)
			r.Post("/boosts", h.Boost)
			r.Get("/transactions", h.GetHistory)
		})
		r.Post("/transfers", h.Transfer)
	})

	// Operational endpoints
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestLogger logs one structured line per request.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

// requestMetrics records latency per route pattern (not per raw path, to
// keep label cardinality bounded).
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}
